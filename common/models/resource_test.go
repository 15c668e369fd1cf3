package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceID(t *testing.T) {
	id := NewResourceID(SensorResourceKind)
	parsed, err := ParseResourceID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Equal(t, SensorResourceKind, parsed.Kind())

	for _, malformed := range []string{"", "sensor", ":", "sensor:", ":abc"} {
		_, err := ParseResourceID(malformed)
		assert.Error(t, err, "expected %q to be rejected", malformed)
	}
}

func TestResourceIDZero(t *testing.T) {
	var zero ResourceID
	assert.True(t, zero.IsZero())
	assert.False(t, zero.Valid())
	assert.Equal(t, "", zero.String())

	value, err := zero.Value()
	assert.NoError(t, err)
	assert.Nil(t, value, "zero IDs store as NULL")
}

func TestParentKindOf(t *testing.T) {
	expectations := map[ResourceKind]ResourceKind{
		AlertResourceKind:  AlarmResourceKind,
		AlarmResourceKind:  SensorResourceKind,
		SensorResourceKind: PlanResourceKind,
		BrokerResourceKind: PlanResourceKind,
		PlanResourceKind:   SiteResourceKind,
	}
	for kind, wantParent := range expectations {
		parent, ok := ParentKindOf(kind)
		require.True(t, ok, "%s should have a parent kind", kind)
		assert.Equal(t, wantParent, parent)
	}

	for _, kind := range []ResourceKind{SiteResourceKind, UserResourceKind, GroupResourceKind, DashboardResourceKind} {
		_, ok := ParentKindOf(kind)
		assert.False(t, ok, "%s should not have a parent kind", kind)
	}
}

func TestIsHierarchical(t *testing.T) {
	for _, kind := range []ResourceKind{SiteResourceKind, PlanResourceKind, SensorResourceKind, BrokerResourceKind, AlarmResourceKind, AlertResourceKind} {
		assert.True(t, IsHierarchical(kind), "%s is part of the site hierarchy", kind)
	}
	for _, kind := range []ResourceKind{UserResourceKind, GroupResourceKind, DashboardResourceKind, HardwareResourceKind} {
		assert.False(t, IsHierarchical(kind), "%s is standalone", kind)
	}
}

func TestIsCatalogKind(t *testing.T) {
	for _, kind := range []ResourceKind{HardwareResourceKind, DatatypeResourceKind, ProtocolResourceKind, ParserResourceKind, ManufacturerResourceKind, CommunicationModeResourceKind} {
		assert.True(t, IsCatalogKind(kind))
	}
	assert.False(t, IsCatalogKind(SensorResourceKind))
	assert.False(t, IsCatalogKind(DashboardResourceKind))
}

func TestResourceRecordValidate(t *testing.T) {
	now := NewTime(time.Now())
	siteID := NewResourceID(SiteResourceKind)
	planID := NewResourceID(PlanResourceKind)

	site := NewResourceRecord(now, siteID, "Factory-1", ResourceID{})
	require.NoError(t, site.Validate())

	plan := NewResourceRecord(now, planID, "Floor-A", siteID)
	require.NoError(t, plan.Validate())

	t.Run("MissingParent", func(t *testing.T) {
		orphan := NewResourceRecord(now, NewResourceID(PlanResourceKind), "Floor-B", ResourceID{})
		assert.Error(t, orphan.Validate(), "plans must have a parent site")
	})

	t.Run("WrongParentKind", func(t *testing.T) {
		bad := NewResourceRecord(now, NewResourceID(SensorResourceKind), "Temp-1", siteID)
		assert.Error(t, bad.Validate(), "the parent of a sensor must be a plan")
	})

	t.Run("RootWithParent", func(t *testing.T) {
		bad := NewResourceRecord(now, NewResourceID(SiteResourceKind), "Factory-2", planID)
		assert.Error(t, bad.Validate(), "sites cannot have a parent")
	})

	t.Run("StandaloneWithParent", func(t *testing.T) {
		bad := NewResourceRecord(now, NewResourceID(DashboardResourceKind), "Overview", siteID)
		assert.Error(t, bad.Validate())
	})

	t.Run("MissingName", func(t *testing.T) {
		bad := NewResourceRecord(now, NewResourceID(SiteResourceKind), "", ResourceID{})
		assert.Error(t, bad.Validate())
	})

	t.Run("InternalKind", func(t *testing.T) {
		bad := NewResourceRecord(now, NewResourceID(AuditEventResourceKind), "nope", ResourceID{})
		assert.Error(t, bad.Validate(), "internal kinds cannot be registered")
	})
}
