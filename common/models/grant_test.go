package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantValidate(t *testing.T) {
	now := NewTime(time.Now())
	alice := NewUserID()
	actor := NewUserID()
	sensor := NewResourceID(SensorResourceKind)

	grant := NewUserGrant(now, alice, sensor, PermissionRead, EffectAllow, true, nil, nil, actor)
	require.NoError(t, grant.Validate())

	t.Run("GranteeKindMismatch", func(t *testing.T) {
		bad := *grant
		bad.GranteeID = NewResourceID(GroupResourceKind)
		assert.Error(t, bad.Validate(), "user grantee must identify a user")
	})

	t.Run("ResourceKindMismatch", func(t *testing.T) {
		bad := *grant
		bad.ResourceKind = SiteResourceKind
		assert.Error(t, bad.Validate())
	})

	t.Run("UnknownPermission", func(t *testing.T) {
		bad := *grant
		bad.Permission = Permission("levitate")
		assert.Error(t, bad.Validate())
	})

	t.Run("UnknownEffect", func(t *testing.T) {
		bad := *grant
		bad.Effect = Effect("maybe")
		assert.Error(t, bad.Validate())
	})

	t.Run("FieldsOnFieldlessPermission", func(t *testing.T) {
		bad := NewUserGrant(now, alice, sensor, PermissionDelete, EffectAllow, true, NewFieldList([]string{"a"}), nil, actor)
		assert.Error(t, bad.Validate(), "delete grants cannot carry a field list")
	})

	t.Run("EmptyFieldList", func(t *testing.T) {
		bad := *grant
		bad.Fields = FieldList{}
		assert.Error(t, bad.Validate(), "a non-nil field list must name at least one field")
	})

	t.Run("GrantedByUnset", func(t *testing.T) {
		bad := *grant
		bad.GrantedBy = ResourceID{}
		assert.Error(t, bad.Validate())
	})

	t.Run("InternalKindTarget", func(t *testing.T) {
		bad := NewUserGrant(now, alice, NewResourceID(GrantResourceKind), PermissionRead, EffectAllow, false, nil, nil, actor)
		assert.Error(t, bad.Validate(), "grants cannot target internal kinds")
	})
}

func TestMembershipGrantValidate(t *testing.T) {
	now := NewTime(time.Now())
	alice := NewUserID()
	actor := NewUserID()
	groupID := NewGroupID()

	membership := NewMembershipGrant(now, alice, groupID, nil, actor)
	require.NoError(t, membership.Validate())
	assert.Equal(t, PermissionMember, membership.Permission)
	assert.False(t, membership.Inherit)

	t.Run("MemberOnNonGroup", func(t *testing.T) {
		bad := NewUserGrant(now, alice, NewResourceID(SiteResourceKind), PermissionMember, EffectAllow, false, nil, nil, actor)
		assert.Error(t, bad.Validate())
	})

	t.Run("MemberCannotInherit", func(t *testing.T) {
		bad := *membership
		bad.Inherit = true
		assert.Error(t, bad.Validate())
	})

	t.Run("GroupCannotBeMember", func(t *testing.T) {
		bad := NewGroupGrant(now, NewGroupID(), groupID.ResourceID, PermissionMember, EffectAllow, false, nil, nil, actor)
		assert.Error(t, bad.Validate(), "groups cannot be members of groups")
	})
}

func TestGrantIsLive(t *testing.T) {
	now := NewTime(time.Now())
	alice := NewUserID()
	actor := NewUserID()
	site := NewResourceID(SiteResourceKind)

	forever := NewUserGrant(now, alice, site, PermissionRead, EffectAllow, true, nil, nil, actor)
	assert.True(t, forever.IsLive(now))

	expiresAt := NewTimePtr(now.Add(time.Hour))
	expiring := NewUserGrant(now, alice, site, PermissionRead, EffectAllow, true, nil, expiresAt, actor)
	assert.True(t, expiring.IsLive(now))
	assert.False(t, expiring.IsLive(NewTime(expiresAt.Time)), "a grant is inert from the expiry instant on")
	assert.False(t, expiring.IsLive(NewTime(expiresAt.Add(time.Minute))))
}
