package models

import (
	"database/sql/driver"
	"fmt"
)

type ResourceKind string

// The hierarchical resource kinds. Each non-root kind carries a single
// foreign key to its parent; see ParentKindOf.
const (
	SiteResourceKind   ResourceKind = "site"
	PlanResourceKind   ResourceKind = "plan"
	SensorResourceKind ResourceKind = "sensor"
	BrokerResourceKind ResourceKind = "broker"
	AlarmResourceKind  ResourceKind = "alarm"
	AlertResourceKind  ResourceKind = "alert"
)

// The standalone resource kinds. These do not inherit grants from any parent.
const (
	UserResourceKind              ResourceKind = "user"
	GroupResourceKind             ResourceKind = "group"
	DashboardResourceKind         ResourceKind = "dashboard"
	HardwareResourceKind          ResourceKind = "hardware"
	DatatypeResourceKind          ResourceKind = "datatype"
	ProtocolResourceKind          ResourceKind = "protocol"
	ParserResourceKind            ResourceKind = "parser"
	ManufacturerResourceKind      ResourceKind = "manufacturer"
	CommunicationModeResourceKind ResourceKind = "communication_mode"
)

// Internal resource kinds. These identify rows the service itself owns and
// can never be the target of a grant.
const (
	GrantResourceKind      ResourceKind = "grant"
	AuditEventResourceKind ResourceKind = "audit_event"
)

// parentKinds is the static parent map for the resource hierarchy:
// alert → alarm → sensor → plan → site, and broker → plan → site.
var parentKinds = map[ResourceKind]ResourceKind{
	AlertResourceKind:  AlarmResourceKind,
	AlarmResourceKind:  SensorResourceKind,
	SensorResourceKind: PlanResourceKind,
	BrokerResourceKind: PlanResourceKind,
	PlanResourceKind:   SiteResourceKind,
}

// catalogKinds are the admin-managed catalog kinds. Every authenticated user
// may read them by default; mutating them requires a superuser.
var catalogKinds = map[ResourceKind]bool{
	HardwareResourceKind:          true,
	DatatypeResourceKind:          true,
	ProtocolResourceKind:          true,
	ParserResourceKind:            true,
	ManufacturerResourceKind:      true,
	CommunicationModeResourceKind: true,
}

var allResourceKinds = map[ResourceKind]bool{
	SiteResourceKind:              true,
	PlanResourceKind:              true,
	SensorResourceKind:            true,
	BrokerResourceKind:            true,
	AlarmResourceKind:             true,
	AlertResourceKind:             true,
	UserResourceKind:              true,
	GroupResourceKind:             true,
	DashboardResourceKind:         true,
	HardwareResourceKind:          true,
	DatatypeResourceKind:          true,
	ProtocolResourceKind:          true,
	ParserResourceKind:            true,
	ManufacturerResourceKind:      true,
	CommunicationModeResourceKind: true,
}

// ParentKindOf returns the kind of the parent of the supplied hierarchical
// kind, or empty and false for root and standalone kinds.
func ParentKindOf(kind ResourceKind) (ResourceKind, bool) {
	parent, ok := parentKinds[kind]
	return parent, ok
}

// IsHierarchical returns true if resources of this kind participate in the
// site hierarchy, either as the root or via a parent foreign key.
func IsHierarchical(kind ResourceKind) bool {
	if kind == SiteResourceKind {
		return true
	}
	_, ok := parentKinds[kind]
	return ok
}

// IsCatalogKind returns true if the kind is an admin-managed catalog kind.
func IsCatalogKind(kind ResourceKind) bool {
	return catalogKinds[kind]
}

// IsValidResourceKind returns true if the kind names a known resource kind
// that can be the target of a grant.
func IsValidResourceKind(kind ResourceKind) bool {
	return allResourceKinds[kind]
}

func (s ResourceKind) String() string {
	return string(s)
}

func (s *ResourceKind) Scan(src interface{}) error {
	if src == nil {
		*s = ""
		return nil
	}
	t, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	*s = ResourceKind(t)
	return nil
}

func (s ResourceKind) Value() (driver.Value, error) {
	return string(s), nil
}
