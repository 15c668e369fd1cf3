package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type AuditEventID struct {
	ResourceID
}

func NewAuditEventID() AuditEventID {
	return AuditEventID{ResourceID: NewResourceID(AuditEventResourceKind)}
}

func AuditEventIDFromResourceID(id ResourceID) AuditEventID {
	return AuditEventID{ResourceID: id}
}

// AuditEventKind classifies an audit log entry.
type AuditEventKind string

const (
	// AuditEventGranted records the issue of a grant.
	AuditEventGranted AuditEventKind = "granted"
	// AuditEventRevoked records the revocation of a grant.
	AuditEventRevoked AuditEventKind = "revoked"
	// AuditEventDenied records a verbose permission denial. Routine false
	// decisions are not logged.
	AuditEventDenied AuditEventKind = "denied"
	// AuditEventExpired records the harvest of an expired grant by the
	// expiration worker.
	AuditEventExpired AuditEventKind = "expired"
)

func (k AuditEventKind) Valid() bool {
	switch k {
	case AuditEventGranted, AuditEventRevoked, AuditEventDenied, AuditEventExpired:
		return true
	}
	return false
}

func (k *AuditEventKind) Scan(src interface{}) error {
	if src == nil {
		*k = ""
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	*k = AuditEventKind(str)
	return nil
}

func (k AuditEventKind) Value() (driver.Value, error) {
	return string(k), nil
}

// AuditEvent is an append-only record of a grant lifecycle change or a
// verbose denial. Sequence is assigned by the store and fixes a total order
// among events sharing a timestamp.
type AuditEvent struct {
	// Sequence is a monotonically increasing number assigned on insert.
	Sequence   int64        `json:"sequence" goqu:"skipinsert,skipupdate" db:"audit_event_sequence"`
	ID         AuditEventID `json:"id" goqu:"skipupdate" db:"audit_event_id"`
	OccurredAt Time         `json:"occurred_at" goqu:"skipupdate" db:"audit_event_created_at"`
	Kind       AuditEventKind `json:"kind" db:"audit_event_kind"`
	// ActorID is the user that caused the event, or zero for events the
	// system produced on its own, such as expirations.
	ActorID ResourceID `json:"actor_id,omitempty" db:"audit_event_actor_id"`
	// GranteeType and GranteeID name the grantee of the grant the event is
	// about, or the denied user for denied events.
	GranteeType GranteeType `json:"grantee_type" db:"audit_event_grantee_type"`
	GranteeID   ResourceID  `json:"grantee_id" db:"audit_event_grantee_id"`
	// ResourceKind and ResourceID name the target resource.
	ResourceKind ResourceKind `json:"resource_type" db:"audit_event_resource_kind"`
	ResourceID   ResourceID   `json:"resource_id" db:"audit_event_resource_id"`
	Permission   Permission   `json:"permission" db:"audit_event_permission"`
	// GrantID is the grant the event is about, where one exists. Denied
	// events have no grant.
	GrantID ResourceID `json:"grant_id,omitempty" db:"audit_event_grant_id"`
	// Detail carries a human-readable description of the event.
	Detail string `json:"detail,omitempty" db:"audit_event_detail"`
}

// NewGrantAuditEvent records a lifecycle event for the supplied grant.
func NewGrantAuditEvent(now Time, kind AuditEventKind, actorID ResourceID, grant *Grant, detail string) *AuditEvent {
	return &AuditEvent{
		ID:           NewAuditEventID(),
		OccurredAt:   now,
		Kind:         kind,
		ActorID:      actorID,
		GranteeType:  grant.GranteeType,
		GranteeID:    grant.GranteeID,
		ResourceKind: grant.ResourceKind,
		ResourceID:   grant.ResourceID,
		Permission:   grant.Permission,
		GrantID:      grant.ID.ResourceID,
		Detail:       detail,
	}
}

// NewDeniedAuditEvent records a verbose permission denial for a user against
// a resource.
func NewDeniedAuditEvent(now Time, userID UserID, resourceID ResourceID, permission Permission, detail string) *AuditEvent {
	return &AuditEvent{
		ID:           NewAuditEventID(),
		OccurredAt:   now,
		Kind:         AuditEventDenied,
		ActorID:      userID.ResourceID,
		GranteeType:  UserGranteeType,
		GranteeID:    userID.ResourceID,
		ResourceKind: resourceID.Kind(),
		ResourceID:   resourceID,
		Permission:   permission,
		Detail:       detail,
	}
}

func (m *AuditEvent) GetKind() ResourceKind {
	return AuditEventResourceKind
}

func (m *AuditEvent) GetCreatedAt() Time {
	return m.OccurredAt
}

func (m *AuditEvent) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *AuditEvent) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.OccurredAt.IsZero() {
		result = multierror.Append(result, errors.New("error occurred at must be set"))
	}
	if !m.Kind.Valid() {
		result = multierror.Append(result, errors.Errorf("error unknown audit event kind %q", m.Kind))
	}
	if !m.GranteeID.Valid() {
		result = multierror.Append(result, errors.New("error grantee id must be set"))
	}
	if !m.ResourceID.Valid() {
		result = multierror.Append(result, errors.New("error resource id must be set"))
	}
	return result.ErrorOrNil()
}
