package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type GrantID struct {
	ResourceID
}

func NewGrantID() GrantID {
	return GrantID{ResourceID: NewResourceID(GrantResourceKind)}
}

func GrantIDFromResourceID(id ResourceID) GrantID {
	return GrantID{ResourceID: id}
}

// GranteeType says whether a grant names a user or a group.
type GranteeType string

const (
	UserGranteeType  GranteeType = "user"
	GroupGranteeType GranteeType = "group"
)

func (t GranteeType) Valid() bool {
	return t == UserGranteeType || t == GroupGranteeType
}

func (t *GranteeType) Scan(src interface{}) error {
	if src == nil {
		*t = ""
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	*t = GranteeType(str)
	return nil
}

func (t GranteeType) Value() (driver.Value, error) {
	return string(t), nil
}

// Effect says whether a grant allows or denies its permission.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

func (e *Effect) Scan(src interface{}) error {
	if src == nil {
		*e = ""
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("error expected string: %#v", src)
	}
	*e = Effect(str)
	return nil
}

func (e Effect) Value() (driver.Value, error) {
	return string(e), nil
}

// Grant authorizes (or forbids) a grantee to exercise a permission against a
// resource. Group membership is itself a grant: permission member against a
// resource of kind group.
type Grant struct {
	ID        GrantID `json:"id" goqu:"skipupdate" db:"grant_id"`
	CreatedAt Time    `json:"granted_at" goqu:"skipupdate" db:"grant_created_at"`
	// GranteeType is user or group.
	GranteeType GranteeType `json:"grantee_type" db:"grant_grantee_type"`
	// GranteeID is the id of the user or group the grant applies to.
	GranteeID ResourceID `json:"grantee_id" db:"grant_grantee_id"`
	// ResourceKind is the kind of the target resource.
	ResourceKind ResourceKind `json:"resource_type" db:"grant_resource_kind"`
	// ResourceID is the id of the target resource.
	ResourceID ResourceID `json:"resource_id" db:"grant_resource_id"`
	Permission Permission  `json:"permission" db:"grant_permission"`
	Effect     Effect      `json:"effect" db:"grant_effect"`
	// Inherit controls whether the grant also applies to descendants of the
	// target resource. A non-inherited grant is visible to the exact resource
	// only.
	Inherit bool `json:"inherit" db:"grant_inherit"`
	// Fields restricts a read or write grant to a subset of the target's
	// fields. Nil means unrestricted.
	Fields FieldList `json:"fields,omitempty" db:"grant_fields"`
	// ExpiresAt makes the grant inert from that instant on. Nil means the
	// grant never expires.
	ExpiresAt *Time `json:"expires_at,omitempty" db:"grant_expires_at"`
	// GrantedBy is the id of the user that issued the grant.
	GrantedBy ResourceID `json:"granted_by" db:"grant_granted_by"`
}

func NewUserGrant(
	now Time,
	userID UserID,
	resourceID ResourceID,
	permission Permission,
	effect Effect,
	inherit bool,
	fields FieldList,
	expiresAt *Time,
	grantedBy UserID,
) *Grant {
	return &Grant{
		ID:           NewGrantID(),
		CreatedAt:    now,
		GranteeType:  UserGranteeType,
		GranteeID:    userID.ResourceID,
		ResourceKind: resourceID.Kind(),
		ResourceID:   resourceID,
		Permission:   permission,
		Effect:       effect,
		Inherit:      inherit,
		Fields:       fields,
		ExpiresAt:    expiresAt,
		GrantedBy:    grantedBy.ResourceID,
	}
}

func NewGroupGrant(
	now Time,
	groupID GroupID,
	resourceID ResourceID,
	permission Permission,
	effect Effect,
	inherit bool,
	fields FieldList,
	expiresAt *Time,
	grantedBy UserID,
) *Grant {
	return &Grant{
		ID:           NewGrantID(),
		CreatedAt:    now,
		GranteeType:  GroupGranteeType,
		GranteeID:    groupID.ResourceID,
		ResourceKind: resourceID.Kind(),
		ResourceID:   resourceID,
		Permission:   permission,
		Effect:       effect,
		Inherit:      inherit,
		Fields:       fields,
		ExpiresAt:    expiresAt,
		GrantedBy:    grantedBy.ResourceID,
	}
}

// NewMembershipGrant returns the grant that records user's membership of
// group. Memberships never inherit; there is nothing below a group.
func NewMembershipGrant(now Time, userID UserID, groupID GroupID, expiresAt *Time, grantedBy UserID) *Grant {
	return NewUserGrant(now, userID, groupID.ResourceID, PermissionMember, EffectAllow, false, nil, expiresAt, grantedBy)
}

func (m *Grant) GetKind() ResourceKind {
	return GrantResourceKind
}

func (m *Grant) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Grant) GetID() ResourceID {
	return m.ID.ResourceID
}

// IsLive returns true if the grant still contributes to decisions at now,
// i.e. it has not expired.
func (m *Grant) IsLive(now Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now.Time)
}

func (m *Grant) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if !m.GranteeType.Valid() {
		result = multierror.Append(result, errors.Errorf("error unknown grantee type %q", m.GranteeType))
	}
	if !m.GranteeID.Valid() {
		result = multierror.Append(result, errors.New("error grantee id must be set"))
	}
	switch m.GranteeType {
	case UserGranteeType:
		if m.GranteeID.Valid() && m.GranteeID.Kind() != UserResourceKind {
			result = multierror.Append(result, errors.Errorf("error grantee id must identify a user; got %q", m.GranteeID.Kind()))
		}
	case GroupGranteeType:
		if m.GranteeID.Valid() && m.GranteeID.Kind() != GroupResourceKind {
			result = multierror.Append(result, errors.Errorf("error grantee id must identify a group; got %q", m.GranteeID.Kind()))
		}
	}
	if !IsValidResourceKind(m.ResourceKind) {
		result = multierror.Append(result, errors.Errorf("error unknown resource kind %q", m.ResourceKind))
	}
	if !m.ResourceID.Valid() {
		result = multierror.Append(result, errors.New("error resource id must be set"))
	} else if m.ResourceID.Kind() != m.ResourceKind {
		result = multierror.Append(result, errors.Errorf("error resource id kind %q does not match resource kind %q", m.ResourceID.Kind(), m.ResourceKind))
	}
	if !IsValidPermission(m.Permission) {
		result = multierror.Append(result, errors.Errorf("error unknown permission %q", m.Permission))
	}
	if !m.Effect.Valid() {
		result = multierror.Append(result, errors.Errorf("error unknown effect %q", m.Effect))
	}
	if m.Permission == PermissionMember {
		if m.ResourceKind != GroupResourceKind {
			result = multierror.Append(result, errors.New("error member permission applies to groups only"))
		}
		if m.GranteeType != UserGranteeType {
			result = multierror.Append(result, errors.New("error member permission applies to user grantees only"))
		}
		if m.Inherit {
			result = multierror.Append(result, errors.New("error member grants cannot inherit"))
		}
	}
	if m.Fields != nil && !m.Permission.SupportsFields() {
		result = multierror.Append(result, errors.Errorf("error permission %q does not support a field list", m.Permission))
	}
	if m.Fields != nil && len(m.Fields) == 0 {
		result = multierror.Append(result, errors.New("error field list must name at least one field"))
	}
	if !m.GrantedBy.Valid() {
		result = multierror.Append(result, errors.New("error granted by must be set"))
	}
	return result.ErrorOrNil()
}
