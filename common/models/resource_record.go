package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ResourceRecord registers an authorizable resource with the service: its
// kind, display name and position in the hierarchy. The business data behind
// the resource lives elsewhere; the engine only needs the registry row to
// walk ancestors and resolve names.
type ResourceRecord struct {
	ID        ResourceID   `json:"id" goqu:"skipupdate" db:"resource_id"`
	CreatedAt Time         `json:"created_at" goqu:"skipupdate" db:"resource_created_at"`
	Kind      ResourceKind `json:"kind" db:"resource_kind"`
	Name      string       `json:"name" db:"resource_name"`
	// ParentID is the id of the parent resource for hierarchical kinds, or
	// zero for roots and standalone kinds.
	ParentID ResourceID `json:"parent_id,omitempty" db:"resource_parent_id"`
}

func NewResourceRecord(now Time, id ResourceID, name string, parentID ResourceID) *ResourceRecord {
	return &ResourceRecord{
		ID:        id,
		CreatedAt: now,
		Kind:      id.Kind(),
		Name:      name,
		ParentID:  parentID,
	}
}

func (m *ResourceRecord) GetKind() ResourceKind {
	return m.Kind
}

func (m *ResourceRecord) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *ResourceRecord) GetID() ResourceID {
	return m.ID
}

func (m *ResourceRecord) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if !IsValidResourceKind(m.Kind) {
		result = multierror.Append(result, errors.Errorf("error unknown resource kind %q", m.Kind))
	}
	if m.ID.Valid() && m.ID.Kind() != m.Kind {
		result = multierror.Append(result, errors.Errorf("error id kind %q does not match kind %q", m.ID.Kind(), m.Kind))
	}
	if m.Name == "" {
		result = multierror.Append(result, errors.New("error name must be set"))
	}
	parentKind, hasParent := ParentKindOf(m.Kind)
	if hasParent {
		if !m.ParentID.Valid() {
			result = multierror.Append(result, errors.Errorf("error %s resources must have a parent", m.Kind))
		} else if m.ParentID.Kind() != parentKind {
			result = multierror.Append(result, errors.Errorf("error parent of a %s must be a %s; got %q", m.Kind, parentKind, m.ParentID.Kind()))
		}
	} else if m.ParentID.Valid() {
		result = multierror.Append(result, errors.Errorf("error %s resources cannot have a parent", m.Kind))
	}
	return result.ErrorOrNil()
}
