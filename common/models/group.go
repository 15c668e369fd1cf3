package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type GroupID struct {
	ResourceID
}

func NewGroupID() GroupID {
	return GroupID{ResourceID: NewResourceID(GroupResourceKind)}
}

func GroupIDFromResourceID(id ResourceID) GroupID {
	return GroupID{ResourceID: id}
}

// Group is a named set of users. Membership is recorded as a grant of
// permission member against the group, so a membership can expire or be
// revoked like any other grant.
type Group struct {
	ID        GroupID `json:"id" goqu:"skipupdate" db:"group_id"`
	CreatedAt Time    `json:"created_at" goqu:"skipupdate" db:"group_created_at"`
	UpdatedAt Time    `json:"updated_at" db:"group_updated_at"`
	// Name uniquely identifies the group.
	Name        string `json:"name" db:"group_name"`
	Description string `json:"description" db:"group_description"`
}

func NewGroup(now Time, name string, description string) *Group {
	return &Group{
		ID:          NewGroupID(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        name,
		Description: description,
	}
}

func (m *Group) GetKind() ResourceKind {
	return GroupResourceKind
}

func (m *Group) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Group) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *Group) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Name == "" {
		result = multierror.Append(result, errors.New("error name must be set"))
	}
	return result.ErrorOrNil()
}
