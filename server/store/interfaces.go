package store

import (
	"context"

	"github.com/siteguard/siteguard/common/models"
)

type UserStore interface {
	// Create a new user.
	// Returns gerror.ErrAlreadyExists if a user with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, user *models.User) error
	// Read an existing user, looking it up by ID.
	// Returns gerror.ErrNotFound if the user does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.UserID) (*models.User, error)
	// ReadByUsername reads an existing user, looking it up by username.
	// Returns gerror.ErrNotFound if the user does not exist.
	ReadByUsername(ctx context.Context, txOrNil *Tx, username string) (*models.User, error)
	// FindOrCreate creates the supplied user if no user with its username already
	// exists, otherwise it reads and returns the existing user unchanged.
	// Returns the user as it is in the database, and true iff a new user was created.
	FindOrCreate(ctx context.Context, txOrNil *Tx, user *models.User) (*models.User, bool, error)
	// Update an existing user. Overrides all previous values using the supplied model.
	// Returns gerror.ErrNotFound if the user does not exist.
	Update(ctx context.Context, txOrNil *Tx, user *models.User) error
	// Delete permanently and idempotently deletes a user.
	Delete(ctx context.Context, txOrNil *Tx, id models.UserID) error
	// List pages through all users, newest first.
	List(ctx context.Context, txOrNil *Tx, opts models.ListOptions) ([]*models.User, error)
}

type GroupStore interface {
	// Create a new group.
	// Returns gerror.ErrAlreadyExists if a group with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, group *models.Group) error
	// Read an existing group, looking it up by ID.
	// Returns gerror.ErrNotFound if the group does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.GroupID) (*models.Group, error)
	// ReadByName reads an existing group, looking it up by its unique name.
	// Returns gerror.ErrNotFound if the group does not exist.
	ReadByName(ctx context.Context, txOrNil *Tx, name string) (*models.Group, error)
	// Update an existing group. Overrides all previous values using the supplied model.
	// Returns gerror.ErrNotFound if the group does not exist.
	Update(ctx context.Context, txOrNil *Tx, group *models.Group) error
	// Delete permanently and idempotently deletes a group.
	// The caller is responsible for first deleting the group's grants and memberships.
	Delete(ctx context.Context, txOrNil *Tx, id models.GroupID) error
	// List pages through all groups, newest first.
	List(ctx context.Context, txOrNil *Tx, opts models.ListOptions) ([]*models.Group, error)
	// ReadNames resolves display names for the supplied group IDs. Unknown IDs
	// are omitted from the result.
	ReadNames(ctx context.Context, txOrNil *Tx, ids []models.GroupID) (map[models.ResourceID]string, error)
}

type ResourceStore interface {
	// Create registers a new resource in the hierarchy.
	// Returns gerror.ErrAlreadyExists if a resource with this ID already exists.
	Create(ctx context.Context, txOrNil *Tx, record *models.ResourceRecord) error
	// Read an existing resource record, looking it up by ID.
	// Returns gerror.ErrNotFound if the resource does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.ResourceID) (*models.ResourceRecord, error)
	// Update an existing resource record, e.g. to rename or re-parent it.
	// Returns gerror.ErrNotFound if the resource does not exist.
	Update(ctx context.Context, txOrNil *Tx, record *models.ResourceRecord) error
	// Delete permanently and idempotently deletes a resource record.
	// The caller is responsible for the resource's grants and descendants.
	Delete(ctx context.Context, txOrNil *Tx, id models.ResourceID) error
	// ListByParent lists the direct children of the supplied resource, newest first.
	ListByParent(ctx context.Context, txOrNil *Tx, parentID models.ResourceID, opts models.ListOptions) ([]*models.ResourceRecord, error)
	// ListByKind pages through all resources of a kind, newest first.
	ListByKind(ctx context.Context, txOrNil *Tx, kind models.ResourceKind, opts models.ListOptions) ([]*models.ResourceRecord, error)
}

type GrantStore interface {
	// Create a new grant.
	// Returns gerror.ErrAlreadyExists if an equivalent live grant already exists.
	Create(ctx context.Context, txOrNil *Tx, grant *models.Grant) error
	// Read an existing grant, looking it up by ID. Expired grants are not returned.
	// Returns gerror.ErrNotFound if the grant does not exist or has expired.
	Read(ctx context.Context, txOrNil *Tx, id models.GrantID) (*models.Grant, error)
	// Delete permanently and idempotently deletes a grant, identifying it by id.
	Delete(ctx context.Context, txOrNil *Tx, id models.GrantID) error
	// ListForDecision returns every live grant eligible to decide the supplied
	// request: any combination of the grantee set (the user plus their groups),
	// the resource set (the resource plus its ancestors) and the permission
	// set (the permission's strength closure).
	ListForDecision(ctx context.Context, txOrNil *Tx, grantees []models.ResourceID, resources []models.ResourceID, permissions []models.Permission) ([]*models.Grant, error)
	// ListForGranteeSet returns every live grant held by any of the supplied
	// grantees, oldest first.
	ListForGranteeSet(ctx context.Context, txOrNil *Tx, grantees []models.ResourceID) ([]*models.Grant, error)
	// ListForResourceSet returns every live grant attached to any of the
	// supplied resources, oldest first.
	ListForResourceSet(ctx context.Context, txOrNil *Tx, resources []models.ResourceID) ([]*models.Grant, error)
	// ListByResource lists all live grants attached directly to a resource, newest first.
	ListByResource(ctx context.Context, txOrNil *Tx, resourceID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error)
	// ListByGrantee lists all live grants held directly by a grantee, newest first.
	ListByGrantee(ctx context.Context, txOrNil *Tx, granteeType models.GranteeType, granteeID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error)
	// ListMemberships returns the live membership grants for a user: the
	// grants of permission member held by the user against any group.
	ListMemberships(ctx context.Context, txOrNil *Tx, userID models.UserID) ([]*models.Grant, error)
	// ListMembersOfGroup returns the live membership grants against a group.
	ListMembersOfGroup(ctx context.Context, txOrNil *Tx, groupID models.GroupID) ([]*models.Grant, error)
	// ListExpired returns grants whose expiry time is at or before the supplied
	// instant, oldest expiry first, up to limit rows.
	ListExpired(ctx context.Context, txOrNil *Tx, now models.Time, limit int) ([]*models.Grant, error)
	// ListExpiringBetween returns live grants whose expiry time falls in
	// (from, until], soonest first.
	ListExpiringBetween(ctx context.Context, txOrNil *Tx, from models.Time, until models.Time) ([]*models.Grant, error)
	// DeleteAllForGrantee permanently and idempotently deletes all grants held by a grantee.
	DeleteAllForGrantee(ctx context.Context, txOrNil *Tx, granteeType models.GranteeType, granteeID models.ResourceID) error
	// DeleteAllForResource permanently and idempotently deletes all grants attached to a resource.
	DeleteAllForResource(ctx context.Context, txOrNil *Tx, resourceID models.ResourceID) error
}

type AuditEventStore interface {
	// Create appends a new audit event. The event's sequence number is
	// assigned by the database.
	Create(ctx context.Context, txOrNil *Tx, event *models.AuditEvent) error
	// Read an existing audit event, looking it up by ID.
	// Returns gerror.ErrNotFound if the event does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.AuditEventID) (*models.AuditEvent, error)
	// List pages through audit events matching the supplied filter, newest
	// first with sequence number as the tie-breaker.
	List(ctx context.Context, txOrNil *Tx, filter models.AuditEventFilter, opts models.ListOptions) ([]*models.AuditEvent, error)
}
