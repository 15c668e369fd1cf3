package services

import (
	"context"
	"time"

	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/dto"
	"github.com/siteguard/siteguard/server/store"
)

type AuthorizationService interface {
	// Check decides whether the user may exercise the permission on the
	// resource, and under which field restriction. A denied decision is a
	// normal result, not an error. Unknown users surface as gerror.ErrNotFound.
	Check(ctx context.Context, userID models.UserID, resourceID models.ResourceID, permission models.Permission) (models.Decision, error)
	// BulkCheck runs Check for each request and returns one decision per
	// request, in the same order.
	BulkCheck(ctx context.Context, userID models.UserID, requests []models.CheckRequest) ([]models.Decision, error)
	// CheckOrError is the verbose form of Check: a denied decision is raised
	// as gerror.ErrForbidden describing the permissions the user does hold on
	// the resource, and a denied audit event is appended.
	CheckOrError(ctx context.Context, userID models.UserID, resourceID models.ResourceID, permission models.Permission) (models.Decision, error)
	// Effective returns every grant gathered for (user, resource) under the
	// same rules Check uses, annotated with origin, depth and applicability.
	Effective(ctx context.Context, userID models.UserID, resourceID models.ResourceID) ([]*models.EffectiveGrant, error)
	// Matrix builds the permission matrix for a resource: one row per grantee
	// holding any grant on the resource or its ancestors, one cell per
	// permission in the strength lattice. Rows are sorted groups before
	// users, then by name.
	Matrix(ctx context.Context, resourceID models.ResourceID) ([]*models.MatrixRow, error)
	// InheritanceTree returns the forest of hierarchical resources the user
	// can touch, rooted at sites, with per-node allow and deny annotations.
	InheritanceTree(ctx context.Context, userID models.UserID) ([]*models.InheritanceNode, error)
}

type MembershipService interface {
	// GroupsOf returns the IDs of the groups the user currently belongs to.
	GroupsOf(ctx context.Context, userID models.UserID) ([]models.GroupID, error)
	// MembersOf returns the membership grants currently held against a group.
	MembersOf(ctx context.Context, groupID models.GroupID) ([]*models.Grant, error)
}

type HierarchyService interface {
	// Ancestors returns the resource's ancestor chain, depth 0 first. A
	// standalone resource's chain is just itself. The chain truncates at the
	// first missing row.
	Ancestors(ctx context.Context, resourceID models.ResourceID) ([]models.AncestorLink, error)
	// InheritanceChain is Ancestors with display names resolved.
	InheritanceChain(ctx context.Context, resourceID models.ResourceID) ([]models.AncestorLink, error)
	// InvalidateAncestors drops cached ancestor chains for a resource, e.g.
	// after a re-parent.
	InvalidateAncestors(ctx context.Context, resourceID models.ResourceID)
}

type GrantService interface {
	// Issue validates and persists a grant, appends a granted audit event in
	// the same transaction, and invalidates the affected cache entries.
	// The grant's GrantedBy identifies the actor.
	// Returns gerror.ErrAlreadyExists if an equivalent live grant exists.
	Issue(ctx context.Context, txOrNil *store.Tx, grant *models.Grant) (*models.Grant, error)
	// Revoke deletes a grant, appends a revoked audit event in the same
	// transaction, and invalidates the affected cache entries.
	// Returns gerror.ErrNotFound if the grant does not exist or has expired.
	Revoke(ctx context.Context, txOrNil *store.Tx, actorID models.UserID, id models.GrantID) error
	// Read an existing grant, looking it up by ID.
	Read(ctx context.Context, txOrNil *store.Tx, id models.GrantID) (*models.Grant, error)
	// AutoGrantManageOnCreate issues the creator's manage grant on a freshly
	// created resource. Call it inside the transaction creating the resource.
	AutoGrantManageOnCreate(ctx context.Context, tx *store.Tx, creatorID models.UserID, resourceID models.ResourceID) (*models.Grant, error)
	// AutoGrantMember adds a user to a group by issuing a membership grant.
	// Returns gerror.ErrAlreadyExists if the user is already a member.
	AutoGrantMember(ctx context.Context, txOrNil *store.Tx, actorID models.UserID, userID models.UserID, groupID models.GroupID, expiresAt *models.Time) (*models.Grant, error)
	// ListForResource lists the live grants attached directly to a resource.
	ListForResource(ctx context.Context, resourceID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error)
	// ListForUser returns the live grants a user holds, both directly and
	// through group membership.
	ListForUser(ctx context.Context, userID models.UserID) ([]*models.Grant, error)
	// ListExpiring returns live grants whose expiry falls within the supplied
	// window from now, soonest first.
	ListExpiring(ctx context.Context, within time.Duration) ([]*models.Grant, error)
}

type AuditService interface {
	// List pages through audit events matching the filter, newest first.
	// Only superusers may read the audit log; anyone else gets
	// gerror.ErrForbidden.
	List(ctx context.Context, callerID models.UserID, filter models.AuditEventFilter, opts models.ListOptions) ([]*models.AuditEvent, error)
}

type UserService interface {
	// Create a new user. The creator receives a manage grant on the account;
	// a zero creatorID (bootstrap) grants manage to the account itself.
	Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, create *dto.CreateUser) (*models.User, error)
	// Read an existing user, looking it up by ID.
	Read(ctx context.Context, txOrNil *store.Tx, id models.UserID) (*models.User, error)
	// ReadByUsername reads an existing user, looking it up by username.
	ReadByUsername(ctx context.Context, txOrNil *store.Tx, username string) (*models.User, error)
	// Update applies a partial update to a user. Self-service updates are
	// limited to the self-editable fields; username, is_admin and disabled
	// require a superuser actor regardless of grants.
	Update(ctx context.Context, actorID models.UserID, targetID models.UserID, update *dto.UpdateUser) (*models.User, error)
	// Authenticate verifies a username/password pair.
	// Returns gerror.ErrUnauthorized on a bad pair and
	// gerror.ErrAccountDisabled for a disabled account.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// BootstrapSuperuser ensures the configured superuser account exists.
	BootstrapSuperuser(ctx context.Context, username, password string) (*models.User, error)
	// List pages through all users, newest first.
	List(ctx context.Context, opts models.ListOptions) ([]*models.User, error)
}

type GroupService interface {
	// Create a new group. The creator receives a manage grant on it.
	Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, name, description string) (*models.Group, error)
	// Read an existing group, looking it up by ID.
	Read(ctx context.Context, txOrNil *store.Tx, id models.GroupID) (*models.Group, error)
	// Delete a group together with its memberships and grants.
	Delete(ctx context.Context, txOrNil *store.Tx, actorID models.UserID, id models.GroupID) error
	// List pages through all groups, newest first.
	List(ctx context.Context, opts models.ListOptions) ([]*models.Group, error)
}

type ResourceService interface {
	// Create registers a resource and issues the creator's manage grant in
	// the same transaction.
	Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, record *models.ResourceRecord) (*models.ResourceRecord, error)
	// Read an existing resource record, looking it up by ID.
	Read(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) (*models.ResourceRecord, error)
	// Reparent moves a resource under a new parent and invalidates cached
	// ancestor chains for it.
	Reparent(ctx context.Context, txOrNil *store.Tx, id models.ResourceID, newParentID models.ResourceID) (*models.ResourceRecord, error)
	// Delete removes a resource record together with the grants attached
	// to it.
	Delete(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) error
}

// CacheService is a best-effort TTL cache. Misses and errors fall through to
// the store; failures are logged, never surfaced.
type CacheService interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string)
	Flush(ctx context.Context)
}

// Notifier delivers grant expiry warnings. The transport is pluggable; the
// default implementation writes structured log records.
type Notifier interface {
	Notify(ctx context.Context, notification *dto.ExpiryNotification) error
}
