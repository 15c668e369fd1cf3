package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// GrantService owns the grant lifecycle: every issue and revoke persists the
// grant, appends its audit event in the same transaction, and then runs the
// cache invalidation protocol.
type GrantService struct {
	db              *store.DB
	userStore       store.UserStore
	groupStore      store.GroupStore
	resourceStore   store.ResourceStore
	grantStore      store.GrantStore
	auditEventStore store.AuditEventStore
	membership      services.MembershipService
	cache           services.CacheService
	clock           clock.Clock
	logger.Log
}

func NewGrantService(
	db *store.DB,
	userStore store.UserStore,
	groupStore store.GroupStore,
	resourceStore store.ResourceStore,
	grantStore store.GrantStore,
	auditEventStore store.AuditEventStore,
	membership services.MembershipService,
	cache services.CacheService,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *GrantService {
	return &GrantService{
		db:              db,
		userStore:       userStore,
		groupStore:      groupStore,
		resourceStore:   resourceStore,
		grantStore:      grantStore,
		auditEventStore: auditEventStore,
		membership:      membership,
		cache:           cache,
		clock:           clk,
		Log:             logFactory("GrantService"),
	}
}

// Issue validates and persists a grant, appends a granted audit event in the
// same transaction and invalidates the affected cache entries. The grant's
// GrantedBy identifies the actor.
func (s *GrantService) Issue(ctx context.Context, txOrNil *store.Tx, grant *models.Grant) (*models.Grant, error) {
	err := grant.Validate()
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
	}
	now := models.NewTime(s.clock.Now())
	if grant.ExpiresAt != nil && !grant.ExpiresAt.After(now.Time) {
		return nil, gerror.NewErrValidationFailed("expires_at must be in the future")
	}

	err = s.checkGranteeExists(ctx, txOrNil, grant)
	if err != nil {
		return nil, err
	}
	err = s.checkResourceExists(ctx, txOrNil, grant.ResourceID)
	if err != nil {
		return nil, err
	}

	// The database's uniqueness index cannot see liveness, so an equivalent
	// live grant is rejected here first.
	existing, err := s.grantStore.ListForDecision(ctx, txOrNil,
		[]models.ResourceID{grant.GranteeID},
		[]models.ResourceID{grant.ResourceID},
		[]models.Permission{grant.Permission})
	if err != nil {
		return nil, errors.Wrap(err, "error checking for existing grant")
	}
	if len(existing) > 0 {
		return nil, gerror.NewErrAlreadyExists(fmt.Sprintf(
			"a live %s grant for %s on %s already exists", grant.Permission, grant.GranteeID, grant.ResourceID))
	}

	err = s.persistWithAudit(ctx, txOrNil, grant, models.AuditEventGranted, grant.GrantedBy, "")
	if err != nil {
		return nil, err
	}
	s.invalidateFor(ctx, grant)
	return grant, nil
}

// Revoke deletes a grant, appends a revoked audit event in the same
// transaction and invalidates the affected cache entries.
func (s *GrantService) Revoke(ctx context.Context, txOrNil *store.Tx, actorID models.UserID, id models.GrantID) error {
	grant, err := s.grantStore.Read(ctx, txOrNil, id)
	if err != nil {
		return errors.Wrap(err, "error reading grant")
	}
	err = s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		err := s.grantStore.Delete(ctx, tx, id)
		if err != nil {
			return errors.Wrap(err, "error deleting grant")
		}
		event := models.NewGrantAuditEvent(models.NewTime(s.clock.Now()), models.AuditEventRevoked, actorID.ResourceID, grant, "")
		err = s.auditEventStore.Create(ctx, tx, event)
		if err != nil {
			return errors.Wrap(err, "error appending audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateFor(ctx, grant)
	return nil
}

// Read an existing grant, looking it up by ID.
func (s *GrantService) Read(ctx context.Context, txOrNil *store.Tx, id models.GrantID) (*models.Grant, error) {
	return s.grantStore.Read(ctx, txOrNil, id)
}

// AutoGrantManageOnCreate issues the creator's manage grant on a freshly
// created resource. It runs inside the transaction creating the resource, so
// existence checks are skipped; the grant is as revocable as any other.
func (s *GrantService) AutoGrantManageOnCreate(ctx context.Context, tx *store.Tx, creatorID models.UserID, resourceID models.ResourceID) (*models.Grant, error) {
	now := models.NewTime(s.clock.Now())
	grant := models.NewUserGrant(now, creatorID, resourceID, models.PermissionManage, models.EffectAllow, true, nil, nil, creatorID)
	err := grant.Validate()
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
	}
	err = s.persistWithAudit(ctx, tx, grant, models.AuditEventGranted, creatorID.ResourceID, "auto-granted on create")
	if err != nil {
		return nil, err
	}
	s.invalidateFor(ctx, grant)
	return grant, nil
}

// AutoGrantMember adds a user to a group by issuing a membership grant.
func (s *GrantService) AutoGrantMember(
	ctx context.Context,
	txOrNil *store.Tx,
	actorID models.UserID,
	userID models.UserID,
	groupID models.GroupID,
	expiresAt *models.Time,
) (*models.Grant, error) {
	grant := models.NewMembershipGrant(models.NewTime(s.clock.Now()), userID, groupID, expiresAt, actorID)
	return s.Issue(ctx, txOrNil, grant)
}

// ListForResource lists the live grants attached directly to a resource.
func (s *GrantService) ListForResource(ctx context.Context, resourceID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error) {
	return s.grantStore.ListByResource(ctx, nil, resourceID, opts)
}

// ListForUser returns the live grants a user holds, both directly and
// through group membership, oldest first.
func (s *GrantService) ListForUser(ctx context.Context, userID models.UserID) ([]*models.Grant, error) {
	groups, err := s.membership.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	grantees := make([]models.ResourceID, 0, len(groups)+1)
	grantees = append(grantees, userID.ResourceID)
	for _, groupID := range groups {
		grantees = append(grantees, groupID.ResourceID)
	}
	return s.grantStore.ListForGranteeSet(ctx, nil, grantees)
}

// ListExpiring returns live grants whose expiry falls within the supplied
// window from now, soonest first.
func (s *GrantService) ListExpiring(ctx context.Context, within time.Duration) ([]*models.Grant, error) {
	now := s.clock.Now()
	return s.grantStore.ListExpiringBetween(ctx, nil, models.NewTime(now), models.NewTime(now.Add(within)))
}

func (s *GrantService) checkGranteeExists(ctx context.Context, txOrNil *store.Tx, grant *models.Grant) error {
	switch grant.GranteeType {
	case models.UserGranteeType:
		_, err := s.userStore.Read(ctx, txOrNil, models.UserIDFromResourceID(grant.GranteeID))
		return errors.Wrap(err, "error reading grantee user")
	case models.GroupGranteeType:
		_, err := s.groupStore.Read(ctx, txOrNil, models.GroupIDFromResourceID(grant.GranteeID))
		return errors.Wrap(err, "error reading grantee group")
	}
	return nil
}

func (s *GrantService) checkResourceExists(ctx context.Context, txOrNil *store.Tx, resourceID models.ResourceID) error {
	switch resourceID.Kind() {
	case models.UserResourceKind:
		_, err := s.userStore.Read(ctx, txOrNil, models.UserIDFromResourceID(resourceID))
		return errors.Wrap(err, "error reading target user")
	case models.GroupResourceKind:
		_, err := s.groupStore.Read(ctx, txOrNil, models.GroupIDFromResourceID(resourceID))
		return errors.Wrap(err, "error reading target group")
	default:
		_, err := s.resourceStore.Read(ctx, txOrNil, resourceID)
		return errors.Wrap(err, "error reading target resource")
	}
}

func (s *GrantService) persistWithAudit(
	ctx context.Context,
	txOrNil *store.Tx,
	grant *models.Grant,
	kind models.AuditEventKind,
	actorID models.ResourceID,
	detail string,
) error {
	return s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		err := s.grantStore.Create(ctx, tx, grant)
		if err != nil {
			return errors.Wrap(err, "error creating grant")
		}
		event := models.NewGrantAuditEvent(models.NewTime(s.clock.Now()), kind, actorID, grant, detail)
		err = s.auditEventStore.Create(ctx, tx, event)
		if err != nil {
			return errors.Wrap(err, "error appending audit event")
		}
		return nil
	})
}

// invalidateFor runs the cache invalidation protocol for a changed grant.
// A grant to a user drops that user's decisions; a grant to a group drops
// every decision, since group fan-out is not tracked. A membership change
// additionally drops the user's cached group set.
func (s *GrantService) invalidateFor(ctx context.Context, grant *models.Grant) {
	switch grant.GranteeType {
	case models.UserGranteeType:
		userID := models.UserIDFromResourceID(grant.GranteeID)
		s.cache.DeletePrefix(ctx, services.DecisionCacheKeyPrefixForUser(userID))
		if grant.Permission == models.PermissionMember && grant.ResourceKind == models.GroupResourceKind {
			s.cache.Delete(ctx, services.UserGroupsCacheKey(userID))
		}
	case models.GroupGranteeType:
		s.cache.DeletePrefix(ctx, services.DecisionCacheKeyPrefix)
	}
}
