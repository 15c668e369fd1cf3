package group

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// GroupService manages groups. Membership itself lives in the grants table;
// deleting a group therefore clears the grants held against it (its
// memberships) and the grants it holds on other resources.
type GroupService struct {
	db           *store.DB
	groupStore   store.GroupStore
	grantStore   store.GrantStore
	grantService services.GrantService
	cache        services.CacheService
	clock        clock.Clock
	logger.Log
}

func NewGroupService(
	db *store.DB,
	groupStore store.GroupStore,
	grantStore store.GrantStore,
	grantService services.GrantService,
	cache services.CacheService,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *GroupService {
	return &GroupService{
		db:           db,
		groupStore:   groupStore,
		grantStore:   grantStore,
		grantService: grantService,
		cache:        cache,
		clock:        clk,
		Log:          logFactory("GroupService"),
	}
}

// Create a new group. The creator receives a manage grant on it.
func (s *GroupService) Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, name, description string) (*models.Group, error) {
	group := models.NewGroup(models.NewTime(s.clock.Now()), name, description)
	err := s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		err := s.groupStore.Create(ctx, tx, group)
		if err != nil {
			return errors.Wrap(err, "error creating group")
		}
		_, err = s.grantService.AutoGrantManageOnCreate(ctx, tx, creatorID, group.ID.ResourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Infof("Created group %q (%s)", group.Name, group.ID)
	return group, nil
}

// Read an existing group, looking it up by ID.
func (s *GroupService) Read(ctx context.Context, txOrNil *store.Tx, id models.GroupID) (*models.Group, error) {
	return s.groupStore.Read(ctx, txOrNil, id)
}

// Delete a group together with its memberships and grants, then invalidate
// the decisions and group sets they backed.
func (s *GroupService) Delete(ctx context.Context, txOrNil *store.Tx, actorID models.UserID, id models.GroupID) error {
	var members []*models.Grant
	err := s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		var err error
		members, err = s.grantStore.ListMembersOfGroup(ctx, tx, id)
		if err != nil {
			return errors.Wrap(err, "error listing group members")
		}
		err = s.grantStore.DeleteAllForResource(ctx, tx, id.ResourceID)
		if err != nil {
			return errors.Wrap(err, "error deleting grants on group")
		}
		err = s.grantStore.DeleteAllForGrantee(ctx, tx, models.GroupGranteeType, id.ResourceID)
		if err != nil {
			return errors.Wrap(err, "error deleting grants held by group")
		}
		return s.groupStore.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.cache.DeletePrefix(ctx, services.DecisionCacheKeyPrefix)
	for _, membership := range members {
		userID := models.UserIDFromResourceID(membership.GranteeID)
		s.cache.Delete(ctx, services.UserGroupsCacheKey(userID))
	}
	s.Infof("Deleted group %s and %d membership(s)", id, len(members))
	return nil
}

// List pages through all groups, newest first.
func (s *GroupService) List(ctx context.Context, opts models.ListOptions) ([]*models.Group, error) {
	return s.groupStore.List(ctx, nil, opts)
}
