package membership

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// DefaultMembershipTTL applies when no TTL is configured.
const DefaultMembershipTTL = MembershipTTL(10 * time.Minute)

// MembershipTTL is how long cached group memberships live.
type MembershipTTL time.Duration

// MembershipService resolves group membership. Membership is a grant of the
// member permission against a group, so both directions are queries over the
// grants table.
type MembershipService struct {
	grantStore    store.GrantStore
	cache         services.CacheService
	membershipTTL time.Duration
	logger.Log
}

func NewMembershipService(
	grantStore store.GrantStore,
	cache services.CacheService,
	membershipTTL MembershipTTL,
	logFactory logger.LogFactory,
) *MembershipService {
	if membershipTTL <= 0 {
		membershipTTL = DefaultMembershipTTL
	}
	return &MembershipService{
		grantStore:    grantStore,
		cache:         cache,
		membershipTTL: time.Duration(membershipTTL),
		Log:           logFactory("MembershipService"),
	}
}

// GroupsOf returns the IDs of the groups the user currently belongs to.
// Expired memberships are already filtered by the store.
func (s *MembershipService) GroupsOf(ctx context.Context, userID models.UserID) ([]models.GroupID, error) {
	key := services.UserGroupsCacheKey(userID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		if groups, ok := cached.([]models.GroupID); ok {
			return groups, nil
		}
	}

	memberships, err := s.grantStore.ListMemberships(ctx, nil, userID)
	if err != nil {
		return nil, errors.Wrap(err, "error listing memberships")
	}
	groups := make([]models.GroupID, 0, len(memberships))
	for _, membership := range memberships {
		groups = append(groups, models.GroupIDFromResourceID(membership.ResourceID))
	}
	s.cache.Set(ctx, key, groups, s.membershipTTL)
	return groups, nil
}

// MembersOf returns the membership grants currently held against a group,
// oldest first. Uncached: member listings are rare compared to decisions.
func (s *MembershipService) MembersOf(ctx context.Context, groupID models.GroupID) ([]*models.Grant, error) {
	members, err := s.grantStore.ListMembersOfGroup(ctx, nil, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "error listing group members")
	}
	return members, nil
}
