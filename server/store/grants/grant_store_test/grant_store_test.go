package grant_store_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store/grants"
	"github.com/siteguard/siteguard/server/store/store_test"
)

// connect builds a grant store against the test database with a mock clock
// so tests can move time forward past grant expiries.
func connect(t *testing.T) (*grants.GrantStore, *clock.Mock, context.Context) {
	ctx := context.Background()

	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	mock := clock.NewMock()
	mock.Set(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))

	return grants.NewStore(db, logFactory, mock), mock, ctx
}

func TestGrantStoreCRUD(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	now := models.NewTime(mock.Now())

	alice := models.NewUserID()
	actor := models.NewUserID()
	site := models.NewResourceID(models.SiteResourceKind)

	grant := models.NewUserGrant(now, alice, site, models.PermissionWrite, models.EffectAllow, true, models.NewFieldList([]string{"b", "a"}), nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, grant))

	read, err := grantStore.Read(ctx, nil, grant.ID)
	require.NoError(t, err)
	assert.Equal(t, grant.ID, read.ID)
	assert.Equal(t, models.UserGranteeType, read.GranteeType)
	assert.Equal(t, alice.ResourceID, read.GranteeID)
	assert.Equal(t, site, read.ResourceID)
	assert.Equal(t, models.SiteResourceKind, read.ResourceKind)
	assert.Equal(t, models.PermissionWrite, read.Permission)
	assert.Equal(t, models.EffectAllow, read.Effect)
	assert.True(t, read.Inherit)
	assert.Equal(t, models.FieldList{"a", "b"}, read.Fields)
	assert.Nil(t, read.ExpiresAt)
	assert.Equal(t, actor.ResourceID, read.GrantedBy)

	t.Run("DuplicateCreate", func(t *testing.T) {
		duplicate := models.NewUserGrant(now, alice, site, models.PermissionWrite, models.EffectAllow, true, models.NewFieldList([]string{"a", "b"}), nil, actor)
		err := grantStore.Create(ctx, nil, duplicate)
		require.Error(t, err)
		assert.True(t, gerror.IsAlreadyExists(err))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, grantStore.Delete(ctx, nil, grant.ID))
		require.NoError(t, grantStore.Delete(ctx, nil, grant.ID))
		_, err := grantStore.Read(ctx, nil, grant.ID)
		require.Error(t, err)
		assert.True(t, gerror.IsNotFound(err))
	})
}

func TestGrantStoreExpiredGrantsAreInvisible(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	now := models.NewTime(mock.Now())

	bob := models.NewUserID()
	actor := models.NewUserID()
	plan := models.NewResourceID(models.PlanResourceKind)

	expiresAt := models.NewTimePtr(mock.Now().Add(time.Hour))
	grant := models.NewUserGrant(now, bob, plan, models.PermissionRead, models.EffectAllow, true, nil, expiresAt, actor)
	require.NoError(t, grantStore.Create(ctx, nil, grant))

	// Still live just before the expiry instant.
	read, err := grantStore.Read(ctx, nil, grant.ID)
	require.NoError(t, err)
	assert.Equal(t, grant.ID, read.ID)

	found, err := grantStore.ListByGrantee(ctx, nil, models.UserGranteeType, bob.ResourceID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)

	// From the expiry instant on the grant must not be returned by any read,
	// whether or not the expiration worker has harvested it yet.
	mock.Add(time.Hour)

	_, err = grantStore.Read(ctx, nil, grant.ID)
	require.Error(t, err)
	assert.True(t, gerror.IsNotFound(err))

	found, err = grantStore.ListByGrantee(ctx, nil, models.UserGranteeType, bob.ResourceID, models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = grantStore.ListByResource(ctx, nil, plan, models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = grantStore.ListForDecision(ctx, nil,
		[]models.ResourceID{bob.ResourceID},
		[]models.ResourceID{plan},
		[]models.Permission{models.PermissionRead})
	require.NoError(t, err)
	assert.Empty(t, found)

	// The row itself is still present for the expiration worker to find.
	expired, err := grantStore.ListExpired(ctx, nil, models.NewTime(mock.Now()), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, grant.ID, expired[0].ID)
}

func TestGrantStoreListForDecision(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	base := mock.Now()

	alice := models.NewUserID()
	group := models.NewGroupID()
	actor := models.NewUserID()
	site := models.NewResourceID(models.SiteResourceKind)
	plan := models.NewResourceID(models.PlanResourceKind)
	otherSite := models.NewResourceID(models.SiteResourceKind)

	// Three grants eligible for a write decision on the plan, created at
	// distinct instants so the ordering is observable.
	siteGrant := models.NewUserGrant(models.NewTime(base), alice, site, models.PermissionManage, models.EffectAllow, true, nil, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, siteGrant))

	groupGrant := models.NewGroupGrant(models.NewTime(base.Add(time.Second)), group, plan, models.PermissionWrite, models.EffectAllow, true, nil, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, groupGrant))

	planGrant := models.NewUserGrant(models.NewTime(base.Add(2*time.Second)), alice, plan, models.PermissionWrite, models.EffectDeny, false, nil, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, planGrant))

	// Noise that must not be selected: wrong resource, wrong permission.
	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(models.NewTime(base), alice, otherSite, models.PermissionWrite, models.EffectAllow, true, nil, nil, actor)))
	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(models.NewTime(base), alice, plan, models.PermissionDelete, models.EffectAllow, false, nil, nil, actor)))

	grantees := []models.ResourceID{alice.ResourceID, group.ResourceID}
	resources := []models.ResourceID{plan, site}
	permissions := models.SatisfyingPermissions(models.PermissionWrite)

	found, err := grantStore.ListForDecision(ctx, nil, grantees, resources, permissions)
	require.NoError(t, err)
	require.Len(t, found, 3)

	// Oldest first.
	assert.Equal(t, siteGrant.ID, found[0].ID)
	assert.Equal(t, groupGrant.ID, found[1].ID)
	assert.Equal(t, planGrant.ID, found[2].ID)

	t.Run("EmptySetsMatchNothing", func(t *testing.T) {
		found, err := grantStore.ListForDecision(ctx, nil, nil, resources, permissions)
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = grantStore.ListForDecision(ctx, nil, grantees, nil, permissions)
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = grantStore.ListForDecision(ctx, nil, grantees, resources, nil)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("GranteeSet", func(t *testing.T) {
		found, err := grantStore.ListForGranteeSet(ctx, nil, []models.ResourceID{group.ResourceID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, groupGrant.ID, found[0].ID)
	})

	t.Run("ResourceSet", func(t *testing.T) {
		found, err := grantStore.ListForResourceSet(ctx, nil, []models.ResourceID{site, otherSite})
		require.NoError(t, err)
		require.Len(t, found, 2)
	})
}

func TestGrantStoreMemberships(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	base := mock.Now()

	alice := models.NewUserID()
	bob := models.NewUserID()
	actor := models.NewUserID()
	groupA := models.NewGroupID()
	groupB := models.NewGroupID()

	aliceInA := models.NewMembershipGrant(models.NewTime(base), alice, groupA, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, aliceInA))

	aliceInB := models.NewMembershipGrant(models.NewTime(base.Add(time.Second)), alice, groupB, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, aliceInB))

	bobInA := models.NewMembershipGrant(models.NewTime(base), bob, groupA, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, bobInA))

	// A non-membership grant against a group must not show up as a membership.
	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(models.NewTime(base), alice, groupA.ResourceID, models.PermissionRead, models.EffectAllow, false, nil, nil, actor)))

	memberships, err := grantStore.ListMemberships(ctx, nil, alice)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, aliceInA.ID, memberships[0].ID, "memberships are listed oldest first")
	assert.Equal(t, aliceInB.ID, memberships[1].ID)

	members, err := grantStore.ListMembersOfGroup(ctx, nil, groupA)
	require.NoError(t, err)
	require.Len(t, members, 2)

	t.Run("ExpiredMembershipExcluded", func(t *testing.T) {
		expiry := models.NewTimePtr(base.Add(time.Minute))
		temp := models.NewMembershipGrant(models.NewTime(base), bob, groupB, expiry, actor)
		require.NoError(t, grantStore.Create(ctx, nil, temp))

		memberships, err := grantStore.ListMemberships(ctx, nil, bob)
		require.NoError(t, err)
		require.Len(t, memberships, 2)

		mock.Add(2 * time.Minute)
		memberships, err = grantStore.ListMemberships(ctx, nil, bob)
		require.NoError(t, err)
		require.Len(t, memberships, 1)
		assert.Equal(t, bobInA.ID, memberships[0].ID)
	})
}

func TestGrantStoreListExpired(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	base := mock.Now()
	now := models.NewTime(base)

	alice := models.NewUserID()
	actor := models.NewUserID()
	site := models.NewResourceID(models.SiteResourceKind)
	plan := models.NewResourceID(models.PlanResourceKind)
	sensor := models.NewResourceID(models.SensorResourceKind)

	longGone := models.NewUserGrant(now, alice, site, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(-time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, longGone))

	justNow := models.NewUserGrant(now, alice, plan, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base), actor)
	require.NoError(t, grantStore.Create(ctx, nil, justNow))

	// Still in the future, must not be harvested.
	stillLive := models.NewUserGrant(now, alice, sensor, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, stillLive))

	// Never expires.
	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(now, alice, site, models.PermissionWrite, models.EffectAllow, true, nil, nil, actor)))

	expired, err := grantStore.ListExpired(ctx, nil, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, longGone.ID, expired[0].ID, "oldest expiry first")
	assert.Equal(t, justNow.ID, expired[1].ID, "a grant counts as expired from its expiry instant")

	t.Run("Limit", func(t *testing.T) {
		expired, err := grantStore.ListExpired(ctx, nil, now, 1)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, longGone.ID, expired[0].ID)
	})
}

func TestGrantStoreListExpiringBetween(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	base := mock.Now()
	now := models.NewTime(base)

	alice := models.NewUserID()
	actor := models.NewUserID()
	site := models.NewResourceID(models.SiteResourceKind)
	plan := models.NewResourceID(models.PlanResourceKind)
	sensor := models.NewResourceID(models.SensorResourceKind)
	broker := models.NewResourceID(models.BrokerResourceKind)

	atFrom := models.NewUserGrant(now, alice, site, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, atFrom))

	inside := models.NewUserGrant(now, alice, plan, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(2*time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, inside))

	atUntil := models.NewUserGrant(now, alice, sensor, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(3*time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, atUntil))

	beyond := models.NewUserGrant(now, alice, broker, models.PermissionRead, models.EffectAllow, true, nil, models.NewTimePtr(base.Add(4*time.Hour)), actor)
	require.NoError(t, grantStore.Create(ctx, nil, beyond))

	from := models.NewTime(base.Add(time.Hour))
	until := models.NewTime(base.Add(3 * time.Hour))

	expiring, err := grantStore.ListExpiringBetween(ctx, nil, from, until)
	require.NoError(t, err)
	require.Len(t, expiring, 2, "the window is exclusive of from and inclusive of until")
	assert.Equal(t, inside.ID, expiring[0].ID, "soonest expiry first")
	assert.Equal(t, atUntil.ID, expiring[1].ID)
}

func TestGrantStoreDeleteAll(t *testing.T) {
	grantStore, mock, ctx := connect(t)
	now := models.NewTime(mock.Now())

	alice := models.NewUserID()
	bob := models.NewUserID()
	actor := models.NewUserID()
	site := models.NewResourceID(models.SiteResourceKind)
	plan := models.NewResourceID(models.PlanResourceKind)

	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(now, alice, site, models.PermissionRead, models.EffectAllow, true, nil, nil, actor)))
	require.NoError(t, grantStore.Create(ctx, nil,
		models.NewUserGrant(now, alice, plan, models.PermissionWrite, models.EffectAllow, true, nil, nil, actor)))
	bobGrant := models.NewUserGrant(now, bob, site, models.PermissionRead, models.EffectAllow, true, nil, nil, actor)
	require.NoError(t, grantStore.Create(ctx, nil, bobGrant))

	t.Run("ForGrantee", func(t *testing.T) {
		require.NoError(t, grantStore.DeleteAllForGrantee(ctx, nil, models.UserGranteeType, alice.ResourceID))

		found, err := grantStore.ListByGrantee(ctx, nil, models.UserGranteeType, alice.ResourceID, models.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, found)

		// Other grantees are untouched.
		found, err = grantStore.ListByGrantee(ctx, nil, models.UserGranteeType, bob.ResourceID, models.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		// Idempotent.
		require.NoError(t, grantStore.DeleteAllForGrantee(ctx, nil, models.UserGranteeType, alice.ResourceID))
	})

	t.Run("ForResource", func(t *testing.T) {
		require.NoError(t, grantStore.DeleteAllForResource(ctx, nil, site))

		found, err := grantStore.ListByResource(ctx, nil, site, models.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, found)

		require.NoError(t, grantStore.DeleteAllForResource(ctx, nil, site))
	})
}
