package authorization_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/app/server_test"
	"github.com/siteguard/siteguard/server/dto"
)

// factoryWorld is the shared fixture for the scenario tests: two factory
// sites with floors and a sensor, four groups and five users with a mix of
// group and direct grants.
type factoryWorld struct {
	admin *models.User

	alice *models.User
	bob   *models.User
	carol *models.User
	dave  *models.User
	eve   *models.User

	f1Admins  *models.Group
	f1Ops     *models.Group
	f1View    *models.Group
	globalOps *models.Group

	factory1 *models.ResourceRecord
	factory2 *models.ResourceRecord
	floorA   *models.ResourceRecord
	floorB   *models.ResourceRecord
	floorC   *models.ResourceRecord
	temp1    *models.ResourceRecord
}

func buildFactoryWorld(t *testing.T, ctx context.Context, app *server_test.TestServer) *factoryWorld {
	w := &factoryWorld{}
	w.admin = server_test.CreateSuperuser(t, ctx, app, "factory-admin")

	w.alice = server_test.CreateUser(t, ctx, app, "alice")
	w.bob = server_test.CreateUser(t, ctx, app, "bob")
	w.carol = server_test.CreateUser(t, ctx, app, "carol")
	w.dave = server_test.CreateUser(t, ctx, app, "dave")
	w.eve = server_test.CreateUser(t, ctx, app, "eve")

	w.f1Admins = server_test.CreateGroup(t, ctx, app, w.admin.ID, "F1-Admins")
	w.f1Ops = server_test.CreateGroup(t, ctx, app, w.admin.ID, "F1-Ops")
	w.f1View = server_test.CreateGroup(t, ctx, app, w.admin.ID, "F1-View")
	w.globalOps = server_test.CreateGroup(t, ctx, app, w.admin.ID, "Global-Ops")

	w.factory1 = server_test.CreateResource(t, ctx, app, w.admin.ID, models.SiteResourceKind, "Factory-1", models.ResourceID{})
	w.factory2 = server_test.CreateResource(t, ctx, app, w.admin.ID, models.SiteResourceKind, "Factory-2", models.ResourceID{})
	w.floorA = server_test.CreateResource(t, ctx, app, w.admin.ID, models.PlanResourceKind, "Floor-A", w.factory1.ID)
	w.floorB = server_test.CreateResource(t, ctx, app, w.admin.ID, models.PlanResourceKind, "Floor-B", w.factory1.ID)
	w.floorC = server_test.CreateResource(t, ctx, app, w.admin.ID, models.PlanResourceKind, "Floor-C", w.factory2.ID)
	w.temp1 = server_test.CreateResource(t, ctx, app, w.admin.ID, models.SensorResourceKind, "Temp-1", w.floorA.ID)

	server_test.AddMember(t, ctx, app, w.admin.ID, w.alice.ID, w.f1Admins.ID)
	server_test.AddMember(t, ctx, app, w.admin.ID, w.bob.ID, w.f1Ops.ID)
	server_test.AddMember(t, ctx, app, w.admin.ID, w.carol.ID, w.f1View.ID)
	server_test.AddMember(t, ctx, app, w.admin.ID, w.dave.ID, w.f1Ops.ID)
	server_test.AddMember(t, ctx, app, w.admin.ID, w.dave.ID, w.globalOps.ID)

	server_test.IssueGroupGrant(t, ctx, app, w.admin.ID, w.f1Admins.ID, w.factory1.ID, models.PermissionManage, models.EffectAllow, true, nil)
	server_test.IssueGroupGrant(t, ctx, app, w.admin.ID, w.f1Ops.ID, w.factory1.ID, models.PermissionWrite, models.EffectAllow, true, models.NewFieldList([]string{"a", "b", "c"}))
	server_test.IssueGroupGrant(t, ctx, app, w.admin.ID, w.f1View.ID, w.factory1.ID, models.PermissionRead, models.EffectAllow, true, nil)
	server_test.IssueGroupGrant(t, ctx, app, w.admin.ID, w.globalOps.ID, w.factory1.ID, models.PermissionWrite, models.EffectAllow, true, nil)
	server_test.IssueGroupGrant(t, ctx, app, w.admin.ID, w.globalOps.ID, w.factory2.ID, models.PermissionWrite, models.EffectAllow, true, nil)

	server_test.IssueUserGrant(t, ctx, app, w.admin.ID, w.dave.ID, w.floorA.ID, models.PermissionWrite, models.EffectAllow, false, models.NewFieldList([]string{"d", "e"}))
	server_test.IssueUserGrant(t, ctx, app, w.admin.ID, w.bob.ID, w.floorB.ID, models.PermissionRead, models.EffectDeny, true, nil)

	return w
}

func TestAuthorizationScenarios(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	w := buildFactoryWorld(t, ctx, app)
	authz := app.AuthorizationService

	t.Run("ManageInheritsDownToSensor", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.alice.ID, w.temp1.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision, "manage on the site satisfies read three levels down")
	})

	t.Run("FieldRestrictedWriteInherits", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.bob.ID, w.temp1.ID, models.PermissionWrite)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, models.FieldList{"a", "b", "c"}, decision.Fields, "the group's field restriction follows the grant down the tree")
	})

	t.Run("DirectDenyOverridesGroupAllow", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.bob.ID, w.floorB.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision, "a deny beats the group's write-satisfies-read allow")
	})

	t.Run("NoGrantsOnOtherSite", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.carol.ID, w.factory2.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision)

		decision, err = authz.Check(ctx, w.carol.ID, w.floorC.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision)
	})

	t.Run("UnrestrictedAllowCollapsesFieldUnion", func(t *testing.T) {
		// Dave holds a direct [d, e] grant on the floor and reaches [a, b, c]
		// through F1-Ops, but Global-Ops carries an unrestricted write.
		decision, err := authz.Check(ctx, w.dave.ID, w.floorA.ID, models.PermissionWrite)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision)
	})

	t.Run("NonInheritedGrantStopsAtItsResource", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.dave.ID, w.temp1.ID, models.PermissionWrite)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision, "the floor-only grant is skipped at the sensor; the unrestricted group write still applies")
	})

	t.Run("IssueCheckRevoke", func(t *testing.T) {
		decision, err := authz.Check(ctx, w.eve.ID, w.temp1.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision, "eve starts with no grants at all")

		grant := server_test.IssueUserGrant(t, ctx, app, w.admin.ID, w.eve.ID, w.factory1.ID, models.PermissionRead, models.EffectAllow, true, nil)

		decision, err = authz.Check(ctx, w.eve.ID, w.temp1.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision, "issuing the grant invalidates eve's cached denial")

		require.NoError(t, app.GrantService.Revoke(ctx, nil, w.admin.ID, grant.ID))

		decision, err = authz.Check(ctx, w.eve.ID, w.temp1.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision, "revoking the grant invalidates eve's cached allow")
	})
}

func TestSuperuserBypass(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	root := server_test.CreateSuperuser(t, ctx, app, "root-bypass")
	site := server_test.CreateResource(t, ctx, app, root.ID, models.SiteResourceKind, "Bypass-Site", models.ResourceID{})

	// Even an explicit deny does not reach a superuser.
	server_test.IssueUserGrant(t, ctx, app, root.ID, root.ID, site.ID, models.PermissionManage, models.EffectDeny, true, nil)

	for _, permission := range models.LatticePermissions() {
		decision, err := app.AuthorizationService.Check(ctx, root.ID, site.ID, permission)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision, "superusers hold %s everywhere", permission)
	}
}

func TestLatticeMonotonicity(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "lattice-admin")
	manager := server_test.CreateUser(t, ctx, app, "lattice-manager")
	writer := server_test.CreateUser(t, ctx, app, "lattice-writer")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Lattice-Site", models.ResourceID{})

	server_test.IssueUserGrant(t, ctx, app, admin.ID, manager.ID, site.ID, models.PermissionManage, models.EffectAllow, true, nil)
	server_test.IssueUserGrant(t, ctx, app, admin.ID, writer.ID, site.ID, models.PermissionWrite, models.EffectAllow, true, nil)

	for _, permission := range models.LatticePermissions() {
		decision, err := app.AuthorizationService.Check(ctx, manager.ID, site.ID, permission)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "manage satisfies %s", permission)
	}

	decision, err := app.AuthorizationService.Check(ctx, writer.ID, site.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "write satisfies read")

	for _, permission := range []models.Permission{models.PermissionDelete, models.PermissionCreate, models.PermissionManage} {
		decision, err := app.AuthorizationService.Check(ctx, writer.ID, site.ID, permission)
		require.NoError(t, err)
		assert.False(t, decision.Allowed, "write must not satisfy %s", permission)
	}
}

func TestNonInheritedGrantDoesNotReachDescendants(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "gating-admin")
	user := server_test.CreateUser(t, ctx, app, "gating-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Gating-Site", models.ResourceID{})
	plan := server_test.CreateResource(t, ctx, app, admin.ID, models.PlanResourceKind, "Gating-Floor", site.ID)

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionRead, models.EffectAllow, false, nil)

	decision, err := app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "the grant applies at the resource it names")

	decision, err = app.AuthorizationService.Check(ctx, user.ID, plan.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "a non-inherited grant is invisible one level down")
}

func TestDenyRespectsInheritFlag(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "deny-gating-admin")
	ada := server_test.CreateUser(t, ctx, app, "deny-gating-ada")
	ben := server_test.CreateUser(t, ctx, app, "deny-gating-ben")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Deny-Gating-Site", models.ResourceID{})
	plan := server_test.CreateResource(t, ctx, app, admin.ID, models.PlanResourceKind, "Deny-Gating-Floor", site.ID)

	// Both users read the whole site through an inherited group allow; the
	// denies are issued to them directly.
	readers := server_test.CreateGroup(t, ctx, app, admin.ID, "Deny-Gating-Readers")
	server_test.AddMember(t, ctx, app, admin.ID, ada.ID, readers.ID)
	server_test.AddMember(t, ctx, app, admin.ID, ben.ID, readers.ID)
	server_test.IssueGroupGrant(t, ctx, app, admin.ID, readers.ID, site.ID, models.PermissionRead, models.EffectAllow, true, nil)

	server_test.IssueUserGrant(t, ctx, app, admin.ID, ada.ID, site.ID, models.PermissionRead, models.EffectDeny, false, nil)
	server_test.IssueUserGrant(t, ctx, app, admin.ID, ben.ID, site.ID, models.PermissionRead, models.EffectDeny, true, nil)

	t.Run("NonInheritedDenyStopsAtItsResource", func(t *testing.T) {
		decision, err := app.AuthorizationService.Check(ctx, ada.ID, site.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision, "the deny applies at the resource it names")

		decision, err = app.AuthorizationService.Check(ctx, ada.ID, plan.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionAllowedAll, decision, "a non-inherited deny on the site is invisible one level down")
	})

	t.Run("InheritedDenyBlocksDescendants", func(t *testing.T) {
		decision, err := app.AuthorizationService.Check(ctx, ben.ID, site.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision)

		decision, err = app.AuthorizationService.Check(ctx, ben.ID, plan.ID, models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDenied, decision, "the inherited deny follows the allow down the tree")
	})
}

func TestExpirationTakesEffectImmediately(t *testing.T) {
	ctx := context.Background()
	// Run uncached so the check observes liveness directly rather than a
	// cached decision.
	config := server_test.TestConfig(t)
	config.CacheConfig.Enabled = false
	app, cleanup, err := server_test.New(config)
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "expiry-admin")
	user := server_test.CreateUser(t, ctx, app, "expiry-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Expiry-Site", models.ResourceID{})

	expiresAt := models.NewTimePtr(time.Now().Add(200 * time.Millisecond))
	grant := models.NewUserGrant(models.NewTime(time.Now()), user.ID, site.ID, models.PermissionRead, models.EffectAllow, true, nil, expiresAt, admin.ID)
	_, err = app.GrantService.Issue(ctx, nil, grant)
	require.NoError(t, err)

	decision, err := app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "the grant is live until its expiry instant")

	// No harvest runs here: the grant must stop contributing the moment its
	// expiry passes, not when the worker eventually deletes it.
	require.Eventually(t, func() bool {
		decision, err := app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionRead)
		return err == nil && !decision.Allowed
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDuplicateIssueRejected(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "dup-admin")
	user := server_test.CreateUser(t, ctx, app, "dup-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Dup-Site", models.ResourceID{})

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionRead, models.EffectAllow, true, nil)

	duplicate := models.NewUserGrant(models.NewTime(time.Now()), user.ID, site.ID, models.PermissionRead, models.EffectAllow, true, nil, nil, admin.ID)
	_, err = app.GrantService.Issue(ctx, nil, duplicate)
	require.Error(t, err)
	assert.True(t, gerror.IsAlreadyExists(err))
}

func TestDisabledUserIsDeniedEverything(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "disabled-admin")
	user := server_test.CreateUser(t, ctx, app, "disabled-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Disabled-Site", models.ResourceID{})

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionManage, models.EffectAllow, true, nil)

	decision, err := app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	disabled := true
	_, err = app.UserService.Update(ctx, admin.ID, user.ID, &dto.UpdateUser{Disabled: &disabled})
	require.NoError(t, err)

	decision, err = app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "a disabled account holds nothing, grants notwithstanding")
}

func TestCatalogKindsReadableByDefault(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "catalog-admin")
	user := server_test.CreateUser(t, ctx, app, "catalog-user")
	hardware := server_test.CreateResource(t, ctx, app, admin.ID, models.HardwareResourceKind, "TMP36", models.ResourceID{})

	decision, err := app.AuthorizationService.Check(ctx, user.ID, hardware.ID, models.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllowedAll, decision, "catalog entries are readable by every authenticated user")

	decision, err = app.AuthorizationService.Check(ctx, user.ID, hardware.ID, models.PermissionWrite)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "mutating catalog entries still needs a grant")
}

func TestCheckOrErrorAuditsDenial(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "verbose-admin")
	user := server_test.CreateUser(t, ctx, app, "verbose-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Verbose-Site", models.ResourceID{})

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionRead, models.EffectAllow, true, nil)

	_, err = app.AuthorizationService.CheckOrError(ctx, user.ID, site.ID, models.PermissionDelete)
	require.Error(t, err)
	assert.True(t, gerror.IsForbidden(err))

	events, err := app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{
		Kind:     models.AuditEventDenied,
		TargetID: site.ID,
	}, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID.ResourceID, events[0].GranteeID)
	assert.Equal(t, models.PermissionDelete, events[0].Permission)
	assert.Contains(t, events[0].Detail, "read via direct", "the denial describes the permissions the user does hold")

	// The quiet form must not have audited anything further.
	decision, err := app.AuthorizationService.Check(ctx, user.ID, site.ID, models.PermissionDelete)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	events, err = app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{
		Kind:     models.AuditEventDenied,
		TargetID: site.ID,
	}, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestBulkCheckPreservesRequestOrder(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "bulk-admin")
	user := server_test.CreateUser(t, ctx, app, "bulk-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Bulk-Site", models.ResourceID{})
	plan := server_test.CreateResource(t, ctx, app, admin.ID, models.PlanResourceKind, "Bulk-Floor", site.ID)

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, plan.ID, models.PermissionRead, models.EffectAllow, true, models.NewFieldList([]string{"a"}))

	decisions, err := app.AuthorizationService.BulkCheck(ctx, user.ID, []models.CheckRequest{
		{ResourceID: plan.ID, Permission: models.PermissionRead},
		{ResourceID: site.ID, Permission: models.PermissionRead},
		{ResourceID: plan.ID, Permission: models.PermissionWrite},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	assert.True(t, decisions[0].Allowed)
	assert.Equal(t, models.FieldList{"a"}, decisions[0].Fields)
	assert.False(t, decisions[1].Allowed)
	assert.False(t, decisions[2].Allowed)
}
