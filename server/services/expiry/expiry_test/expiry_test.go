package expiry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/app/server_test"
	"github.com/siteguard/siteguard/server/dto"
	"github.com/siteguard/siteguard/server/services/expiry"
)

// recordingNotifier captures notifications instead of logging them.
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []*dto.ExpiryNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification *dto.ExpiryNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *recordingNotifier) all() []*dto.ExpiryNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*dto.ExpiryNotification(nil), n.notifications...)
}

func newExpiryService(app *server_test.TestServer, notifier *recordingNotifier, config expiry.ExpiryConfig) *expiry.ExpiryService {
	return expiry.NewExpiryService(
		app.DB,
		app.GrantStore,
		app.AuditEventStore,
		app.UserStore,
		app.GroupStore,
		notifier,
		clock.New(),
		config,
		app.LogFactory,
	)
}

// createExpiredGrant writes a past-due grant straight to the store; the
// service layer refuses to issue one.
func createExpiredGrant(
	t *testing.T,
	ctx context.Context,
	app *server_test.TestServer,
	userID models.UserID,
	resourceID models.ResourceID,
	permission models.Permission,
	expiredSince time.Duration,
	actor models.UserID,
) *models.Grant {
	expiresAt := models.NewTimePtr(time.Now().Add(-expiredSince))
	grant := models.NewUserGrant(models.NewTime(time.Now().Add(-expiredSince-time.Hour)), userID, resourceID, permission, models.EffectAllow, true, nil, expiresAt, actor)
	require.NoError(t, app.GrantStore.Create(ctx, nil, grant))
	return grant
}

func TestHarvestExpiredGrants(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	notifier := &recordingNotifier{}
	service := newExpiryService(app, notifier, expiry.ExpiryConfig{})

	admin := server_test.CreateSuperuser(t, ctx, app, "harvest-admin")
	user := server_test.CreateUser(t, ctx, app, "harvest-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Harvest-Site", models.ResourceID{})
	floor := server_test.CreateResource(t, ctx, app, admin.ID, models.PlanResourceKind, "Harvest-Floor", site.ID)

	dead := createExpiredGrant(t, ctx, app, user.ID, site.ID, models.PermissionRead, time.Hour, admin.ID)
	alsoDead := createExpiredGrant(t, ctx, app, user.ID, floor.ID, models.PermissionWrite, 2*time.Hour, admin.ID)
	alive := server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionWrite, models.EffectAllow, true, nil)

	require.NoError(t, service.HarvestExpiredGrants(ctx))

	// The dead rows are gone, the live one untouched.
	remaining, err := app.GrantStore.ListExpired(ctx, nil, models.NewTime(time.Now()), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_, err = app.GrantService.Read(ctx, nil, alive.ID)
	require.NoError(t, err)

	// Each harvest appended an expired audit event attributed to the system.
	for _, grantID := range []models.GrantID{dead.ID, alsoDead.ID} {
		events, err := app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{
			Kind: models.AuditEventExpired,
		}, models.ListOptions{})
		require.NoError(t, err)
		found := false
		for _, event := range events {
			if event.GrantID == grantID.ResourceID {
				found = true
				assert.True(t, event.ActorID.IsZero(), "expirations have no acting user")
			}
		}
		assert.True(t, found, "expected an expired audit event for %s", grantID)
	}

	t.Run("NothingToHarvestIsANoOp", func(t *testing.T) {
		require.NoError(t, service.HarvestExpiredGrants(ctx))
	})
}

func TestSendExpiryNotifications(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	notifier := &recordingNotifier{}
	service := newExpiryService(app, notifier, expiry.ExpiryConfig{LookAhead: 7 * 24 * time.Hour})

	admin := server_test.CreateSuperuser(t, ctx, app, "notify-admin")
	walter := server_test.CreateUser(t, ctx, app, "notify-walter")
	wendy := server_test.CreateUser(t, ctx, app, "notify-wendy")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Notify-Site", models.ResourceID{})
	floor := server_test.CreateResource(t, ctx, app, admin.ID, models.PlanResourceKind, "Notify-Floor", site.ID)

	issueExpiring := func(userID models.UserID, resourceID models.ResourceID, permission models.Permission, expiresIn time.Duration) *models.Grant {
		grant := models.NewUserGrant(models.NewTime(time.Now()), userID, resourceID, permission, models.EffectAllow, true, nil, models.NewTimePtr(time.Now().Add(expiresIn)), admin.ID)
		issued, err := app.GrantService.Issue(ctx, nil, grant)
		require.NoError(t, err)
		return issued
	}

	walterSite := issueExpiring(walter.ID, site.ID, models.PermissionRead, 24*time.Hour)
	walterFloor := issueExpiring(walter.ID, floor.ID, models.PermissionWrite, 48*time.Hour)
	wendySite := issueExpiring(wendy.ID, site.ID, models.PermissionRead, 24*time.Hour)
	// Outside the look-ahead window; not notified.
	issueExpiring(wendy.ID, floor.ID, models.PermissionRead, 30*24*time.Hour)

	require.NoError(t, service.SendExpiryNotifications(ctx))

	notifications := notifier.all()
	require.Len(t, notifications, 2, "one notification per grantee")

	byGrantee := make(map[models.ResourceID]*dto.ExpiryNotification, len(notifications))
	for _, notification := range notifications {
		byGrantee[notification.GranteeID] = notification
	}

	walters, ok := byGrantee[walter.ID.ResourceID]
	require.True(t, ok)
	assert.Equal(t, models.UserGranteeType, walters.GranteeType)
	assert.Equal(t, "notify-walter", walters.GranteeName)
	require.Len(t, walters.Grants, 2)
	assert.Equal(t, walterSite.ID, walters.Grants[0].ID, "a grantee's grants list soonest expiry first")
	assert.Equal(t, walterFloor.ID, walters.Grants[1].ID)

	wendys, ok := byGrantee[wendy.ID.ResourceID]
	require.True(t, ok)
	require.Len(t, wendys.Grants, 1)
	assert.Equal(t, wendySite.ID, wendys.Grants[0].ID)
}

func TestSchedulerHarvestsOnStart(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	notifier := &recordingNotifier{}
	// A long check period so only the immediate catch-up fire runs during
	// the test.
	service := newExpiryService(app, notifier, expiry.ExpiryConfig{CheckPeriod: time.Hour})

	admin := server_test.CreateSuperuser(t, ctx, app, "scheduler-admin")
	user := server_test.CreateUser(t, ctx, app, "scheduler-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Scheduler-Site", models.ResourceID{})

	dead := createExpiredGrant(t, ctx, app, user.ID, site.ID, models.PermissionRead, time.Hour, admin.ID)

	service.Start()
	defer service.Shutdown()

	require.Eventually(t, func() bool {
		expired, err := app.GrantStore.ListExpired(ctx, nil, models.NewTime(time.Now()), 10)
		return err == nil && len(expired) == 0
	}, 5*time.Second, 20*time.Millisecond, "the harvest job fires immediately on start")

	events, err := app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{Kind: models.AuditEventExpired}, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, dead.ID.ResourceID, events[0].GrantID)
}
