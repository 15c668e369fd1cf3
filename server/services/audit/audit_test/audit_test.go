package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/app/server_test"
)

func TestAuditLogIsSuperuserOnly(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "audit-admin")
	user := server_test.CreateUser(t, ctx, app, "audit-user")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Audit-Site", models.ResourceID{})

	server_test.IssueUserGrant(t, ctx, app, admin.ID, user.ID, site.ID, models.PermissionManage, models.EffectAllow, true, nil)

	_, err = app.AuditService.List(ctx, user.ID, models.AuditEventFilter{}, models.ListOptions{})
	require.Error(t, err)
	assert.True(t, gerror.IsForbidden(err), "grants do not open the audit log; only the superuser flag does")

	events, err := app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{TargetID: site.ID}, models.ListOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, events)

	t.Run("UnknownKindRejected", func(t *testing.T) {
		_, err := app.AuditService.List(ctx, admin.ID, models.AuditEventFilter{Kind: models.AuditEventKind("bogus")}, models.ListOptions{})
		require.Error(t, err)
		assert.True(t, gerror.IsInvalidQueryParameter(err))
	})
}
