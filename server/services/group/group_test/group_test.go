package group_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/app/server_test"
)

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	creator := server_test.CreateUser(t, ctx, app, "group-creator")
	group := server_test.CreateGroup(t, ctx, app, creator.ID, "Create-Ops")

	read, err := app.GroupService.Read(ctx, nil, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Create-Ops", read.Name)

	decision, err := app.AuthorizationService.Check(ctx, creator.ID, group.ID.ResourceID, models.PermissionManage)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "the creator manages the group they created")

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := app.GroupService.Create(ctx, nil, creator.ID, "Create-Ops", "")
		require.Error(t, err)
		assert.True(t, gerror.IsAlreadyExists(err))
	})
}

func TestDeleteGroupCascades(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "cascade-admin")
	member := server_test.CreateUser(t, ctx, app, "cascade-member")
	ops := server_test.CreateGroup(t, ctx, app, admin.ID, "Cascade-Ops")
	site := server_test.CreateResource(t, ctx, app, admin.ID, models.SiteResourceKind, "Cascade-Site", models.ResourceID{})

	server_test.AddMember(t, ctx, app, admin.ID, member.ID, ops.ID)
	server_test.IssueGroupGrant(t, ctx, app, admin.ID, ops.ID, site.ID, models.PermissionWrite, models.EffectAllow, true, nil)

	// The member can write through the group right up until the delete.
	decision, err := app.AuthorizationService.Check(ctx, member.ID, site.ID, models.PermissionWrite)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	require.NoError(t, app.GroupService.Delete(ctx, nil, admin.ID, ops.ID))

	_, err = app.GroupService.Read(ctx, nil, ops.ID)
	require.Error(t, err)
	assert.True(t, gerror.IsNotFound(err))

	groups, err := app.MembershipService.GroupsOf(ctx, member.ID)
	require.NoError(t, err)
	assert.Empty(t, groups, "memberships die with the group")

	decision, err = app.AuthorizationService.Check(ctx, member.ID, site.ID, models.PermissionWrite)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "the group's grants die with it and cached decisions are flushed")
}
