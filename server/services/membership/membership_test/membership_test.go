package membership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/app/server_test"
)

func TestGroupsOfTracksMembershipChanges(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "membership-admin")
	user := server_test.CreateUser(t, ctx, app, "membership-user")
	ops := server_test.CreateGroup(t, ctx, app, admin.ID, "Membership-Ops")
	view := server_test.CreateGroup(t, ctx, app, admin.ID, "Membership-View")

	// Prime the cache with the empty set before any membership exists.
	groups, err := app.MembershipService.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	membership := server_test.AddMember(t, ctx, app, admin.ID, user.ID, ops.ID)
	server_test.AddMember(t, ctx, app, admin.ID, user.ID, view.ID)

	groups, err = app.MembershipService.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.GroupID{ops.ID, view.ID}, groups, "adding a member drops the cached group set")

	require.NoError(t, app.GrantService.Revoke(ctx, nil, admin.ID, membership.ID))

	groups, err = app.MembershipService.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.GroupID{view.ID}, groups, "revoking the membership drops the cached group set")
}

func TestAddMemberTwiceRejected(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "twice-admin")
	user := server_test.CreateUser(t, ctx, app, "twice-user")
	ops := server_test.CreateGroup(t, ctx, app, admin.ID, "Twice-Ops")

	server_test.AddMember(t, ctx, app, admin.ID, user.ID, ops.ID)

	_, err = app.GrantService.AutoGrantMember(ctx, nil, admin.ID, user.ID, ops.ID, nil)
	require.Error(t, err)
	assert.True(t, gerror.IsAlreadyExists(err))
}

func TestMembersOf(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(server_test.TestConfig(t))
	require.NoError(t, err)
	defer cleanup()

	admin := server_test.CreateSuperuser(t, ctx, app, "members-admin")
	first := server_test.CreateUser(t, ctx, app, "members-first")
	second := server_test.CreateUser(t, ctx, app, "members-second")
	ops := server_test.CreateGroup(t, ctx, app, admin.ID, "Members-Ops")

	server_test.AddMember(t, ctx, app, admin.ID, first.ID, ops.ID)
	server_test.AddMember(t, ctx, app, admin.ID, second.ID, ops.ID)

	members, err := app.MembershipService.MembersOf(ctx, ops.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, first.ID.ResourceID, members[0].GranteeID, "members list oldest first")
	assert.Equal(t, second.ID.ResourceID, members[1].GranteeID)
}
