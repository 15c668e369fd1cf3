package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/dto"
)

// TestUserPassword is the password given to every user created through the
// helpers below.
const TestUserPassword = "test-password"

// CreateUser creates a regular user account for use during a test. Any errors
// will cause failure of the test.
func CreateUser(t *testing.T, ctx context.Context, app *TestServer, username string) *models.User {
	user, err := app.UserService.Create(ctx, nil, models.UserID{}, &dto.CreateUser{
		Username: username,
		Password: TestUserPassword,
	})
	require.NoError(t, err)
	return user
}

// CreateSuperuser creates a user account with the superuser flag set.
func CreateSuperuser(t *testing.T, ctx context.Context, app *TestServer, username string) *models.User {
	user, err := app.UserService.Create(ctx, nil, models.UserID{}, &dto.CreateUser{
		Username: username,
		Password: TestUserPassword,
		IsAdmin:  true,
	})
	require.NoError(t, err)
	return user
}

// CreateGroup creates a group on behalf of creator, who receives the usual
// auto-granted manage permission on it.
func CreateGroup(t *testing.T, ctx context.Context, app *TestServer, creator models.UserID, name string) *models.Group {
	group, err := app.GroupService.Create(ctx, nil, creator, name, "")
	require.NoError(t, err)
	return group
}

// CreateResource registers a resource of the given kind under parentID (zero
// for roots and standalone kinds) on behalf of creator.
func CreateResource(
	t *testing.T,
	ctx context.Context,
	app *TestServer,
	creator models.UserID,
	kind models.ResourceKind,
	name string,
	parentID models.ResourceID,
) *models.ResourceRecord {
	record := models.NewResourceRecord(models.NewTime(time.Now()), models.NewResourceID(kind), name, parentID)
	created, err := app.ResourceService.Create(ctx, nil, creator, record)
	require.NoError(t, err)
	return created
}

// AddMember adds userID to groupID with no expiry, acting as actor.
func AddMember(t *testing.T, ctx context.Context, app *TestServer, actor models.UserID, userID models.UserID, groupID models.GroupID) *models.Grant {
	grant, err := app.GrantService.AutoGrantMember(ctx, nil, actor, userID, groupID, nil)
	require.NoError(t, err)
	return grant
}

// IssueUserGrant issues a grant naming a user directly as the grantee.
func IssueUserGrant(
	t *testing.T,
	ctx context.Context,
	app *TestServer,
	actor models.UserID,
	userID models.UserID,
	resourceID models.ResourceID,
	permission models.Permission,
	effect models.Effect,
	inherit bool,
	fields models.FieldList,
) *models.Grant {
	grant := models.NewUserGrant(models.NewTime(time.Now()), userID, resourceID, permission, effect, inherit, fields, nil, actor)
	issued, err := app.GrantService.Issue(ctx, nil, grant)
	require.NoError(t, err)
	return issued
}

// IssueGroupGrant issues a grant naming a group as the grantee.
func IssueGroupGrant(
	t *testing.T,
	ctx context.Context,
	app *TestServer,
	actor models.UserID,
	groupID models.GroupID,
	resourceID models.ResourceID,
	permission models.Permission,
	effect models.Effect,
	inherit bool,
	fields models.FieldList,
) *models.Grant {
	grant := models.NewGroupGrant(models.NewTime(time.Now()), groupID, resourceID, permission, effect, inherit, fields, nil, actor)
	issued, err := app.GrantService.Issue(ctx, nil, grant)
	require.NoError(t, err)
	return issued
}
