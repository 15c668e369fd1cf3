package users

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

func init() {
	store.MustDBModel(&models.User{})
}

type UserStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *UserStore {
	return &UserStore{
		table: store.NewResourceTable(db, logFactory, &models.User{}),
	}
}

// Create a new user.
// Returns gerror.ErrAlreadyExists if a user with matching unique properties already exists.
func (d *UserStore) Create(ctx context.Context, txOrNil *store.Tx, user *models.User) error {
	d.table.Infof("Creating user %q", user.Username)
	return d.table.Create(ctx, txOrNil, user)
}

// Read an existing user, looking it up by ID.
// Returns gerror.ErrNotFound if the user does not exist.
func (d *UserStore) Read(ctx context.Context, txOrNil *store.Tx, id models.UserID) (*models.User, error) {
	user := &models.User{}
	return user, d.table.ReadByID(ctx, txOrNil, id.ResourceID, user)
}

// ReadByUsername reads an existing user, looking it up by username.
// Returns gerror.ErrNotFound if the user does not exist.
func (d *UserStore) ReadByUsername(ctx context.Context, txOrNil *store.Tx, username string) (*models.User, error) {
	user := &models.User{}
	return user, d.table.ReadWhere(ctx, txOrNil, user, goqu.Ex{"user_username": username})
}

// FindOrCreate creates the supplied user if no user with its username already
// exists, otherwise it reads and returns the existing user unchanged.
// Returns the user as it is in the database, and true iff a new user was created.
func (d *UserStore) FindOrCreate(ctx context.Context, txOrNil *store.Tx, user *models.User) (result *models.User, created bool, err error) {
	resource, created, err := d.table.FindOrCreate(ctx, txOrNil,
		func(ctx context.Context, tx *store.Tx) (models.Resource, error) {
			return d.ReadByUsername(ctx, tx, user.Username)
		},
		func(ctx context.Context, tx *store.Tx) (models.Resource, error) {
			err := d.Create(ctx, tx, user)
			if err != nil {
				return nil, err
			}
			return user, nil
		},
	)
	if err != nil {
		return nil, false, err
	}
	return resource.(*models.User), created, nil
}

// Update an existing user. Overrides all previous values using the supplied model.
// Returns gerror.ErrNotFound if the user does not exist.
func (d *UserStore) Update(ctx context.Context, txOrNil *store.Tx, user *models.User) error {
	return d.table.UpdateByID(ctx, txOrNil, user)
}

// Delete permanently and idempotently deletes a user.
func (d *UserStore) Delete(ctx context.Context, txOrNil *store.Tx, id models.UserID) error {
	d.table.Infof("Removing user with ID %s", id)
	return d.table.DeleteByID(ctx, txOrNil, id.ResourceID)
}

// List pages through all users, newest first.
func (d *UserStore) List(ctx context.Context, txOrNil *store.Tx, opts models.ListOptions) ([]*models.User, error) {
	userSelect := goqu.
		From(d.table.TableName()).
		Select(&models.User{})

	var users []*models.User
	err := d.table.ListIn(ctx, txOrNil, &users, opts, userSelect)
	if err != nil {
		return nil, err
	}
	return users, nil
}
