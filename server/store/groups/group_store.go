package groups

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

func init() {
	store.MustDBModel(&models.Group{})
}

type GroupStore struct {
	db    *store.DB
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *GroupStore {
	return &GroupStore{
		db:    db,
		table: store.NewResourceTable(db, logFactory, &models.Group{}),
	}
}

// Create a new group.
// Returns gerror.ErrAlreadyExists if a group with matching unique properties already exists.
func (d *GroupStore) Create(ctx context.Context, txOrNil *store.Tx, group *models.Group) error {
	d.table.Infof("Creating group %q", group.Name)
	return d.table.Create(ctx, txOrNil, group)
}

// Read an existing group, looking it up by ID.
// Returns gerror.ErrNotFound if the group does not exist.
func (d *GroupStore) Read(ctx context.Context, txOrNil *store.Tx, id models.GroupID) (*models.Group, error) {
	group := &models.Group{}
	return group, d.table.ReadByID(ctx, txOrNil, id.ResourceID, group)
}

// ReadByName reads an existing group, looking it up by its unique name.
// Returns gerror.ErrNotFound if the group does not exist.
func (d *GroupStore) ReadByName(ctx context.Context, txOrNil *store.Tx, name string) (*models.Group, error) {
	group := &models.Group{}
	return group, d.table.ReadWhere(ctx, txOrNil, group, goqu.Ex{"group_name": name})
}

// Update an existing group. Overrides all previous values using the supplied model.
// Returns gerror.ErrNotFound if the group does not exist.
func (d *GroupStore) Update(ctx context.Context, txOrNil *store.Tx, group *models.Group) error {
	return d.table.UpdateByID(ctx, txOrNil, group)
}

// Delete permanently and idempotently deletes a group.
// The caller is responsible for first deleting the group's grants and memberships.
func (d *GroupStore) Delete(ctx context.Context, txOrNil *store.Tx, id models.GroupID) error {
	d.table.Infof("Removing group with ID %s", id)
	return d.table.DeleteByID(ctx, txOrNil, id.ResourceID)
}

// List pages through all groups, newest first.
func (d *GroupStore) List(ctx context.Context, txOrNil *store.Tx, opts models.ListOptions) ([]*models.Group, error) {
	groupSelect := goqu.
		From(d.table.TableName()).
		Select(&models.Group{})

	var groups []*models.Group
	err := d.table.ListIn(ctx, txOrNil, &groups, opts, groupSelect)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ReadNames resolves display names for the supplied group IDs. Unknown IDs
// are omitted from the result.
func (d *GroupStore) ReadNames(ctx context.Context, txOrNil *store.Tx, ids []models.GroupID) (map[models.ResourceID]string, error) {
	names := make(map[models.ResourceID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	idValues := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		idValues = append(idValues, id.ResourceID)
	}
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(goqu.C("group_id"), goqu.C("group_name")).
		Where(goqu.C("group_id").In(idValues...))
	err := d.db.Read(txOrNil, func(db store.Reader) error {
		query, args, err := ds.ToSQL()
		if err != nil {
			return fmt.Errorf("error generating query: %w", err)
		}
		d.table.LogQuery(query, args)
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return store.MakeStandardDBError(err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id   models.ResourceID
				name string
			)
			err := rows.Scan(&id, &name)
			if err != nil {
				return store.MakeStandardDBError(err)
			}
			names[id] = name
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
