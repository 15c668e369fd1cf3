package resources

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

func init() {
	store.MustDBModel(&models.ResourceRecord{})
}

// ResourceStore persists the registry of authorizable resources that backs
// the hierarchy resolver.
type ResourceStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *ResourceStore {
	return &ResourceStore{
		table: store.NewResourceTable(db, logFactory, &models.ResourceRecord{}),
	}
}

// Create registers a new resource in the hierarchy.
// Returns gerror.ErrAlreadyExists if a resource with this ID already exists.
func (d *ResourceStore) Create(ctx context.Context, txOrNil *store.Tx, record *models.ResourceRecord) error {
	d.table.Infof("Registering %s resource %q", record.Kind, record.Name)
	return d.table.Create(ctx, txOrNil, record)
}

// Read an existing resource record, looking it up by ID.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceStore) Read(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) (*models.ResourceRecord, error) {
	record := &models.ResourceRecord{}
	return record, d.table.ReadByID(ctx, txOrNil, id, record)
}

// Update an existing resource record, e.g. to rename or re-parent it.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceStore) Update(ctx context.Context, txOrNil *store.Tx, record *models.ResourceRecord) error {
	return d.table.UpdateByID(ctx, txOrNil, record)
}

// Delete permanently and idempotently deletes a resource record.
// The caller is responsible for the resource's grants and descendants.
func (d *ResourceStore) Delete(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) error {
	d.table.Infof("Removing resource record for %s", id)
	return d.table.DeleteByID(ctx, txOrNil, id)
}

// ListByParent lists the direct children of the supplied resource, newest first.
func (d *ResourceStore) ListByParent(ctx context.Context, txOrNil *store.Tx, parentID models.ResourceID, opts models.ListOptions) ([]*models.ResourceRecord, error) {
	recordSelect := goqu.
		From(d.table.TableName()).
		Select(&models.ResourceRecord{}).
		Where(goqu.Ex{"resource_parent_id": parentID})

	var records []*models.ResourceRecord
	err := d.table.ListIn(ctx, txOrNil, &records, opts, recordSelect)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListByKind pages through all resources of a kind, newest first.
func (d *ResourceStore) ListByKind(ctx context.Context, txOrNil *store.Tx, kind models.ResourceKind, opts models.ListOptions) ([]*models.ResourceRecord, error) {
	recordSelect := goqu.
		From(d.table.TableName()).
		Select(&models.ResourceRecord{}).
		Where(goqu.Ex{"resource_kind": kind})

	var records []*models.ResourceRecord
	err := d.table.ListIn(ctx, txOrNil, &records, opts, recordSelect)
	if err != nil {
		return nil, err
	}
	return records, nil
}
