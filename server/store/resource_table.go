package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
)

var resourceInterface = reflect.TypeOf((*models.Resource)(nil)).Elem()

type queryBuilder interface {
	ToSQL() (string, []interface{}, error)
}

type tableDescriptor struct {
	tableName        string
	idColName        string
	createdAtColName string
}

// ResourceTable implements the store operations shared by every resource
// model, driven by the model's "db" tag conventions.
type ResourceTable struct {
	logger.Log
	tableDescriptor
	db *DB
}

func NewResourceTable(db *DB, logFactory logger.LogFactory, resource models.Resource) *ResourceTable {
	return NewResourceTableWithTableName(db, logFactory, "", resource)
}

func NewResourceTableWithTableName(db *DB, logFactory logger.LogFactory, tableName string, resource models.Resource) *ResourceTable {
	desc := mustTableDescriptor(resource, tableName)
	return &ResourceTable{
		db:              db,
		tableDescriptor: desc,
		Log:             logFactory(fmt.Sprintf("%s_table", desc.tableName)),
	}
}

// MustDBModel verifies a resource model matches our conventions and contains suitable "db" tags.
//   - Model must contain one or more "db" tags
//   - All "db" tags must have a common field prefix e.g grant_ or user_ etc.
//   - There must be a prefix_id field e.g. grant_id or user_id etc.
//   - There must be a prefix_created_at field e.g. grant_created_at
func MustDBModel(resource models.Resource) {
	mustTableDescriptor(resource, "")
}

// Dialect returns the goqu dialect (aka SQL Driver e.g. sqlite3, postgres etc.) in use.
func (d *ResourceTable) Dialect() goqu.DialectWrapper {
	return goqu.Dialect(d.db.DriverName())
}

// ReadByID reads an existing resource, looking it up by ResourceID.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceTable) ReadByID(ctx context.Context, txOrNil *Tx, id models.ResourceID, resource models.Resource) error {
	return d.ReadWhere(ctx, txOrNil, resource, goqu.Ex{d.idColName: id})
}

// ReadWhere reads an existing resource, looking it up using the supplied where clauses.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceTable) ReadWhere(ctx context.Context, txOrNil *Tx, resource models.Resource, where ...goqu.Expression) error {
	return d.ReadIn(ctx, txOrNil, resource, d.Dialect().From(d.tableName).Select(resource).Where(where...))
}

// ReadIn reads an existing resource from the supplied select dataset.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceTable) ReadIn(ctx context.Context, txOrNil *Tx, resource models.Resource, ds *goqu.SelectDataset) error {
	ds = ds.Limit(1)
	return d.db.Read(txOrNil, func(db Reader) error {
		query, args, err := ds.ToSQL()
		if err != nil {
			return fmt.Errorf("error generating query: %w", err)
		}
		d.LogQuery(query, args)
		found, err := db.ScanStructContext(ctx, resource, query, args...)
		if err != nil {
			return MakeStandardDBError(err)
		}
		if !found {
			return gerror.NewErrNotFound("Not Found")
		}
		return nil
	})
}

// Create a new resource.
// Returns gerror.ErrAlreadyExists if a resource with matching unique properties already exists.
func (d *ResourceTable) Create(ctx context.Context, txOrNil *Tx, resource models.Resource) error {
	err := resource.Validate()
	if err != nil {
		return fmt.Errorf("error resource invalid: %w", err)
	}
	return d.db.Write(txOrNil, func(db Writer) error {
		_, err := d.LogInsert(db.Insert(d.tableName).Rows(resource)).Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("error executing create query: %w", MakeStandardDBError(err))
		}
		return nil
	})
}

// findOrCreateReadFn must return gerror.ErrNotFound if the resource does not exist
type findOrCreateReadFn func(ctx context.Context, txOrNil *Tx) (models.Resource, error)

// findOrCreateCreateFn must return gerror.ErrAlreadyExists if the resource already exists, and
// return the newly created resource on success
type findOrCreateCreateFn func(ctx context.Context, txOrNil *Tx) (models.Resource, error)

// FindOrCreate creates a resource if it does not exist, otherwise it reads and returns the existing resource.
// Returns the resource as it is in the database, and true iff the resource was created.
func (d *ResourceTable) FindOrCreate(
	ctx context.Context,
	txOrNil *Tx,
	readFn findOrCreateReadFn,
	createFn findOrCreateCreateFn,
) (resource models.Resource, created bool, err error) {
	resource, created, err = d.findOrCreateInner(ctx, txOrNil, readFn, createFn)
	if err != nil && gerror.ToAlreadyExists(err) != nil {
		// Try once to accommodate a racing create. We would expect the next time around we enter into
		// the 'find' path. We don't care to compensate for rapid creation/deletion of a resource.
		d.Infof("Conflicting create detected in findOrCreate - trying again once: %v", err)
		resource, created, err = d.findOrCreateInner(ctx, txOrNil, readFn, createFn)
	}
	return resource, created, err
}

func (d *ResourceTable) findOrCreateInner(
	ctx context.Context,
	txOrNil *Tx,
	readFn findOrCreateReadFn,
	createFn findOrCreateCreateFn,
) (resource models.Resource, created bool, err error) {
	created = false
	resource, err = readFn(ctx, txOrNil)
	if err != nil {
		if gerror.ToNotFound(err) != nil {
			resource = nil // not found, so carry on to create
		} else {
			return nil, false, fmt.Errorf("error reading resource: %w", err)
		}
	}
	if resource == nil {
		resource, err = createFn(ctx, txOrNil)
		if err != nil {
			return nil, false, fmt.Errorf("error creating resource: %w", err)
		}
		created = true
	}
	return resource, created, nil // either read or create succeeded
}

// DeleteByID idempotently deletes one resource by id.
func (d *ResourceTable) DeleteByID(ctx context.Context, txOrNil *Tx, id models.ResourceID) error {
	return d.DeleteWhere(ctx, txOrNil, goqu.Ex{d.idColName: id})
}

// DeleteWhere idempotently deletes one or more resources that match the supplied where clauses.
func (d *ResourceTable) DeleteWhere(ctx context.Context, txOrNil *Tx, where ...goqu.Expression) error {
	return d.db.Write(txOrNil, func(db Writer) error {
		_, err := d.logDelete(db.Delete(d.tableName).Where(where...)).Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("error executing delete query: %w", MakeStandardDBError(err))
		}
		return nil
	})
}

// UpdateByID updates an existing resource. Identifies the resource by id. Overrides all previous
// values using the supplied model.
// Returns gerror.ErrNotFound if the resource does not exist.
func (d *ResourceTable) UpdateByID(ctx context.Context, txOrNil *Tx, resource models.Resource) error {
	err := resource.Validate()
	if err != nil {
		return fmt.Errorf("error resource invalid: %w", err)
	}
	return d.db.Write(txOrNil, func(db Writer) error {
		res, err := d.LogUpdate(db.Update(d.tableName).Set(resource).Where(goqu.Ex{d.idColName: resource.GetID()})).Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("error executing update query: %w", MakeStandardDBError(err))
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("error reading rows affected: %w", MakeStandardDBError(err))
		}
		if rowsAffected == 0 {
			return gerror.NewErrNotFound(fmt.Sprintf("%s does not exist", resource.GetID()))
		}
		return nil
	})
}

// ListIn lists resources in the specified select dataset, paged by the supplied options.
// Resources are listed in order of the newest creation date first (with ID being the tie-breaker);
// any ordering specified in the supplied Dataset is ignored.
// Resources must be a pointer to a slice of the resource type e.g. &[]*models.Grant
func (d *ResourceTable) ListIn(ctx context.Context, txOrNil *Tx, resources interface{}, opts models.ListOptions, ds *goqu.SelectDataset) error {
	slicePtr := reflect.TypeOf(resources)
	if slicePtr.Kind() != reflect.Ptr {
		d.Panicf("expected pointer to slice, found: %T", resources)
	}
	sliceT := slicePtr.Elem()
	if sliceT.Kind() != reflect.Slice {
		d.Panicf("expected slice, found: %T", resources)
	}
	if !sliceT.Elem().Implements(resourceInterface) {
		d.Panicf("expected slice of resource, found: %s", sliceT.Elem().Kind())
	}

	return d.db.Read(txOrNil, func(db Reader) error {
		ds = ds.
			Order(goqu.I(d.createdAtColName).Desc()).
			OrderAppend(goqu.I(d.idColName).Desc()).
			Limit(uint(opts.EffectiveLimit()))
		if opts.Offset > 0 {
			ds = ds.Offset(uint(opts.Offset))
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return fmt.Errorf("error generating query: %w", err)
		}
		d.LogQuery(query, args)
		err = db.ScanStructsContext(ctx, resources, query, args...)
		if err != nil {
			return MakeStandardDBError(err)
		}
		return nil
	})
}

// MakeStandardDBError maps driver-specific errors onto our standard gerror codes.
func MakeStandardDBError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
			return gerror.NewErrAlreadyExists("Resource already exists").Wrap(sqliteErr)
		}
		if sqliteErr.Code == sqlite3.ErrNotFound {
			return gerror.NewErrNotFound("Resource not found").Wrap(sqliteErr)
		}
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		// 23505 -> unique_violation
		if pgErr.Code == "23505" {
			return gerror.NewErrAlreadyExists("Resource already exists").Wrap(pgErr)
		}
		// P0002 -> no_data_found
		if pgErr.Code == "P0002" {
			return gerror.NewErrNotFound("Resource not found").Wrap(pgErr)
		}
	}
	return err
}

// LogInsert logs an insert query via the configured logger.
func (d *ResourceTable) LogInsert(ds *goqu.InsertDataset) *goqu.InsertDataset {
	d.logQueryDS(ds)
	return ds
}

// LogUpdate logs an update query via the configured logger.
func (d *ResourceTable) LogUpdate(ds *goqu.UpdateDataset) *goqu.UpdateDataset {
	d.logQueryDS(ds)
	return ds
}

// logDelete logs a delete query via the configured logger.
func (d *ResourceTable) logDelete(ds *goqu.DeleteDataset) *goqu.DeleteDataset {
	d.logQueryDS(ds)
	return ds
}

// logQueryDS generates and logs the raw SQL of a query to the configured logger.
func (d *ResourceTable) logQueryDS(ds queryBuilder) {
	query, args, err := ds.ToSQL()
	if err != nil {
		d.Errorf("Error generating query: %v", err)
		return
	}
	d.LogQuery(query, args)
}

// LogQuery logs a SQL query and args to the configured logger.
func (d *ResourceTable) LogQuery(query string, args []interface{}) {
	d.WithFields(logger.Fields{"query": query, "args": args}).Trace()
}

func (d *ResourceTable) TableName() string {
	return d.tableName
}

// mustTableDescriptor generates a table descriptor for a resource model. Panics if the model does not match our conventions.
// See MustDBModel for a description of the rules.
func mustTableDescriptor(resource models.Resource, tableNameOverride string) tableDescriptor {
	t := reflect.TypeOf(resource)
	fieldMap := make(map[string]struct{})
	collectDBTags(t, fieldMap)

	fieldPrefix := "" // e.g. grant
	for val := range fieldMap {
		candidate := strings.TrimSuffix(val, idColSuffix) // in case there is only one field (assuming it's id, which is required)
		if fieldPrefix == "" {
			fieldPrefix = candidate
			continue
		}
		k := 0
		for ; k < min(len(candidate), len(fieldPrefix)); k++ {
			if candidate[k] != fieldPrefix[k] {
				k--
				break
			}
		}
		if k <= 0 {
			panic("All db fields must be prefixed with the table name")
		}
		fieldPrefix = candidate[:k]
	}

	if fieldPrefix == "" {
		panic("Unable to determine db field prefix")
	}

	expectedFieldExists := map[string]bool{
		makeIDColName(fieldPrefix):        false, // e.g. grant_id
		makeCreatedAtColName(fieldPrefix): false, // e.g. grant_created_at
	}
	for val := range fieldMap {
		if _, ok := expectedFieldExists[val]; ok {
			expectedFieldExists[val] = true
		}
	}

	tableName := tableNameOverride
	if tableName == "" {
		tableName = fieldPrefix + "s" // e.g. grants
	}

	for field, exists := range expectedFieldExists {
		if !exists {
			panic(fmt.Sprintf("expected %q model to contain a field with a \"db\" tag matching %q", tableName, field))
		}
	}

	return tableDescriptor{
		tableName:        tableName,
		idColName:        makeIDColName(fieldPrefix),
		createdAtColName: makeCreatedAtColName(fieldPrefix),
	}
}

// collectDBTags returns a map containing the db tag values of all fields in the flattened t.
func collectDBTags(t reflect.Type, fieldMap map[string]struct{}) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			collectDBTags(field.Type, fieldMap)
		} else {
			val, ok := field.Tag.Lookup(dbTagName)
			if ok {
				fieldMap[val] = struct{}{}
			}
		}
	}
}

const dbTagName = "db"

const idColSuffix = "_id"

func makeIDColName(fieldPrefix string) string {
	return fieldPrefix + idColSuffix
}

const createdAtColSuffix = "_created_at"

func makeCreatedAtColName(fieldPrefix string) string {
	return fieldPrefix + createdAtColSuffix
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
