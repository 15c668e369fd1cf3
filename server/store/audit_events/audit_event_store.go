package audit_events

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

func init() {
	store.MustDBModel(&models.AuditEvent{})
}

// AuditEventStore persists the append-only audit log. Events are never
// updated or deleted; the database assigns each row a sequence number that
// fixes a total order among events sharing a timestamp.
type AuditEventStore struct {
	db    *store.DB
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *AuditEventStore {
	return &AuditEventStore{
		db:    db,
		table: store.NewResourceTable(db, logFactory, &models.AuditEvent{}),
	}
}

// Create appends a new audit event. The event's sequence number is
// assigned by the database.
func (d *AuditEventStore) Create(ctx context.Context, txOrNil *store.Tx, event *models.AuditEvent) error {
	d.table.Infof("Appending %s audit event for %s on %s", event.Kind, event.GranteeID, event.ResourceID)
	return d.table.Create(ctx, txOrNil, event)
}

// Read an existing audit event, looking it up by ID.
// Returns gerror.ErrNotFound if the event does not exist.
func (d *AuditEventStore) Read(ctx context.Context, txOrNil *store.Tx, id models.AuditEventID) (*models.AuditEvent, error) {
	event := &models.AuditEvent{}
	return event, d.table.ReadByID(ctx, txOrNil, id.ResourceID, event)
}

// List pages through audit events matching the supplied filter, newest
// first with sequence number as the tie-breaker.
func (d *AuditEventStore) List(ctx context.Context, txOrNil *store.Tx, filter models.AuditEventFilter, opts models.ListOptions) ([]*models.AuditEvent, error) {
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.AuditEvent{})
	if filter.Kind != "" {
		ds = ds.Where(goqu.Ex{"audit_event_kind": filter.Kind})
	}
	if !filter.ActorID.IsZero() {
		ds = ds.Where(goqu.Ex{"audit_event_actor_id": filter.ActorID})
	}
	if !filter.TargetID.IsZero() {
		ds = ds.Where(goqu.Ex{"audit_event_resource_id": filter.TargetID})
	}
	if filter.Since != nil {
		ds = ds.Where(goqu.C("audit_event_created_at").Gte(*filter.Since))
	}
	if filter.Until != nil {
		ds = ds.Where(goqu.C("audit_event_created_at").Lt(*filter.Until))
	}
	ds = ds.
		Order(goqu.I("audit_event_created_at").Desc()).
		OrderAppend(goqu.I("audit_event_sequence").Desc()).
		Limit(uint(opts.EffectiveLimit()))
	if opts.Offset > 0 {
		ds = ds.Offset(uint(opts.Offset))
	}

	var result []*models.AuditEvent
	err := d.db.Read(txOrNil, func(db store.Reader) error {
		query, args, err := ds.ToSQL()
		if err != nil {
			return fmt.Errorf("error generating query: %w", err)
		}
		d.table.LogQuery(query, args)
		err = db.ScanStructsContext(ctx, &result, query, args...)
		if err != nil {
			return store.MakeStandardDBError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
