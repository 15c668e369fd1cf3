package grants

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/doug-martin/goqu/v9"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store"
)

func init() {
	store.MustDBModel(&models.Grant{})
}

// GrantStore persists grants. Every read filters out expired rows, so a
// grant stops contributing to decisions the instant its expiry passes,
// independent of when the expiration worker harvests the row.
type GrantStore struct {
	db    *store.DB
	table *store.ResourceTable
	clock clock.Clock
}

func NewStore(db *store.DB, logFactory logger.LogFactory, clk clock.Clock) *GrantStore {
	return &GrantStore{
		db:    db,
		table: store.NewResourceTable(db, logFactory, &models.Grant{}),
		clock: clk,
	}
}

// liveExpr matches grants that have not expired as of now.
func (d *GrantStore) liveExpr() goqu.Expression {
	now := models.NewTime(d.clock.Now())
	return goqu.Or(
		goqu.C("grant_expires_at").IsNull(),
		goqu.C("grant_expires_at").Gt(now),
	)
}

// Create a new grant.
// Returns gerror.ErrAlreadyExists if an equivalent grant already exists.
func (d *GrantStore) Create(ctx context.Context, txOrNil *store.Tx, grant *models.Grant) error {
	d.table.Infof("Creating grant: %s %s may %s %s on %s",
		grant.GranteeType, grant.GranteeID, grant.Effect, grant.Permission, grant.ResourceID)
	return d.table.Create(ctx, txOrNil, grant)
}

// Read an existing grant, looking it up by ID. Expired grants are not returned.
// Returns gerror.ErrNotFound if the grant does not exist or has expired.
func (d *GrantStore) Read(ctx context.Context, txOrNil *store.Tx, id models.GrantID) (*models.Grant, error) {
	grant := &models.Grant{}
	return grant, d.table.ReadWhere(ctx, txOrNil, grant, goqu.Ex{"grant_id": id.ResourceID}, d.liveExpr())
}

// Delete permanently and idempotently deletes a grant, identifying it by id.
func (d *GrantStore) Delete(ctx context.Context, txOrNil *store.Tx, id models.GrantID) error {
	d.table.Infof("Removing grant with ID %s", id)
	return d.table.DeleteByID(ctx, txOrNil, id.ResourceID)
}

// ListForDecision returns every live grant eligible to decide the supplied
// request: any combination of the grantee set (the user plus their groups),
// the resource set (the resource plus its ancestors) and the permission
// set (the permission's strength closure).
func (d *GrantStore) ListForDecision(
	ctx context.Context,
	txOrNil *store.Tx,
	grantees []models.ResourceID,
	resources []models.ResourceID,
	permissions []models.Permission,
) ([]*models.Grant, error) {
	if len(grantees) == 0 || len(resources) == 0 || len(permissions) == 0 {
		return nil, nil
	}
	granteeValues := make([]interface{}, 0, len(grantees))
	for _, grantee := range grantees {
		granteeValues = append(granteeValues, grantee)
	}
	resourceValues := make([]interface{}, 0, len(resources))
	for _, resource := range resources {
		resourceValues = append(resourceValues, resource)
	}
	permissionValues := make([]interface{}, 0, len(permissions))
	for _, permission := range permissions {
		permissionValues = append(permissionValues, permission)
	}

	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(
			goqu.C("grant_grantee_id").In(granteeValues...),
			goqu.C("grant_resource_id").In(resourceValues...),
			goqu.C("grant_permission").In(permissionValues...),
			d.liveExpr(),
		).
		Order(goqu.I("grant_created_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListForGranteeSet returns every live grant held by any of the supplied
// grantees, oldest first.
func (d *GrantStore) ListForGranteeSet(ctx context.Context, txOrNil *store.Tx, grantees []models.ResourceID) ([]*models.Grant, error) {
	if len(grantees) == 0 {
		return nil, nil
	}
	granteeValues := make([]interface{}, 0, len(grantees))
	for _, grantee := range grantees {
		granteeValues = append(granteeValues, grantee)
	}
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.C("grant_grantee_id").In(granteeValues...), d.liveExpr()).
		Order(goqu.I("grant_created_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListForResourceSet returns every live grant attached to any of the
// supplied resources, oldest first.
func (d *GrantStore) ListForResourceSet(ctx context.Context, txOrNil *store.Tx, resources []models.ResourceID) ([]*models.Grant, error) {
	if len(resources) == 0 {
		return nil, nil
	}
	resourceValues := make([]interface{}, 0, len(resources))
	for _, resource := range resources {
		resourceValues = append(resourceValues, resource)
	}
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.C("grant_resource_id").In(resourceValues...), d.liveExpr()).
		Order(goqu.I("grant_created_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByResource lists all live grants attached directly to a resource, newest first.
func (d *GrantStore) ListByResource(ctx context.Context, txOrNil *store.Tx, resourceID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error) {
	grantSelect := goqu.
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.Ex{"grant_resource_id": resourceID}, d.liveExpr())

	var result []*models.Grant
	err := d.table.ListIn(ctx, txOrNil, &result, opts, grantSelect)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByGrantee lists all live grants held directly by a grantee, newest first.
func (d *GrantStore) ListByGrantee(ctx context.Context, txOrNil *store.Tx, granteeType models.GranteeType, granteeID models.ResourceID, opts models.ListOptions) ([]*models.Grant, error) {
	grantSelect := goqu.
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.Ex{
			"grant_grantee_type": granteeType,
			"grant_grantee_id":   granteeID,
		}, d.liveExpr())

	var result []*models.Grant
	err := d.table.ListIn(ctx, txOrNil, &result, opts, grantSelect)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListMemberships returns the live membership grants for a user: the
// grants of permission member held by the user against any group.
func (d *GrantStore) ListMemberships(ctx context.Context, txOrNil *store.Tx, userID models.UserID) ([]*models.Grant, error) {
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.Ex{
			"grant_grantee_type":  models.UserGranteeType,
			"grant_grantee_id":    userID.ResourceID,
			"grant_resource_kind": models.GroupResourceKind,
			"grant_permission":    models.PermissionMember,
			"grant_effect":        models.EffectAllow,
		}, d.liveExpr()).
		Order(goqu.I("grant_created_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListMembersOfGroup returns the live membership grants against a group.
func (d *GrantStore) ListMembersOfGroup(ctx context.Context, txOrNil *store.Tx, groupID models.GroupID) ([]*models.Grant, error) {
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(goqu.Ex{
			"grant_resource_id": groupID.ResourceID,
			"grant_permission":  models.PermissionMember,
			"grant_effect":      models.EffectAllow,
		}, d.liveExpr()).
		Order(goqu.I("grant_created_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListExpired returns grants whose expiry time is at or before the supplied
// instant, oldest expiry first, up to limit rows.
func (d *GrantStore) ListExpired(ctx context.Context, txOrNil *store.Tx, now models.Time, limit int) ([]*models.Grant, error) {
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(
			goqu.C("grant_expires_at").IsNotNull(),
			goqu.C("grant_expires_at").Lte(now),
		).
		Order(goqu.I("grant_expires_at").Asc()).
		Limit(uint(limit))

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListExpiringBetween returns live grants whose expiry time falls in
// (from, until], soonest first.
func (d *GrantStore) ListExpiringBetween(ctx context.Context, txOrNil *store.Tx, from models.Time, until models.Time) ([]*models.Grant, error) {
	ds := d.table.Dialect().
		From(d.table.TableName()).
		Select(&models.Grant{}).
		Where(
			goqu.C("grant_expires_at").IsNotNull(),
			goqu.C("grant_expires_at").Gt(from),
			goqu.C("grant_expires_at").Lte(until),
		).
		Order(goqu.I("grant_expires_at").Asc())

	var result []*models.Grant
	err := d.scanGrants(ctx, txOrNil, &result, ds)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scanGrants runs a select dataset that carries its own ordering, unlike the
// created-at ordering ListIn imposes.
func (d *GrantStore) scanGrants(ctx context.Context, txOrNil *store.Tx, result *[]*models.Grant, ds *goqu.SelectDataset) error {
	return d.db.Read(txOrNil, func(db store.Reader) error {
		query, args, err := ds.ToSQL()
		if err != nil {
			return fmt.Errorf("error generating query: %w", err)
		}
		d.table.LogQuery(query, args)
		err = db.ScanStructsContext(ctx, result, query, args...)
		if err != nil {
			return store.MakeStandardDBError(err)
		}
		return nil
	})
}

// DeleteAllForGrantee permanently and idempotently deletes all grants held by a grantee.
func (d *GrantStore) DeleteAllForGrantee(ctx context.Context, txOrNil *store.Tx, granteeType models.GranteeType, granteeID models.ResourceID) error {
	d.table.Infof("Removing all grants for %s %s", granteeType, granteeID)
	return d.table.DeleteWhere(ctx, txOrNil, goqu.Ex{
		"grant_grantee_type": granteeType,
		"grant_grantee_id":   granteeID,
	})
}

// DeleteAllForResource permanently and idempotently deletes all grants attached to a resource.
func (d *GrantStore) DeleteAllForResource(ctx context.Context, txOrNil *store.Tx, resourceID models.ResourceID) error {
	d.table.Infof("Removing all grants on resource %s", resourceID)
	return d.table.DeleteWhere(ctx, txOrNil, goqu.Ex{"grant_resource_id": resourceID})
}
