package resource

import (
	"context"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// ResourceService manages the resource registry the hierarchy is walked
// over. The business data behind each resource lives with its own adapter;
// this service only keeps the registry and the engine coherent.
type ResourceService struct {
	db            *store.DB
	resourceStore store.ResourceStore
	grantStore    store.GrantStore
	grantService  services.GrantService
	hierarchy     services.HierarchyService
	cache         services.CacheService
	logger.Log
}

func NewResourceService(
	db *store.DB,
	resourceStore store.ResourceStore,
	grantStore store.GrantStore,
	grantService services.GrantService,
	hierarchy services.HierarchyService,
	cache services.CacheService,
	logFactory logger.LogFactory,
) *ResourceService {
	return &ResourceService{
		db:            db,
		resourceStore: resourceStore,
		grantStore:    grantStore,
		grantService:  grantService,
		hierarchy:     hierarchy,
		cache:         cache,
		Log:           logFactory("ResourceService"),
	}
}

// Create registers a resource and issues the creator's manage grant in the
// same transaction.
func (s *ResourceService) Create(ctx context.Context, txOrNil *store.Tx, creatorID models.UserID, record *models.ResourceRecord) (*models.ResourceRecord, error) {
	err := record.Validate()
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
	}
	err = s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		if record.ParentID.Valid() {
			_, err := s.resourceStore.Read(ctx, tx, record.ParentID)
			if err != nil {
				return errors.Wrap(err, "error reading parent resource")
			}
		}
		err := s.resourceStore.Create(ctx, tx, record)
		if err != nil {
			return errors.Wrap(err, "error creating resource")
		}
		_, err = s.grantService.AutoGrantManageOnCreate(ctx, tx, creatorID, record.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Read an existing resource record, looking it up by ID.
func (s *ResourceService) Read(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) (*models.ResourceRecord, error) {
	return s.resourceStore.Read(ctx, txOrNil, id)
}

// Reparent moves a resource under a new parent and drops its cached
// ancestor chain. Descendant chains age out on their TTL.
func (s *ResourceService) Reparent(ctx context.Context, txOrNil *store.Tx, id models.ResourceID, newParentID models.ResourceID) (*models.ResourceRecord, error) {
	var record *models.ResourceRecord
	err := s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		var err error
		record, err = s.resourceStore.Read(ctx, tx, id)
		if err != nil {
			return errors.Wrap(err, "error reading resource")
		}
		_, err = s.resourceStore.Read(ctx, tx, newParentID)
		if err != nil {
			return errors.Wrap(err, "error reading new parent")
		}
		record.ParentID = newParentID
		err = record.Validate()
		if err != nil {
			return gerror.NewErrValidationFailed(err.Error()).Wrap(err)
		}
		return s.resourceStore.Update(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}
	s.hierarchy.InvalidateAncestors(ctx, id)
	// Inherited decisions through the old chain are now stale.
	s.cache.DeletePrefix(ctx, services.DecisionCacheKeyPrefix)
	return record, nil
}

// Delete removes a resource record together with the grants attached to it.
// The caller is responsible for the resource's descendants.
func (s *ResourceService) Delete(ctx context.Context, txOrNil *store.Tx, id models.ResourceID) error {
	err := s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		err := s.grantStore.DeleteAllForResource(ctx, tx, id)
		if err != nil {
			return errors.Wrap(err, "error deleting grants on resource")
		}
		return s.resourceStore.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.hierarchy.InvalidateAncestors(ctx, id)
	s.cache.DeletePrefix(ctx, services.DecisionCacheKeyPrefix)
	return nil
}
