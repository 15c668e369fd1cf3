package hierarchy

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/store"
)

// DefaultAncestorsTTL applies when no TTL is configured. Ancestor chains only
// change on a re-parent, so hours of staleness is acceptable.
const DefaultAncestorsTTL = AncestorsTTL(6 * time.Hour)

// AncestorsTTL is how long cached ancestor chains live.
type AncestorsTTL time.Duration

// HierarchyService resolves a resource to its ancestor chain by walking
// parent foreign keys through the resource registry, guided by the static
// parent-kind map.
type HierarchyService struct {
	resourceStore store.ResourceStore
	userStore     store.UserStore
	groupStore    store.GroupStore
	cache         services.CacheService
	ancestorsTTL  time.Duration
	logger.Log
}

func NewHierarchyService(
	resourceStore store.ResourceStore,
	userStore store.UserStore,
	groupStore store.GroupStore,
	cache services.CacheService,
	ancestorsTTL AncestorsTTL,
	logFactory logger.LogFactory,
) *HierarchyService {
	if ancestorsTTL <= 0 {
		ancestorsTTL = DefaultAncestorsTTL
	}
	return &HierarchyService{
		resourceStore: resourceStore,
		userStore:     userStore,
		groupStore:    groupStore,
		cache:         cache,
		ancestorsTTL:  time.Duration(ancestorsTTL),
		Log:           logFactory("HierarchyService"),
	}
}

// Ancestors returns the resource's ancestor chain, depth 0 first. A
// standalone resource's chain is just itself. If a parent row is missing the
// chain truncates there; that is not an error.
func (s *HierarchyService) Ancestors(ctx context.Context, resourceID models.ResourceID) ([]models.AncestorLink, error) {
	if !models.IsHierarchical(resourceID.Kind()) {
		return []models.AncestorLink{{Kind: resourceID.Kind(), ID: resourceID, Depth: 0}}, nil
	}

	key := services.AncestorsCacheKey(resourceID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		if chain, ok := cached.([]models.AncestorLink); ok {
			return chain, nil
		}
	}

	chain, err := s.walk(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, chain, s.ancestorsTTL)
	return chain, nil
}

func (s *HierarchyService) walk(ctx context.Context, resourceID models.ResourceID) ([]models.AncestorLink, error) {
	chain := []models.AncestorLink{{Kind: resourceID.Kind(), ID: resourceID, Depth: 0}}
	currentID := resourceID
	for depth := 1; ; depth++ {
		if _, ok := models.ParentKindOf(currentID.Kind()); !ok {
			return chain, nil
		}
		record, err := s.resourceStore.Read(ctx, nil, currentID)
		if err != nil {
			if gerror.IsNotFound(err) {
				s.Tracef("Ancestor walk for %s truncated at depth %d: %s not registered", resourceID, depth-1, currentID)
				return chain, nil
			}
			return nil, errors.Wrap(err, "error reading resource record")
		}
		if record.ParentID.IsZero() {
			return chain, nil
		}
		chain = append(chain, models.AncestorLink{Kind: record.ParentID.Kind(), ID: record.ParentID, Depth: depth})
		currentID = record.ParentID
	}
}

// InheritanceChain is Ancestors with display names resolved from the
// relevant registries.
func (s *HierarchyService) InheritanceChain(ctx context.Context, resourceID models.ResourceID) ([]models.AncestorLink, error) {
	chain, err := s.Ancestors(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	named := make([]models.AncestorLink, len(chain))
	for i, link := range chain {
		link.Name = s.resolveName(ctx, link.ID)
		named[i] = link
	}
	return named, nil
}

// resolveName looks up a display name for any grantable resource. Missing
// rows resolve to the ID's string form.
func (s *HierarchyService) resolveName(ctx context.Context, resourceID models.ResourceID) string {
	switch resourceID.Kind() {
	case models.UserResourceKind:
		user, err := s.userStore.Read(ctx, nil, models.UserIDFromResourceID(resourceID))
		if err == nil {
			return user.DisplayName()
		}
	case models.GroupResourceKind:
		group, err := s.groupStore.Read(ctx, nil, models.GroupIDFromResourceID(resourceID))
		if err == nil {
			return group.Name
		}
	default:
		record, err := s.resourceStore.Read(ctx, nil, resourceID)
		if err == nil {
			return record.Name
		}
	}
	return resourceID.String()
}

// InvalidateAncestors drops the cached chain for a resource. Descendant
// chains age out on their TTL; re-parenting is rare enough that precise
// descendant invalidation is not worth tracking.
func (s *HierarchyService) InvalidateAncestors(ctx context.Context, resourceID models.ResourceID) {
	s.cache.Delete(ctx, services.AncestorsCacheKey(resourceID))
}
