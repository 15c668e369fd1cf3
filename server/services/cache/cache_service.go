package cache

import (
	"context"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"github.com/siteguard/siteguard/common/logger"
)

// DefaultMaxEntries bounds the in-process cache. Decisions dominate the key
// population, so this is roughly the number of hot (user, resource,
// permission) triples held at once.
const DefaultMaxEntries = 65536

// CacheService is the in-process implementation of services.CacheService,
// an LRU with a per-entry TTL. It is strictly an accelerator: every failure
// path degrades to a miss.
type CacheService struct {
	cache gcache.Cache
	logger.Log
}

func NewCacheService(maxEntries int, logFactory logger.LogFactory) *CacheService {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &CacheService{
		cache: gcache.New(maxEntries).LRU().Build(),
		Log:   logFactory("CacheService"),
	}
}

func (s *CacheService) Get(ctx context.Context, key string) (interface{}, bool) {
	value, err := s.cache.Get(key)
	if err != nil {
		if err != gcache.KeyNotFoundError {
			s.Errorf("Error reading cache key %q: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	err := s.cache.SetWithExpire(key, value, ttl)
	if err != nil {
		s.Errorf("Error writing cache key %q: %v", key, err)
	}
}

func (s *CacheService) Delete(ctx context.Context, key string) {
	s.cache.Remove(key)
}

func (s *CacheService) DeletePrefix(ctx context.Context, prefix string) {
	for _, key := range s.cache.Keys(false) {
		str, ok := key.(string)
		if ok && strings.HasPrefix(str, prefix) {
			s.cache.Remove(key)
		}
	}
}

func (s *CacheService) Flush(ctx context.Context) {
	s.cache.Purge()
}

// NoOpCacheService satisfies services.CacheService when caching is disabled;
// every lookup is a miss.
type NoOpCacheService struct{}

func NewNoOpCacheService() *NoOpCacheService {
	return &NoOpCacheService{}
}

func (s *NoOpCacheService) Get(ctx context.Context, key string) (interface{}, bool) {
	return nil, false
}

func (s *NoOpCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
}

func (s *NoOpCacheService) Delete(ctx context.Context, key string) {}

func (s *NoOpCacheService) DeletePrefix(ctx context.Context, prefix string) {}

func (s *NoOpCacheService) Flush(ctx context.Context) {}
