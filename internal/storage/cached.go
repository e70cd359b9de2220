package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CachedStore reads through a BlobCache. Cache failures never fail a read;
// they are logged and the underlying store is used.
type CachedStore struct {
	store  ObjectStore
	cache  BlobCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps store with cache. A nil logger disables logging.
func NewCachedStore(store ObjectStore, cache BlobCache, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Get returns the cached bytes for key, or fetches and caches them.
// Not-found results are not cached.
func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok, err := c.cache.GetBlob(ctx, key)
	if err != nil {
		c.logger.Warn("blob cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return data, nil
	}
	data, err = c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetBlob(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("blob cache write failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}
