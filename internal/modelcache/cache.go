// Package modelcache persists trained model artifacts as opaque blobs and
// coordinates training so each key is built at most once at a time.
package modelcache

import (
	"context"
	"errors"
	"sync"
)

// ErrMiss is returned by Cache.Get when no artifact is stored under a key.
var ErrMiss = errors.New("modelcache: miss")

// Cache stores serialized artifacts by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
	Invalidate(ctx context.Context, key string) error
}

// ForecastKey addresses a user's forecast artifact.
func ForecastKey(userID string) string {
	return "forecast/" + userID
}

// ClassifierKey addresses the shared classifier artifact.
const ClassifierKey = "classifier/global"

// MemoryCache keeps artifacts in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{blobs: make(map[string][]byte)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blob, ok := c.blobs[key]
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), blob...), nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.blobs, key)
	return nil
}
