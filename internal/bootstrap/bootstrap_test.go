package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	s, closeStore, err := OpenStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
	})
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &store.MemoryStore{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		cache config.CacheConfig
		want  any
	}{
		{name: "memory", cache: config.CacheConfig{Backend: "memory"}, want: &modelcache.MemoryCache{}},
		{name: "file", cache: config.CacheConfig{Backend: "file", Dir: t.TempDir()}, want: &modelcache.FileCache{}},
		{name: "redis url", cache: config.CacheConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr(), Prefix: "m/"}, want: &modelcache.RedisCache{}},
		{name: "redis host port", cache: config.CacheConfig{Backend: "redis", RedisURL: mr.Addr(), Prefix: "m/"}, want: &modelcache.RedisCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, closeCache, err := OpenCache(ctx, &config.Config{Cache: tt.cache})
			require.NoError(t, err)
			defer closeCache()

			assert.IsType(t, tt.want, cache)
			require.NoError(t, cache.Put(ctx, "k", []byte("v")))
			got, err := cache.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)
		})
	}
}
