package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Store:      config.StoreConfig{Backend: "memory"},
		Cache:      config.CacheConfig{Backend: "memory", Prefix: "models/"},
		Pipeline:   config.PipelineConfig{MinRecords: 10},
		Anomaly:    config.AnomalyConfig{Trees: 50, MaxSamples: 256, Contamination: 0.1, Seed: 42},
		Forecast:   config.ForecastConfig{TrainingTimeout: 5 * time.Second},
		Budget:     config.BudgetConfig{Timezone: "UTC", MinRecords: 1},
		Classifier: config.ClassifierConfig{Strategy: "keywords"},
	}
}

func TestNewApp_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(), slog.Default())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.MemoryStore{}, a.store)
	assert.IsType(t, &modelcache.MemoryCache{}, a.cache)

	status, err := a.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)

	category, err := a.svc.Classify(ctx, "wifi recharge")
	require.NoError(t, err)
	assert.Equal(t, "Internet", category)
}

func TestNewApp_FileCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "file"
	cfg.Cache.Dir = t.TempDir()

	a, err := newApp(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &modelcache.FileCache{}, a.cache)
}

func TestNewApp_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, slog.Default())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &modelcache.RedisCache{}, a.cache)

	require.NoError(t, a.cache.Put(ctx, modelcache.ClassifierKey, []byte("blob")))
	assert.True(t, mr.Exists("models/"+modelcache.ClassifierKey))
}
