// Package bootstrap opens the backing store and model cache selected by config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/retry"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// CloseFunc releases a backing client.
type CloseFunc func() error

func noop() error { return nil }

func googleOptions(c *config.Config) []option.ClientOption {
	if c.Store.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.Store.CredentialsFile)}
}

// OpenStore connects to the configured expense store. Postgres connections
// are retried while the database starts up.
func OpenStore(ctx context.Context, c *config.Config) (store.Store, CloseFunc, error) {
	switch c.Store.Backend {
	case "firestore":
		client, err := firestore.NewClient(ctx, c.Store.GCPProject, googleOptions(c)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		slog.Info("using Firestore store", "project", c.Store.GCPProject)
		return store.NewFirestoreStore(client), client.Close, nil

	case "postgres":
		pg, err := retry.Do(ctx, retry.DefaultStartupConfig, func(ctx context.Context) (*store.PostgresStore, error) {
			return store.OpenPostgres(ctx, c.Store.PostgresDSN)
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using Postgres store")
		return pg, pg.Close, nil

	default:
		slog.Info("using in-memory store")
		return store.NewMemoryStore(), noop, nil
	}
}

// OpenCache connects to the configured model cache.
func OpenCache(ctx context.Context, c *config.Config) (modelcache.Cache, CloseFunc, error) {
	switch c.Cache.Backend {
	case "file":
		fc, err := modelcache.NewFileCache(c.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using file model cache", "dir", c.Cache.Dir)
		return fc, noop, nil

	case "gcs":
		client, err := gcsstorage.NewClient(ctx, googleOptions(c)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		slog.Info("using GCS model cache", "bucket", c.Cache.Bucket, "prefix", c.Cache.Prefix)
		return modelcache.NewGCSCache(client.Bucket(c.Cache.Bucket), c.Cache.Prefix), client.Close, nil

	case "redis":
		client, err := retry.Do(ctx, retry.DefaultStartupConfig, func(ctx context.Context) (*redis.Client, error) {
			return modelcache.ConnectRedis(ctx, c.Cache.RedisURL)
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using Redis model cache", "prefix", c.Cache.Prefix)
		return modelcache.NewRedisCache(client, c.Cache.Prefix), client.Close, nil

	default:
		slog.Info("using in-memory model cache")
		return modelcache.NewMemoryCache(), noop, nil
	}
}
