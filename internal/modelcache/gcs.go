package modelcache

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcsstorage "cloud.google.com/go/storage"
)

// GCSCache stores artifacts as objects in a Cloud Storage bucket.
type GCSCache struct {
	bucket *gcsstorage.BucketHandle
	prefix string
}

// NewGCSCache stores objects under prefix in bucket.
func NewGCSCache(bucket *gcsstorage.BucketHandle, prefix string) *GCSCache {
	return &GCSCache{bucket: bucket, prefix: prefix}
}

func (c *GCSCache) object(key string) *gcsstorage.ObjectHandle {
	return c.bucket.Object(c.prefix + key)
}

func (c *GCSCache) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := c.object(key).NewReader(ctx)
	if errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", key, err)
	}
	defer reader.Close()

	blob, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return blob, nil
}

func (c *GCSCache) Put(ctx context.Context, key string, blob []byte) error {
	w := c.object(key).NewWriter(ctx)
	w.ContentType = "application/x-protobuf"
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}
	return nil
}

func (c *GCSCache) Invalidate(ctx context.Context, key string) error {
	err := c.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}
