package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"golang.org/x/sync/singleflight"
)

// DefaultTrainTimeout bounds a training run when LoaderConfig leaves it unset.
const DefaultTrainTimeout = 30 * time.Second

// Codec converts a model to and from an envelope payload.
type Codec[T any] interface {
	Kind() string
	Version() int
	Encode(model T) (map[string]any, error)
	Decode(payload map[string]any) (T, error)
}

// TrainFunc builds a model for a key on a cache miss.
type TrainFunc[T any] func(ctx context.Context) (T, error)

// LoaderConfig tunes a Loader.
type LoaderConfig struct {
	// TrainTimeout bounds each training run.
	TrainTimeout time.Duration
	// MaxAge treats artifacts older than this as missing. Zero keeps artifacts
	// until they are invalidated.
	MaxAge time.Duration
	Logger *slog.Logger
}

// Loader reads models through a Cache and trains them on a miss. Concurrent
// misses for the same key share a single training run.
type Loader[T any] struct {
	cache  Cache
	codec  Codec[T]
	cfg    LoaderConfig
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader creates a loader over cache using codec for (de)serialization.
func NewLoader[T any](cache Cache, codec Codec[T], cfg LoaderConfig) *Loader[T] {
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = DefaultTrainTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader[T]{
		cache:  cache,
		codec:  codec,
		cfg:    cfg,
		logger: logger.With("component", "modelcache", "kind", codec.Kind()),
		now:    time.Now,
	}
}

// Get returns the cached model for key, training and storing it with train
// on a miss. The caller's ctx only bounds its own wait; the shared training
// run is bounded by the configured train timeout.
func (l *Loader[T]) Get(ctx context.Context, key string, train TrainFunc[T]) (T, error) {
	var zero T
	if model, ok := l.lookup(ctx, key); ok {
		return model, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.TrainTimeout)
		defer cancel()

		// Another flight may have stored the model since our lookup.
		if model, ok := l.lookup(fctx, key); ok {
			return model, nil
		}
		return l.trainAndStore(fctx, key, train)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate removes the artifact stored under key.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	if err := l.cache.Invalidate(ctx, key); err != nil {
		return err
	}
	l.logger.Info("artifact invalidated", "key", key)
	return nil
}

func (l *Loader[T]) trainAndStore(ctx context.Context, key string, train TrainFunc[T]) (T, error) {
	var zero T
	type result struct {
		model T
		err   error
	}

	start := l.now()
	done := make(chan result, 1)
	go func() {
		model, err := train(ctx)
		done <- result{model: model, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return zero, analytics.TrainingTimeoutError(key, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return zero, analytics.TrainingTimeoutError(key, res.err)
		}
		return zero, res.err
	}
	l.logger.Info("model trained", "key", key, "duration", l.now().Sub(start))

	if err := l.store(ctx, key, res.model); err != nil {
		// The fresh model is still good for this request.
		l.logger.Warn("failed to store artifact", "key", key, "error", err)
	}
	return res.model, nil
}

func (l *Loader[T]) store(ctx context.Context, key string, model T) error {
	payload, err := l.codec.Encode(model)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	blob, err := EncodeEnvelope(Envelope{
		Kind:      l.codec.Kind(),
		Version:   l.codec.Version(),
		CreatedAt: l.now(),
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	return l.cache.Put(ctx, key, blob)
}

// lookup returns a usable cached model. Unreadable, mismatched or expired
// artifacts count as a miss so the caller retrains.
func (l *Loader[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	blob, err := l.cache.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return zero, false
	}
	if err != nil {
		l.logger.Warn("cache read failed, retraining", "key", key, "error", err)
		return zero, false
	}

	env, err := DecodeEnvelope(blob)
	if err != nil {
		l.logger.Warn("corrupt artifact, retraining", "key", key, "error", err)
		return zero, false
	}
	if env.Kind != l.codec.Kind() || env.Version != l.codec.Version() {
		l.logger.Warn("artifact kind mismatch, retraining", "key", key,
			"kind", env.Kind, "version", env.Version)
		return zero, false
	}
	if l.cfg.MaxAge > 0 && l.now().Sub(env.CreatedAt) > l.cfg.MaxAge {
		l.logger.Info("artifact expired, retraining", "key", key, "created_at", env.CreatedAt)
		return zero, false
	}

	model, err := l.codec.Decode(env.Payload)
	if err != nil {
		l.logger.Warn("undecodable artifact, retraining", "key", key, "error", err)
		return zero, false
	}
	return model, true
}
