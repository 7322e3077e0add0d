package modelcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterModel struct {
	Value float64
}

type counterCodec struct{ kind string }

func (c counterCodec) Kind() string {
	if c.kind == "" {
		return "counter"
	}
	return c.kind
}

func (counterCodec) Version() int { return 1 }

func (counterCodec) Encode(m *counterModel) (map[string]any, error) {
	return map[string]any{"value": m.Value}, nil
}

func (counterCodec) Decode(payload map[string]any) (*counterModel, error) {
	v, err := PayloadFloat(payload, "value")
	if err != nil {
		return nil, err
	}
	return &counterModel{Value: v}, nil
}

// countingTrainer returns a TrainFunc that records how often it ran.
func countingTrainer(calls *atomic.Int32, value float64, delay time.Duration) TrainFunc[*counterModel] {
	return func(ctx context.Context) (*counterModel, error) {
		calls.Add(1)
		time.Sleep(delay)
		return &counterModel{Value: value}, nil
	}
}

func TestLoader_TrainsOnMissThenHits(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	loader := NewLoader[*counterModel](cache, counterCodec{}, LoaderConfig{})

	var calls atomic.Int32
	m, err := loader.Get(ctx, "k", countingTrainer(&calls, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, 7.0, m.Value)

	m, err = loader.Get(ctx, "k", countingTrainer(&calls, 99, 0))
	require.NoError(t, err)
	assert.Equal(t, 7.0, m.Value)
	assert.Equal(t, int32(1), calls.Load())

	_, err = cache.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestLoader_SingleFlight(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{})

	var calls atomic.Int32
	train := countingTrainer(&calls, 3, 50*time.Millisecond)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := loader.Get(ctx, "user", train)
			if err == nil && m.Value != 3 {
				err = errors.New("unexpected model")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_RetrainsOnBadArtifacts(t *testing.T) {
	ctx := context.Background()

	otherKind, err := EncodeEnvelope(Envelope{
		Kind: "other", Version: 1, CreatedAt: time.Now(), Payload: map[string]any{"value": 1.0},
	})
	require.NoError(t, err)
	badPayload, err := EncodeEnvelope(Envelope{
		Kind: "counter", Version: 1, CreatedAt: time.Now(), Payload: map[string]any{"value": "nope"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "corrupt bytes", blob: []byte("definitely not protobuf")},
		{name: "wrong kind", blob: otherKind},
		{name: "undecodable payload", blob: badPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewMemoryCache()
			require.NoError(t, cache.Put(ctx, "k", tt.blob))
			loader := NewLoader[*counterModel](cache, counterCodec{}, LoaderConfig{})

			var calls atomic.Int32
			m, err := loader.Get(ctx, "k", countingTrainer(&calls, 5, 0))
			require.NoError(t, err)
			assert.Equal(t, 5.0, m.Value)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestLoader_MaxAge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{MaxAge: time.Hour})
	loader.now = func() time.Time { return now }

	var calls atomic.Int32
	_, err := loader.Get(ctx, "k", countingTrainer(&calls, 1, 0))
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	_, err = loader.Get(ctx, "k", countingTrainer(&calls, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Hour)
	m, err := loader.Get(ctx, "k", countingTrainer(&calls, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_TrainingTimeout(t *testing.T) {
	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{TrainTimeout: 20 * time.Millisecond})

	block := make(chan struct{})
	defer close(block)
	_, err := loader.Get(context.Background(), "slow", func(ctx context.Context) (*counterModel, error) {
		<-block
		return &counterModel{}, nil
	})
	require.Error(t, err)
	assert.Equal(t, analytics.ErrTrainingTimeout, analytics.CodeOf(err))
	assert.True(t, analytics.IsRetryable(err))
}

func TestLoader_CallerCancelled(t *testing.T) {
	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	_, err := loader.Get(ctx, "k", countingTrainer(&calls, 1, 200*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoader_TrainError(t *testing.T) {
	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{})
	wantErr := analytics.InsufficientDataError(3, 10)

	_, err := loader.Get(context.Background(), "k", func(ctx context.Context) (*counterModel, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestLoader_Invalidate(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader[*counterModel](NewMemoryCache(), counterCodec{}, LoaderConfig{})

	var calls atomic.Int32
	_, err := loader.Get(ctx, "k", countingTrainer(&calls, 1, 0))
	require.NoError(t, err)
	require.NoError(t, loader.Invalidate(ctx, "k"))
	_, err = loader.Get(ctx, "k", countingTrainer(&calls, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
