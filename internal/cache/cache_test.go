package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

func testCache(t *testing.T) (*Cache, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	return New(store, time.Minute, zap.NewNop(), nil), store
}

func testFilter() storage.QueryFilter {
	return storage.QueryFilter{
		From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	computes := 0
	compute := func(context.Context) (models.AggregatedMetrics, error) {
		computes++
		return models.AggregatedMetrics{TotalSpend: 42}, nil
	}

	key := QueryKey("summary", "t1", testFilter())

	first, err := GetOrCompute(ctx, c, key, c.TTL(), compute)
	require.NoError(t, err)
	second, err := GetOrCompute(ctx, c, key, c.TTL(), compute)
	require.NoError(t, err)

	assert.Equal(t, 1, computes, "second call should hit the cache")
	assert.Equal(t, first, second)
	assert.Equal(t, 42.0, second.TotalSpend)
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c, _ := testCache(t)

	wantErr := errors.New("store down")
	_, err := GetOrCompute(context.Background(), c, "analytics:t1:x", time.Minute,
		func(context.Context) (int, error) { return 0, wantErr })

	assert.ErrorIs(t, err, wantErr)
}

func TestGetOrComputeFailOpenOnBrokenStore(t *testing.T) {
	c := New(brokenStore{}, time.Minute, zap.NewNop(), nil)

	computes := 0
	got, err := GetOrCompute(context.Background(), c, "k", time.Minute,
		func(context.Context) (string, error) {
			computes++
			return "fresh", nil
		})

	require.NoError(t, err, "backend failures must not surface to the caller")
	assert.Equal(t, "fresh", got)
	assert.Equal(t, 1, computes)
}

func TestInvalidateTenantForcesRecompute(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	computes := 0
	compute := func(context.Context) (int, error) {
		computes++
		return computes, nil
	}

	key := QueryKey("summary", "t1", testFilter())

	_, err := GetOrCompute(ctx, c, key, c.TTL(), compute)
	require.NoError(t, err)

	c.InvalidateTenant(ctx, "t1")

	got, err := GetOrCompute(ctx, c, key, c.TTL(), compute)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "invalidation should force a recompute")
}

func TestInvalidateTenantScopedToTenant(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	keyA := QueryKey("summary", "tenant-a", testFilter())
	keyB := QueryKey("summary", "tenant-b", testFilter())

	for _, key := range []string{keyA, keyB} {
		_, err := GetOrCompute(ctx, c, key, c.TTL(),
			func(context.Context) (string, error) { return "v", nil })
		require.NoError(t, err)
	}

	c.InvalidateTenant(ctx, "tenant-a")

	computes := 0
	_, err := GetOrCompute(ctx, c, keyB, c.TTL(),
		func(context.Context) (string, error) {
			computes++
			return "v2", nil
		})
	require.NoError(t, err)
	assert.Equal(t, 0, computes, "other tenants' entries must survive")
}

func TestInvalidateTenantSwallowsBackendFailure(t *testing.T) {
	c := New(brokenStore{}, time.Minute, zap.NewNop(), nil)
	// Must not panic or propagate.
	c.InvalidateTenant(context.Background(), "t1")
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func (brokenStore) DeletePrefix(context.Context, string) (int, error) {
	return 0, errors.New("backend down")
}
