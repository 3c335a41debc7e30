package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCachedEmbedderHitsCacheOnSecondCall(t *testing.T) {
	_, rdb := newTestRedis(t)
	calls := 0
	inner := EmbedderFunc(func(ctx context.Context, image []byte) ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	})
	cached := NewCachedEmbedder(inner, rdb, "clip", time.Hour)

	first, err := cached.Embed(context.Background(), []byte("img-a"))
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), []byte("img-a"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = cached.Embed(context.Background(), []byte("img-b"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedEmbedderKeyIncludesModel(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := EmbedderFunc(func(ctx context.Context, image []byte) ([]float32, error) {
		return []float32{0.5}, nil
	})

	_, err := NewCachedEmbedder(inner, rdb, "model-a", time.Hour).Embed(context.Background(), []byte("x"))
	require.NoError(t, err)
	_, err = NewCachedEmbedder(inner, rdb, "model-b", time.Hour).Embed(context.Background(), []byte("x"))
	require.NoError(t, err)

	assert.Len(t, mr.Keys(), 2)
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "petmatch:embedding:model-")
		assert.Equal(t, time.Hour, mr.TTL(k))
	}
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := EmbedderFunc(func(ctx context.Context, image []byte) ([]float32, error) {
		return nil, ErrDecode
	})

	_, err := NewCachedEmbedder(inner, rdb, "clip", time.Hour).Embed(context.Background(), []byte("bad"))
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedderSurvivesRedisOutage(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	inner := EmbedderFunc(func(ctx context.Context, image []byte) ([]float32, error) {
		return []float32{9}, nil
	})

	vec, err := NewCachedEmbedder(inner, rdb, "clip", time.Hour).Embed(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, vec)
}
