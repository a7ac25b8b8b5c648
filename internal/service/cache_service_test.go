package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) DeleteByPattern(context.Context, string) error {
	return errors.New("connection refused")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memoryCache{}
	cache := NewCacheService(store, NewMetricsService(), 0, nil, true)
	require.True(t, cache.Enabled())

	var got map[string]int
	assert.False(t, cache.Get(ctx, "dashboard:admin", &got))

	cache.Set(ctx, "dashboard:admin", map[string]int{"students": 12}, 0)
	cache.Set(ctx, "dashboard:teacher:t1", map[string]int{"courses": 2}, time.Second)
	require.True(t, cache.Get(ctx, "dashboard:admin", &got))
	assert.Equal(t, 12, got["students"])

	cache.Invalidate(ctx, "dashboard:*")
	assert.Empty(t, store)
}

func TestCacheServiceDisabled(t *testing.T) {
	ctx := context.Background()
	store := memoryCache{}

	off := NewCacheService(store, nil, time.Minute, nil, false)
	assert.False(t, off.Enabled())
	off.Set(ctx, "k", 1, 0)
	assert.Empty(t, store)

	assert.False(t, NewCacheService(nil, nil, time.Minute, nil, true).Enabled())

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.Invalidate(ctx, "dashboard:*")
}

func TestCacheServiceSwallowsStoreErrors(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(brokenCache{}, nil, time.Minute, nil, true)

	var dest map[string]int
	assert.False(t, cache.Get(ctx, "k", &dest))
	cache.Set(ctx, "k", 1, 0)
	cache.Invalidate(ctx, "k*")
}
