package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWhitelistStore struct {
	calls   int
	domains []string
}

func (c *countingWhitelistStore) ListWhitelist(_ context.Context) ([]string, error) {
	c.calls++
	return c.domains, nil
}

func TestWhitelistCache_RefreshesOnceWithinTTL(t *testing.T) {
	t.Parallel()
	store := &countingWhitelistStore{domains: []string{"good.com"}}
	cache := NewWhitelistCache(store, time.Minute)

	ok, err := cache.Contains(context.Background(), "good.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = cache.Contains(context.Background(), "good.com")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
}

func TestWhitelistCache_RefreshesAfterTTL(t *testing.T) {
	t.Parallel()
	store := &countingWhitelistStore{domains: []string{"good.com"}}
	cache := NewWhitelistCache(store, time.Millisecond)

	_, err := cache.Contains(context.Background(), "good.com")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = cache.Contains(context.Background(), "good.com")
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls)
}

func TestWhitelistCache_InvalidateForcesRefresh(t *testing.T) {
	t.Parallel()
	store := &countingWhitelistStore{domains: []string{}}
	cache := NewWhitelistCache(store, time.Hour)

	ok, err := cache.Contains(context.Background(), "new.com")
	require.NoError(t, err)
	assert.False(t, ok)

	store.domains = []string{"new.com"}
	cache.Invalidate()

	ok, err = cache.Contains(context.Background(), "new.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.calls)
}
