package policy

import (
	"context"
	"sync"
	"time"
)

// DefaultWhitelistTTL bounds how long a cached whitelist snapshot is
// trusted before the next lookup pays to refresh it. Checking every
// request against the store directly would put a DB round trip on the
// hot path; this keeps staleness bounded instead.
const DefaultWhitelistTTL = 5 * time.Second

// WhitelistStore is the persistence surface WhitelistCache refreshes
// from.
type WhitelistStore interface {
	ListWhitelist(ctx context.Context) ([]string, error)
}

// WhitelistCache serves whitelist membership checks from an in-memory
// snapshot, refreshed lazily whenever it goes stale.
type WhitelistCache struct {
	store WhitelistStore
	ttl   time.Duration

	mu       sync.RWMutex
	snapshot map[string]struct{}
	loadedAt time.Time
}

// NewWhitelistCache creates a cache backed by store, refreshing at most
// once per ttl (DefaultWhitelistTTL if ttl <= 0).
func NewWhitelistCache(store WhitelistStore, ttl time.Duration) *WhitelistCache {
	if ttl <= 0 {
		ttl = DefaultWhitelistTTL
	}
	return &WhitelistCache{
		store:    store,
		ttl:      ttl,
		snapshot: make(map[string]struct{}),
	}
}

// Contains reports whether host is present in the whitelist snapshot,
// refreshing it first if it has gone stale.
func (w *WhitelistCache) Contains(ctx context.Context, host string) (bool, error) {
	if err := w.refreshIfStale(ctx); err != nil {
		return false, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.snapshot[host]
	return ok, nil
}

// Invalidate forces the next Contains call to refresh from the store,
// regardless of ttl. The proxy itself never calls it: an entry added by
// the `whitelist` subcommand becomes visible once the current snapshot's
// ttl has elapsed.
func (w *WhitelistCache) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadedAt = time.Time{}
}

func (w *WhitelistCache) refreshIfStale(ctx context.Context) error {
	w.mu.RLock()
	stale := time.Since(w.loadedAt) >= w.ttl
	w.mu.RUnlock()
	if !stale {
		return nil
	}

	domains, err := w.store.ListWhitelist(ctx)
	if err != nil {
		return err
	}

	snapshot := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		snapshot[d] = struct{}{}
	}

	w.mu.Lock()
	w.snapshot = snapshot
	w.loadedAt = time.Now()
	w.mu.Unlock()
	return nil
}
