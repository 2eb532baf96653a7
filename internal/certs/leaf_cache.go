package certs

import (
	"container/list"
	"crypto/tls"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheCap is the soft cap on the number of leaf certificates kept
// in memory at once, per the system design's bounded leaf cache.
const DefaultCacheCap = 1024

type cachedLeaf struct {
	host     string
	cert     *tls.Certificate
	issuedAt time.Time
}

// LeafCache mints and caches per-host leaf certificates signed by an
// Authority. It is safe for concurrent use; concurrent requests for the
// same host are deduplicated so that at most one signing operation runs
// per host at a time.
type LeafCache struct {
	authority *Authority
	cap       int

	mu      sync.Mutex
	entries map[string]*list.Element // host -> element of order
	order   *list.List               // front = most recently used

	group singleflight.Group
}

// NewLeafCache creates a LeafCache backed by authority, bounded at cap
// entries (DefaultCacheCap if cap <= 0).
func NewLeafCache(authority *Authority, cap int) *LeafCache {
	if cap <= 0 {
		cap = DefaultCacheCap
	}
	return &LeafCache{
		authority: authority,
		cap:       cap,
		entries:   make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Get returns the cached leaf certificate for host, minting and caching
// one if absent or expired. Concurrent calls for the same host block
// behind a single mint.
func (c *LeafCache) Get(host string) (*tls.Certificate, error) {
	if cert, ok := c.lookup(host); ok {
		return cert, nil
	}

	result, err, _ := c.group.Do(host, func() (interface{}, error) {
		if cert, ok := c.lookup(host); ok {
			return cert, nil
		}
		cert, err := c.authority.MintLeaf(host)
		if err != nil {
			return nil, err
		}
		c.insert(host, cert)
		return cert, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*tls.Certificate), nil
}

func (c *LeafCache) lookup(host string) (*tls.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[host]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cachedLeaf)
	if time.Since(entry.issuedAt) >= LeafValidity {
		c.order.Remove(elem)
		delete(c.entries, host)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.cert, true
}

func (c *LeafCache) insert(host string, cert *tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[host]; ok {
		elem.Value = &cachedLeaf{host: host, cert: cert, issuedAt: time.Now()}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cachedLeaf{host: host, cert: cert, issuedAt: time.Now()})
	c.entries[host] = elem

	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedLeaf).host)
	}
}

// Len returns the number of cached leaves, for tests and diagnostics.
func (c *LeafCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
