package lookup

import (
	"sync"
	"time"
)

type cacheState int

const (
	cacheAbsent cacheState = iota
	cacheFresh
	cacheStale
)

// hostsCache maps service names to discovered host lists. Bounded in
// size; the oldest service (by insertion order) is evicted when a new
// one is added past capacity.
type hostsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]hostsEntry
	order   []string
}

type hostsEntry struct {
	hosts     []string
	expiresAt time.Time
}

func newHostsCache(ttl time.Duration, max int) *hostsCache {
	return &hostsCache{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]hostsEntry),
	}
}

func (c *hostsCache) get(service string, now time.Time) ([]string, cacheState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[service]
	if !ok {
		return nil, cacheAbsent
	}
	hosts := append([]string(nil), e.hosts...)
	if now.After(e.expiresAt) {
		return hosts, cacheStale
	}
	return hosts, cacheFresh
}

func (c *hostsCache) put(service string, hosts []string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[service]; !ok {
		if c.max > 0 && len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, service)
	}
	c.entries[service] = hostsEntry{
		hosts:     append([]string(nil), hosts...),
		expiresAt: now.Add(c.ttl),
	}
}

// txMemoCache memoizes canonical transaction ids keyed by an envelope
// fingerprint. Expired entries are dropped lazily on read.
type txMemoCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]txMemoEntry
}

type txMemoEntry struct {
	txID      string
	expiresAt time.Time
}

func newTxMemoCache(ttl time.Duration) *txMemoCache {
	return &txMemoCache{ttl: ttl, entries: make(map[string]txMemoEntry)}
}

func (c *txMemoCache) get(fingerprint string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return "", false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, fingerprint)
		return "", false
	}
	return e.txID, true
}

func (c *txMemoCache) put(fingerprint string, txID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = txMemoEntry{txID: txID, expiresAt: now.Add(c.ttl)}
}
