// Package cache keeps consolidated scan results keyed by exact repository
// state. Because the key embeds the resolved commit SHA, a hit is equivalent
// to a fresh scan of that exact tree.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/repo-health-scanner/pkg/orchestrator"
)

const (
	DefaultTTL        = 12 * time.Hour
	DefaultMaxEntries = 1000
)

// ResultCache is a process-wide, concurrency-safe store with a fixed TTL
// from insertion and an LRU capacity bound. Expired entries read as misses.
type ResultCache struct {
	lru *expirable.LRU[string, *orchestrator.Result]
}

func New(ttl time.Duration, maxEntries int) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, *orchestrator.Result](maxEntries, nil, ttl),
	}
}

// key derives the deterministic one-way digest of the exact repository
// state. Changing any component yields a different key.
func key(owner, name, ref, commitSHA string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s@%s#%s", owner, name, ref, commitSHA)))
	return hex.EncodeToString(sum[:])
}

func (c *ResultCache) Get(owner, name, ref, commitSHA string) (*orchestrator.Result, bool) {
	return c.lru.Get(key(owner, name, ref, commitSHA))
}

func (c *ResultCache) Set(owner, name, ref, commitSHA string, result *orchestrator.Result) {
	c.lru.Add(key(owner, name, ref, commitSHA), result)
}

func (c *ResultCache) Invalidate(owner, name, ref, commitSHA string) {
	c.lru.Remove(key(owner, name, ref, commitSHA))
}

func (c *ResultCache) Clear() {
	c.lru.Purge()
}

func (c *ResultCache) Len() int {
	return c.lru.Len()
}
