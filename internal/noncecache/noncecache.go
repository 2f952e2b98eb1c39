// Package noncecache implements the nonce cache (C2): the next-usable
// transaction ordinal per wallet key on account-nonce chains, fused with
// the chain's live pending view and reset when the cache goes stale.
package noncecache

import (
	"context"
	"sync"
	"time"

	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/pkg/metrics"
)

// PendingNonceFetcher is the subset of the chain RPC adapter C2 depends on.
type PendingNonceFetcher interface {
	PendingNonceAt(ctx context.Context, scope, address string) (uint64, error)
}

// Tunables bounds the staleness guard. Zero values are replaced with the
// spec defaults by New.
type Tunables struct {
	MaxNonceGap uint64
	MaxCacheAge time.Duration
}

func (t Tunables) withDefaults() Tunables {
	if t.MaxNonceGap == 0 {
		t.MaxNonceGap = 5
	}
	if t.MaxCacheAge == 0 {
		t.MaxCacheAge = 120 * time.Second
	}
	return t
}

type entry struct {
	nextNonce uint64
	updatedAt time.Time
}

// Cache is the process-wide nonce cache, one entry per wallet key.
type Cache struct {
	mu      sync.Mutex
	entries map[model.WalletKey]*entry
	tun     Tunables
}

func New(tun Tunables) *Cache {
	return &Cache{
		entries: make(map[model.WalletKey]*entry),
		tun:     tun.withDefaults(),
	}
}

// NextNonce returns the next safe nonce for (scope, address). Callers MUST
// hold the wallet's C1 lock for the duration of this call.
func (c *Cache) NextNonce(ctx context.Context, rpc PendingNonceFetcher, scope, address string) (uint64, error) {
	key := model.NewWalletKey(scope, address)

	pending, err := rpc.PendingNonceAt(ctx, scope, address)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &entry{nextNonce: pending + 1, updatedAt: now}
		return pending, nil
	}

	stale := now.Sub(e.updatedAt) >= c.tun.MaxCacheAge
	gapped := e.nextNonce > pending && (e.nextNonce-pending) >= c.tun.MaxNonceGap
	if stale || gapped {
		metrics.NonceResetsTotal.WithLabelValues(key.Scope).Inc()
		e.nextNonce = pending + 1
		e.updatedAt = now
		return pending, nil
	}

	if pending > e.nextNonce {
		// N3: pending dominance.
		e.nextNonce = pending + 1
		e.updatedAt = now
		return pending, nil
	}

	// N1/N2: ordinary monotonic hand-out.
	next := e.nextNonce
	e.nextNonce = next + 1
	e.updatedAt = now
	return next, nil
}

// Invalidate drops the cache entry unconditionally.
func (c *Cache) Invalidate(scope, address string) {
	key := model.NewWalletKey(scope, address)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Rollback implements walletlock.NonceRollback. Per N5, it only takes
// effect if nothing newer has been handed out since.
func (c *Cache) Rollback(scope, address string, nonce uint64) {
	key := model.NewWalletKey(scope, address)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.nextNonce != nonce+1 {
		return
	}
	e.nextNonce = nonce
}

// Peek is a test/diagnostic hook returning the raw cached next-nonce value.
func (c *Cache) Peek(scope, address string) (uint64, bool) {
	key := model.NewWalletKey(scope, address)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	return e.nextNonce, true
}

// Seed forcibly sets the cached next-nonce value, used by operators and by
// tests that need to exercise the stale-reset path deterministically.
func (c *Cache) Seed(scope, address string, nextNonce uint64) {
	key := model.NewWalletKey(scope, address)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{nextNonce: nextNonce, updatedAt: time.Now()}
}
