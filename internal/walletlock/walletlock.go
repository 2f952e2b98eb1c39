// Package walletlock implements the per-wallet serialization registry (C1):
// a strictly FIFO mutex keyed by (scope, address), with an externalizable
// leased form for cooperating external processes.
package walletlock

import (
	"context"
	"sync"
	"time"

	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/pkg/logger"
	"github.com/dexgate/gateway/internal/pkg/metrics"
	"github.com/google/uuid"
)

// ReleaseFunc releases a held lock. Calling it more than once is a no-op.
type ReleaseFunc func()

// NonceRollback is the hook C1 calls when a leased lock expires, so the
// nonce handed out at acquisition can be returned per N5. cmd/server passes
// the nonce cache to NewRegistry as this hook.
type NonceRollback interface {
	Rollback(scope, address string, nonce uint64)
}

type waiter struct {
	ch chan struct{}
}

type keyLock struct {
	mu      sync.Mutex
	holding bool
	waitq   []*waiter
}

func (kl *keyLock) acquire(ctx context.Context) (ReleaseFunc, error) {
	kl.mu.Lock()
	if !kl.holding {
		kl.holding = true
		kl.mu.Unlock()
		return kl.makeRelease(), nil
	}
	w := &waiter{ch: make(chan struct{})}
	kl.waitq = append(kl.waitq, w)
	kl.mu.Unlock()

	select {
	case <-w.ch:
		return kl.makeRelease(), nil
	case <-ctx.Done():
		kl.mu.Lock()
		idx := -1
		for i, ww := range kl.waitq {
			if ww == w {
				idx = i
				break
			}
		}
		if idx >= 0 {
			kl.waitq = append(kl.waitq[:idx], kl.waitq[idx+1:]...)
			kl.mu.Unlock()
			return nil, ctx.Err()
		}
		kl.mu.Unlock()
		// Lost the race with a concurrent release: we were already granted
		// the turn. Take it, then hand it straight back to preserve FIFO.
		<-w.ch
		r := kl.makeRelease()
		r()
		return nil, ctx.Err()
	}
}

func (kl *keyLock) makeRelease() ReleaseFunc {
	var once sync.Once
	return func() {
		once.Do(kl.releaseNext)
	}
}

func (kl *keyLock) releaseNext() {
	kl.mu.Lock()
	if len(kl.waitq) > 0 {
		next := kl.waitq[0]
		kl.waitq = kl.waitq[1:]
		kl.mu.Unlock()
		close(next.ch)
		return
	}
	kl.holding = false
	kl.mu.Unlock()
}

type lease struct {
	lockID    string
	key       model.WalletKey
	nonce     uint64
	expiresAt time.Time
	release   ReleaseFunc
}

// Registry owns every key's queue plus the set of currently-leased locks.
type Registry struct {
	mu     sync.Mutex
	keys   map[model.WalletKey]*keyLock
	leases map[string]*lease

	rollback NonceRollback
	interval time.Duration

	cancel context.CancelFunc
}

// NewRegistry constructs the registry and starts its reaper goroutine.
// rollback may be nil if the caller wires it in after construction via
// SetNonceRollback.
func NewRegistry(reapInterval time.Duration, rollback NonceRollback) *Registry {
	if reapInterval <= 0 {
		reapInterval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		keys:     make(map[model.WalletKey]*keyLock),
		leases:   make(map[string]*lease),
		rollback: rollback,
		interval: reapInterval,
		cancel:   cancel,
	}
	go r.reapLoop(ctx)
	return r
}

// SetNonceRollback wires the nonce cache after construction.
func (r *Registry) SetNonceRollback(rb NonceRollback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollback = rb
}

func (r *Registry) keyLockFor(key model.WalletKey) *keyLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	kl, ok := r.keys[key]
	if !ok {
		kl = &keyLock{}
		r.keys[key] = kl
	}
	return kl
}

// Acquire blocks (cooperatively) until prior holders of (scope, address)
// have released, then returns an idempotent release handle.
func (r *Registry) Acquire(ctx context.Context, scope, address string) (ReleaseFunc, error) {
	key := model.NewWalletKey(scope, address)
	start := time.Now()
	kl := r.keyLockFor(key)
	release, err := kl.acquire(ctx)
	metrics.LockWaitSeconds.WithLabelValues(key.Scope).Observe(time.Since(start).Seconds())
	return release, err
}

// AcquireLeased acquires the same underlying queue but additionally records
// an externally-visible lease with a TTL, for use by C6.
func (r *Registry) AcquireLeased(ctx context.Context, scope, address string, nonce uint64, ttl time.Duration) (lockID string, expiresAt time.Time, release ReleaseFunc, err error) {
	key := model.NewWalletKey(scope, address)
	kl := r.keyLockFor(key)
	release, err = kl.acquire(ctx)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	lockID = uuid.New().String()
	expiresAt = time.Now().Add(ttl)
	ls := &lease{
		lockID:    lockID,
		key:       key,
		nonce:     nonce,
		expiresAt: expiresAt,
		release:   release,
	}

	r.mu.Lock()
	r.leases[lockID] = ls
	r.mu.Unlock()

	wrapped := func() {
		r.mu.Lock()
		delete(r.leases, lockID)
		r.mu.Unlock()
		release()
	}
	return lockID, expiresAt, wrapped, nil
}

// ReleaseByID releases a leased lock by its externally-visible id. Returns
// false if no such lease exists (already released, reaped, or unknown).
func (r *Registry) ReleaseByID(lockID string) bool {
	r.mu.Lock()
	ls, ok := r.leases[lockID]
	if ok {
		delete(r.leases, lockID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	ls.release()
	return true
}

// LeaseNonce returns the nonce snapshot recorded for a live lease, used by
// callers that need to roll it back without going through ReleaseByID.
func (r *Registry) LeaseNonce(lockID string) (model.WalletKey, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.leases[lockID]
	if !ok {
		return model.WalletKey{}, 0, false
	}
	return ls.key, ls.nonce, true
}

// UpdateLeaseNonce records the nonce actually handed out for a live lease.
// AcquireLeased is called before the nonce is known (the lock must be held
// first), so callers fetch the nonce afterward and patch it in here; without
// this, a later rollback-on-release would roll back the wrong nonce.
func (r *Registry) UpdateLeaseNonce(lockID string, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ls, ok := r.leases[lockID]; ok {
		ls.nonce = nonce
	}
}

// Status returns a snapshot of every currently-tracked lease.
func (r *Registry) Status() []model.LeaseSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	out := make([]model.LeaseSnapshot, 0, len(r.leases))
	for _, ls := range r.leases {
		out = append(out, model.LeaseSnapshot{
			LockID:    ls.lockID,
			Address:   ls.key.Address,
			Scope:     ls.key.Scope,
			Nonce:     ls.nonce,
			ExpiresAt: ls.expiresAt.UnixMilli(),
			IsExpired: now.After(ls.expiresAt),
		})
	}
	return out
}

// ReapExpired releases every lease past its deadline, rolling back its
// nonce via the registered NonceRollback, and returns how many it reaped.
func (r *Registry) ReapExpired() int {
	now := time.Now()
	var expired []*lease

	r.mu.Lock()
	for id, ls := range r.leases {
		if now.After(ls.expiresAt) {
			expired = append(expired, ls)
			delete(r.leases, id)
		}
	}
	rollback := r.rollback
	r.mu.Unlock()

	for _, ls := range expired {
		if rollback != nil {
			rollback.Rollback(ls.key.Scope, ls.key.Address, ls.nonce)
		}
		ls.release()
		metrics.LeaseExpiriesTotal.WithLabelValues(ls.key.Scope).Inc()
	}
	return len(expired)
}

func (r *Registry) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.ReapExpired(); n > 0 {
				logger.Debug("reaped expired wallet leases", "count", n)
			}
		}
	}
}

// Stop cancels the reaper goroutine. It does not wait for it to exit, so it
// never blocks process shutdown.
func (r *Registry) Stop() {
	r.cancel()
}
