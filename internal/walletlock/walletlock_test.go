package walletlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireFIFOGrantOrder(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	defer r.Stop()

	var mu sync.Mutex
	var order []int

	release0, err := r.Acquire(context.Background(), "eth", "0xabc")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := r.Acquire(context.Background(), "eth", "0xABC") // case-insensitive, same key
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			rel()
		}()
		time.Sleep(5 * time.Millisecond) // ensure arrival order
	}

	release0()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestScopeIndependence(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	defer r.Stop()

	release1, err := r.Acquire(context.Background(), "eth-mainnet", "0xabc")
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		rel, err := r.Acquire(context.Background(), "eth-sepolia", "0xabc")
		require.NoError(t, err)
		rel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("acquire on a different scope was blocked by an unrelated holder")
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	defer r.Stop()

	release, err := r.Acquire(context.Background(), "eth", "0xabc")
	require.NoError(t, err)
	release()
	release() // must not panic or double-grant

	rel2, err := r.Acquire(context.Background(), "eth", "0xabc")
	require.NoError(t, err)
	rel2()
}

type rollbackRecorder struct {
	mu    sync.Mutex
	calls []uint64
}

func (r *rollbackRecorder) Rollback(scope, address string, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, nonce)
}

func TestLeaseExpiryReclaimsAndRollsBackNonce(t *testing.T) {
	rb := &rollbackRecorder{}
	r := NewRegistry(time.Hour, rb)
	defer r.Stop()

	lockID, _, _, err := r.AcquireLeased(context.Background(), "sol", "wallet1", 42, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	n := r.ReapExpired()
	assert.GreaterOrEqual(t, n, 1)

	for _, ls := range r.Status() {
		assert.NotEqual(t, lockID, ls.LockID)
	}

	rb.mu.Lock()
	assert.Contains(t, rb.calls, uint64(42))
	rb.mu.Unlock()

	// a subsequent acquire_leased for the same key must not block.
	done := make(chan struct{})
	go func() {
		_, _, rel, err := r.AcquireLeased(context.Background(), "sol", "wallet1", 43, time.Hour)
		require.NoError(t, err)
		rel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("acquire_leased after reap should not block")
	}
}

func TestReleaseByIDIdempotent(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	defer r.Stop()

	lockID, _, _, err := r.AcquireLeased(context.Background(), "eth", "0xabc", 1, time.Minute)
	require.NoError(t, err)

	assert.True(t, r.ReleaseByID(lockID))
	assert.False(t, r.ReleaseByID(lockID))
	assert.False(t, r.ReleaseByID("unknown-id"))
}
