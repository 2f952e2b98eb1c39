package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/noncecache"
	"github.com/dexgate/gateway/internal/walletlock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCoordRPC is the minimal chainrpc.RPCAdapter the coordination handler needs:
// only PendingNonceAt is ever called on this path.
type fakeCoordRPC struct {
	pending uint64
}

func (f *fakeCoordRPC) PendingNonceAt(ctx context.Context, scope, address string) (uint64, error) {
	return f.pending, nil
}
func (f *fakeCoordRPC) BalanceOf(ctx context.Context, scope, owner, token string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeCoordRPC) AllowanceOf(ctx context.Context, scope, owner, token, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeCoordRPC) SubmitRaw(ctx context.Context, scope string, signed []byte) (string, error) {
	return "", nil
}
func (f *fakeCoordRPC) Poll(ctx context.Context, scope, handle string) (chainrpc.PollResult, error) {
	return chainrpc.PollResult{}, nil
}
func (f *fakeCoordRPC) Simulate(ctx context.Context, scope string, tx chainrpc.UnsignedTx) error {
	return nil
}
func (f *fakeCoordRPC) EstimateGasPrice(ctx context.Context, scope string) (*big.Int, *big.Int, error) {
	return big.NewInt(0), big.NewInt(0), nil
}

func newTestCoordinationHandler(t *testing.T, pending uint64) (*CoordinationHandler, *walletlock.Registry) {
	t.Helper()
	nonces := noncecache.New(noncecache.Tunables{})
	locks := walletlock.NewRegistry(time.Hour, nonces)
	rpcByScope := map[string]chainrpc.RPCAdapter{"eth": &fakeCoordRPC{pending: pending}}
	return NewCoordinationHandler(locks, nonces, rpcByScope, 30*time.Second, time.Minute), locks
}

func doJSON(t *testing.T, handlerFn gin.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handlerFn(c)
	return w
}

func TestCoordinationAcquireReturnsLockAndNonce(t *testing.T) {
	h, _ := newTestCoordinationHandler(t, 42)

	w := doJSON(t, h.Acquire, http.MethodPost, "/chains/account-nonce/nonce/acquire", model.NonceAcquireRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.NonceAcquireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(42), resp.Nonce)
	assert.NotEmpty(t, resp.LockID)
}

func TestCoordinationAcquireUnknownNetworkIsValidationError(t *testing.T) {
	h, _ := newTestCoordinationHandler(t, 1)

	// The handler records the error on gin.Context rather than writing a
	// response body itself; ErrorHandler middleware does the JSON encoding
	// in production, so assert against c.Errors directly.
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(model.NonceAcquireRequest{Network: "solana", WalletAddress: "0xwallet"}))
	req := httptest.NewRequest(http.MethodPost, "/x", &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Acquire(c)
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.Last().Err.Error(), "unknown network")
}

func TestCoordinationReleaseRollsBackUnsentNonce(t *testing.T) {
	h, locks := newTestCoordinationHandler(t, 5)

	acquireW := doJSON(t, h.Acquire, http.MethodPost, "/acquire", model.NonceAcquireRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
	})
	var acquireResp model.NonceAcquireResponse
	require.NoError(t, json.Unmarshal(acquireW.Body.Bytes(), &acquireResp))

	releaseW := doJSON(t, h.Release, http.MethodPost, "/release", model.NonceReleaseRequest{
		Network:         "eth",
		WalletAddress:   "0xwallet",
		LockID:          acquireResp.LockID,
		TransactionSent: false,
	})
	require.Equal(t, http.StatusOK, releaseW.Code)

	var releaseResp model.NonceReleaseResponse
	require.NoError(t, json.Unmarshal(releaseW.Body.Bytes(), &releaseResp))
	assert.True(t, releaseResp.Success)

	// Rolled back: the next acquire must reissue nonce 5, not 6.
	nextW := doJSON(t, h.Acquire, http.MethodPost, "/acquire", model.NonceAcquireRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
	})
	var nextResp model.NonceAcquireResponse
	require.NoError(t, json.Unmarshal(nextW.Body.Bytes(), &nextResp))
	assert.Equal(t, uint64(5), nextResp.Nonce)

	// Only the second lease is live; the released one is gone.
	status := locks.Status()
	require.Len(t, status, 1)
	assert.Equal(t, nextResp.LockID, status[0].LockID)
}

func TestCoordinationReleaseUnknownLockIDReturnsSuccessFalse(t *testing.T) {
	h, _ := newTestCoordinationHandler(t, 1)

	w := doJSON(t, h.Release, http.MethodPost, "/release", model.NonceReleaseRequest{
		Network:         "eth",
		WalletAddress:   "0xwallet",
		LockID:          "nonexistent",
		TransactionSent: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.NonceReleaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestCoordinationStatusReflectsActiveLocks(t *testing.T) {
	h, _ := newTestCoordinationHandler(t, 1)

	doJSON(t, h.Acquire, http.MethodPost, "/acquire", model.NonceAcquireRequest{Network: "eth", WalletAddress: "0xwallet"})

	w := doJSON(t, h.Status, http.MethodGet, "/status", struct{}{})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.NonceStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ActiveLocks)
}

func TestCoordinationInvalidateSucceeds(t *testing.T) {
	h, _ := newTestCoordinationHandler(t, 1)

	w := doJSON(t, h.Invalidate, http.MethodPost, "/invalidate", model.NonceInvalidateRequest{Network: "eth", WalletAddress: "0xwallet"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.NonceInvalidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}
