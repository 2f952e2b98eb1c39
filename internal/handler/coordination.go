package handler

import (
	"net/http"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/noncecache"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/dexgate/gateway/internal/walletlock"
	"github.com/gin-gonic/gin"
)

// CoordinationHandler serves §6.1's external coordination API (C6): letting
// a cooperating external process borrow a wallet lock and a nonce without
// going through the orchestrator's own execute path.
type CoordinationHandler struct {
	locks            *walletlock.Registry
	nonces           *noncecache.Cache
	rpcByScope       map[string]chainrpc.RPCAdapter
	defaultLeaseTTL  time.Duration
	maxLeaseTTL      time.Duration
}

func NewCoordinationHandler(locks *walletlock.Registry, nonces *noncecache.Cache, rpcByScope map[string]chainrpc.RPCAdapter, defaultLeaseTTL, maxLeaseTTL time.Duration) *CoordinationHandler {
	return &CoordinationHandler{
		locks:           locks,
		nonces:          nonces,
		rpcByScope:      rpcByScope,
		defaultLeaseTTL: defaultLeaseTTL,
		maxLeaseTTL:     maxLeaseTTL,
	}
}

func (h *CoordinationHandler) Acquire(c *gin.Context) {
	var req model.NonceAcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	rpc, ok := h.rpcByScope[req.Network]
	if !ok {
		c.Error(apperrors.NewValidation("unknown network: " + req.Network))
		return
	}

	ttl := h.defaultLeaseTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}
	if h.maxLeaseTTL > 0 && ttl > h.maxLeaseTTL {
		ttl = h.maxLeaseTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	ctx := c.Request.Context()
	lockID, expiresAt, release, err := h.locks.AcquireLeased(ctx, req.Network, req.WalletAddress, 0, ttl)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "failed to acquire wallet lock", err))
		return
	}

	nonce, err := h.nonces.NextNonce(ctx, rpc, req.Network, req.WalletAddress)
	if err != nil {
		release()
		c.Error(apperrors.New(apperrors.ErrInternal, "failed to resolve nonce", err))
		return
	}
	h.locks.UpdateLeaseNonce(lockID, nonce)

	c.JSON(http.StatusOK, model.NonceAcquireResponse{
		LockID:    lockID,
		Nonce:     nonce,
		ExpiresAt: expiresAt.UnixMilli(),
	})
}

func (h *CoordinationHandler) Release(c *gin.Context) {
	var req model.NonceReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	if !req.TransactionSent {
		if key, nonce, ok := h.locks.LeaseNonce(req.LockID); ok {
			h.nonces.Rollback(key.Scope, key.Address, nonce)
		}
	}

	released := h.locks.ReleaseByID(req.LockID)
	resp := model.NonceReleaseResponse{Success: released}
	if !released {
		resp.Message = "lock not found; already released or expired"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CoordinationHandler) Invalidate(c *gin.Context) {
	var req model.NonceInvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	h.nonces.Invalidate(req.Network, req.WalletAddress)
	c.JSON(http.StatusOK, model.NonceInvalidateResponse{Success: true})
}

func (h *CoordinationHandler) Status(c *gin.Context) {
	snapshots := h.locks.Status()
	c.JSON(http.StatusOK, model.NonceStatusResponse{
		ActiveLocks: len(snapshots),
		Locks:       snapshots,
	})
}
