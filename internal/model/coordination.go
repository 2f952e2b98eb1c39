package model

import "time"

// LeaseSnapshot is one row of C6's status() response.
type LeaseSnapshot struct {
	LockID    string `json:"lockId"`
	Address   string `json:"address"`
	Scope     string `json:"scope,omitempty"`
	Nonce     uint64 `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"` // epoch millis
	IsExpired bool   `json:"isExpired"`
}

// NonceAcquireRequest is the body of POST /chains/:family/nonce/acquire.
type NonceAcquireRequest struct {
	Network       string `json:"network" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	TTLMs         int64  `json:"ttlMs,omitempty"`
}

// NonceAcquireResponse is its response.
type NonceAcquireResponse struct {
	LockID    string `json:"lockId"`
	Nonce     uint64 `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
}

// NonceReleaseRequest is the body of POST /chains/:family/nonce/release.
type NonceReleaseRequest struct {
	Network         string `json:"network" binding:"required"`
	WalletAddress   string `json:"walletAddress" binding:"required"`
	LockID          string `json:"lockId" binding:"required"`
	TransactionSent bool   `json:"transactionSent"`
}

// NonceReleaseResponse is its response, always HTTP 200 even on "not found".
type NonceReleaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NonceInvalidateRequest is the body of POST /chains/:family/nonce/invalidate.
type NonceInvalidateRequest struct {
	Network       string `json:"network" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// NonceInvalidateResponse is its response.
type NonceInvalidateResponse struct {
	Success bool `json:"success"`
}

// NonceStatusResponse is the body of GET /chains/:family/nonce/status.
type NonceStatusResponse struct {
	ActiveLocks int             `json:"activeLocks"`
	Locks       []LeaseSnapshot `json:"locks"`
}

// TransactionOutcome is C5's normalized polling result.
type TransactionOutcome struct {
	Status                  int       `json:"status"` // -1 FAILED, 0 PENDING, 1 CONFIRMED
	Handle                  string    `json:"handle"`
	Fee                     string    `json:"fee,omitempty"`
	BaseTokenBalanceChange  string    `json:"baseTokenBalanceChange,omitempty"`
	QuoteTokenBalanceChange string    `json:"quoteTokenBalanceChange,omitempty"`
	ObservedAt              time.Time `json:"observedAt"`
}

const (
	StatusFailed    = -1
	StatusPending   = 0
	StatusConfirmed = 1
)
