// Package chainrpc defines the external collaborator contracts the
// orchestrator consumes (§6.3): a chain RPC adapter, a signer, and a DEX
// route builder, plus a concrete ethclient-backed adapter and software
// signer for the account-nonce transaction family.
package chainrpc

import (
	"context"
	"math/big"

	"github.com/dexgate/gateway/internal/model"
)

// UnsignedTx is the family-agnostic shape of a not-yet-signed transaction.
// Account-nonce chains populate Nonce/GasFeeCap/GasTipCap/ChainID;
// signature-hash chains leave them zero and rely on RecentBlockHash.
type UnsignedTx struct {
	To              string
	Data            []byte
	Value           *big.Int
	Nonce           uint64
	GasLimit        uint64
	GasFeeCap       *big.Int
	GasTipCap       *big.Int
	ChainID         *big.Int
	RecentBlockHash string
}

// GasParams carries the resolved gas policy (§6.4) for one transaction.
type GasParams struct {
	FeeCap   *big.Int
	TipCap   *big.Int
	GasLimit uint64
}

// PollResult is one poll cycle's observation of a submitted transaction.
type PollResult struct {
	Status      int // model.StatusPending/Confirmed/Failed
	Fee         string
	BlockHeight uint64
	InAmount    string
	OutAmount   string
}

// RPCAdapter is the Chain RPC Adapter contract of §6.3.
type RPCAdapter interface {
	PendingNonceAt(ctx context.Context, scope, address string) (uint64, error)
	BalanceOf(ctx context.Context, scope, owner, token string) (*big.Int, error)
	AllowanceOf(ctx context.Context, scope, owner, token, spender string) (*big.Int, error)
	SubmitRaw(ctx context.Context, scope string, signed []byte) (handle string, err error)
	Poll(ctx context.Context, scope, handle string) (PollResult, error)
	Simulate(ctx context.Context, scope string, tx UnsignedTx) error
	EstimateGasPrice(ctx context.Context, scope string) (baseFee, priority *big.Int, err error)
}

// Signer is the Signer contract of §6.3. Software signers return quickly;
// hardware signers may block for tens of seconds and fail with
// device-specific strings recognized by the classifier.
type Signer interface {
	Address() string
	Sign(ctx context.Context, scope string, tx UnsignedTx) (signedBytes []byte, err error)
	// IsHardware reports whether this signer may block for tens of seconds
	// awaiting user confirmation, and is subject to the no-auto-approve
	// policy of §4.4 step 4.
	IsHardware() bool
}

// RouteBuilder is the DEX Route Builder contract of §6.3. Per-DEX/per-pool
// route encoding is out of the core's scope (spec.md §1); production
// deployments plug in a concrete builder per connector.
type RouteBuilder interface {
	ComputeRoute(ctx context.Context, req model.SwapRequest) (model.QuoteResult, error)
	BuildSwapTx(ctx context.Context, route model.QuoteResult, req model.SwapRequest, nonce uint64, gas GasParams) (UnsignedTx, error)
	BuildApproveTx(ctx context.Context, owner, token, spender string, amount *big.Int, nonce uint64, gas GasParams) (UnsignedTx, error)
	RequiredAllowance(ctx context.Context, route model.QuoteResult) (token, spender string, amount *big.Int, err error)
}
