// Package orchestrator implements the transaction orchestrator (C4): the
// swap state machine of spec.md §4.4 with its inline approve step (there
// is no wrap operation), composed generically
// over the account-nonce and signature-hash transaction families via the
// chainrpc.RPCAdapter/Signer/RouteBuilder capability set.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/confirm"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/noncecache"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/dexgate/gateway/internal/pkg/metrics"
	"github.com/dexgate/gateway/internal/quotecache"
	"github.com/dexgate/gateway/internal/walletlock"
	"github.com/shopspring/decimal"
)

// ChainBinding wires one scope's external collaborators into the
// orchestrator: its RPC adapter, route builder, signer, and gas/compute
// policy.
type ChainBinding struct {
	Scope            string
	Family           model.ChainFamily
	RPC              chainrpc.RPCAdapter
	Builder          chainrpc.RouteBuilder
	Signer           chainrpc.Signer
	GasMaxWei        *big.Int
	GasMultiplierPct int
	ComputeUnits     map[string]uint64 // "amm" | "clmm" | "universal" | "approve"
	AllowAutoApprove bool
}

func (b *ChainBinding) computeUnits(poolType string) uint64 {
	if b.ComputeUnits != nil {
		if v, ok := b.ComputeUnits[poolType]; ok && v > 0 {
			return v
		}
	}
	switch poolType {
	case "clmm":
		return 600_000
	case "approve":
		return 100_000
	case "universal":
		return 500_000
	default:
		return 300_000
	}
}

type Orchestrator struct {
	locks      *walletlock.Registry
	nonces     *noncecache.Cache
	quotes     *quotecache.Cache
	classifier *Classifier
	confirm    *confirm.Engine

	pollInterval   time.Duration
	approveTimeout time.Duration

	bindings map[string]*ChainBinding
}

func New(locks *walletlock.Registry, nonces *noncecache.Cache, quotes *quotecache.Cache, classifier *Classifier, confirmEngine *confirm.Engine, pollInterval, approveTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		locks:          locks,
		nonces:         nonces,
		quotes:         quotes,
		classifier:     classifier,
		confirm:        confirmEngine,
		pollInterval:   pollInterval,
		approveTimeout: approveTimeout,
		bindings:       make(map[string]*ChainBinding),
	}
}

func (o *Orchestrator) RegisterChain(b *ChainBinding) {
	o.bindings[b.Scope] = b
}

func (o *Orchestrator) binding(scope string) (*ChainBinding, *apperrors.AppError) {
	b, ok := o.bindings[scope]
	if !ok {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown network: %s", scope))
	}
	return b, nil
}

// QuoteSwap computes a fresh route and caches it under a new quote id (C3).
func (o *Orchestrator) QuoteSwap(ctx context.Context, req model.QuoteSwapRequest) (model.QuoteResult, string, *apperrors.AppError) {
	if !model.Side(req.Side).Valid() {
		return model.QuoteResult{}, "", apperrors.NewValidation("side must be BUY or SELL")
	}
	binding, appErr := o.binding(req.Network)
	if appErr != nil {
		return model.QuoteResult{}, "", appErr
	}

	swapReq := model.SwapRequest{
		Network:       req.Network,
		WalletAddress: req.WalletAddress,
		BaseToken:     req.BaseToken,
		QuoteToken:    req.QuoteToken,
		Amount:        req.Amount,
		Side:          req.Side,
		PoolAddress:   req.PoolAddress,
		SlippagePct:   req.SlippagePct,
	}

	route, err := binding.Builder.ComputeRoute(ctx, swapReq)
	if err != nil {
		return model.QuoteResult{}, "", o.classifier.Classify(err.Error())
	}
	quoteID := o.quotes.Put(swapReq, route)
	return route, quoteID, nil
}

// ExecuteSwap runs the full state machine against a freshly computed route.
func (o *Orchestrator) ExecuteSwap(ctx context.Context, req model.SwapRequest) (*model.SwapExecuteResponse, *apperrors.AppError) {
	return o.execute(ctx, req, "", nil)
}

// ExecuteQuote runs the state machine against a C3 entry (Q1/Q2/Q3).
func (o *Orchestrator) ExecuteQuote(ctx context.Context, req model.ExecuteQuoteRequest) (*model.SwapExecuteResponse, *apperrors.AppError) {
	entry, ok := o.quotes.Get(req.QuoteID)
	if !ok {
		return nil, apperrors.NewNotFound("quote not found or expired")
	}
	swapReq := entry.OriginalRequest
	swapReq.WalletAddress = req.WalletAddress
	swapReq.Network = req.Network
	route := entry.Route
	return o.execute(ctx, swapReq, req.QuoteID, &route)
}

func (o *Orchestrator) execute(ctx context.Context, req model.SwapRequest, quoteID string, precomputed *model.QuoteResult) (*model.SwapExecuteResponse, *apperrors.AppError) {
	// 1. Start: validate.
	if !model.Side(req.Side).Valid() {
		return nil, apperrors.NewValidation("side must be BUY or SELL")
	}
	amt, err := decimal.NewFromString(req.Amount)
	if err != nil || amt.Sign() <= 0 {
		return nil, apperrors.NewValidation("amount must be a positive number")
	}
	binding, appErr := o.binding(req.Network)
	if appErr != nil {
		return nil, appErr
	}

	// 2. Acquire.
	release, err := o.locks.Acquire(ctx, req.Network, req.WalletAddress)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "could not acquire wallet lock", err)
	}
	var (
		submitted     bool
		hasNonce      bool
		nonceSnapshot uint64
	)
	defer func() {
		if hasNonce && !submitted {
			o.nonces.Rollback(req.Network, req.WalletAddress, nonceSnapshot)
		}
		release()
	}()

	// 3. Quote/prepare.
	var route model.QuoteResult
	if precomputed != nil {
		route = *precomputed
	} else {
		route, err = binding.Builder.ComputeRoute(ctx, req)
		if err != nil {
			return nil, o.classifier.Classify(err.Error())
		}
	}

	// 4. Allowance check (account-nonce family only).
	if binding.Family == model.FamilyAccountNonce {
		token, spender, required, rerr := binding.Builder.RequiredAllowance(ctx, route)
		if rerr != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to resolve required allowance", rerr)
		}
		if required != nil && required.Sign() > 0 {
			allowance, aerr := binding.RPC.AllowanceOf(ctx, req.Network, req.WalletAddress, token, spender)
			if aerr != nil {
				return nil, apperrors.New(apperrors.ErrInternal, "failed to read allowance", aerr)
			}
			if allowance.Cmp(required) < 0 {
				if binding.Signer.IsHardware() && !binding.AllowAutoApprove {
					return nil, apperrors.NewAllowanceRequired(
						fmt.Sprintf("allowance required: spender %s must be approved for token %s", spender, token))
				}
				if aerr := o.approve(ctx, binding, req.Network, req.WalletAddress, token, spender, required); aerr != nil {
					return nil, aerr
				}
			}
		}
	}

	// 5. Balance check.
	required := requiredInputAmount(route, model.Side(req.Side))
	if required != nil {
		bal, berr := binding.RPC.BalanceOf(ctx, req.Network, req.WalletAddress, route.TokenIn)
		if berr != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to read balance", berr)
		}
		if bal.Cmp(required) < 0 {
			return nil, apperrors.NewInsufficientFunds(
				fmt.Sprintf("insufficient balance of %s: have %s, need %s", route.TokenIn, bal.String(), required.String()))
		}
	}

	// 6. Build.
	var nonce uint64
	if binding.Family == model.FamilyAccountNonce {
		nonce, err = o.nonces.NextNonce(ctx, binding.RPC, req.Network, req.WalletAddress)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "failed to resolve nonce", err)
		}
		hasNonce = true
		nonceSnapshot = nonce
	}
	gas, gerr := o.resolveGas(ctx, binding, req.PoolType)
	if gerr != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to resolve gas price", gerr)
	}
	tx, berr := binding.Builder.BuildSwapTx(ctx, route, req, nonce, gas)
	if berr != nil {
		return nil, o.classifier.Classify(berr.Error())
	}

	// 7. Sign.
	signed, serr := binding.Signer.Sign(ctx, req.Network, tx)
	if serr != nil {
		return nil, o.classifier.Classify(serr.Error())
	}

	// 8. Pre-submit simulate.
	if serr := binding.RPC.Simulate(ctx, req.Network, tx); serr != nil {
		return nil, o.classifier.Classify(serr.Error())
	}

	// 9. Submit.
	handle, serr := binding.RPC.SubmitRaw(ctx, req.Network, signed)
	if serr != nil {
		appErr := o.classifier.Classify(serr.Error())
		if appErr.Type == apperrors.ErrNonceStale && hasNonce {
			o.nonces.Invalidate(req.Network, req.WalletAddress)
		}
		return nil, appErr
	}
	submitted = true
	metrics.SwapsTotal.WithLabelValues("submitted", req.Side).Inc()

	// 10. Confirm. route.TokenIn/TokenOut flip with side; base/quote here are
	// the request's fixed token legs, not the route's in/out.
	exp := confirm.Expectation{
		Side:       model.Side(req.Side),
		BaseToken:  req.BaseToken,
		QuoteToken: req.QuoteToken,
		AmountIn:   route.AmountIn,
		AmountOut:  route.AmountOut,
	}
	outcome := o.confirm.Confirm(ctx, binding.RPC, req.Network, handle, exp)
	if outcome.Status == model.StatusConfirmed && quoteID != "" {
		o.quotes.Delete(quoteID)
	}

	resp := &model.SwapExecuteResponse{
		Signature: handle,
		Status:    outcome.Status,
		Data: &model.SwapExecuteData{
			TokenIn:                 route.TokenIn,
			TokenOut:                route.TokenOut,
			AmountIn:                route.AmountIn,
			AmountOut:               route.AmountOut,
			Fee:                     outcome.Fee,
			BaseTokenBalanceChange:  outcome.BaseTokenBalanceChange,
			QuoteTokenBalanceChange: outcome.QuoteTokenBalanceChange,
		},
	}

	switch outcome.Status {
	case model.StatusConfirmed:
		metrics.SwapsTotal.WithLabelValues("confirmed", req.Side).Inc()
		return resp, nil
	case model.StatusPending:
		metrics.SwapsTotal.WithLabelValues("pending", req.Side).Inc()
		return resp, nil
	default:
		metrics.SwapsTotal.WithLabelValues("failed", req.Side).Inc()
		return resp, apperrors.New(apperrors.ErrInternal, fmt.Sprintf("transaction %s failed on-chain", handle), nil)
	}
}

// requiredInputAmount derives the spend bound from the swap construction
// contract of §4.4.3: SELL/ExactIn spends exactly AmountIn; BUY/ExactOut
// is bounded by MaxAmountIn.
func requiredInputAmount(route model.QuoteResult, side model.Side) *big.Int {
	raw := route.AmountIn
	if side == model.SideBuy && route.MaxAmountIn != "" {
		raw = route.MaxAmountIn
	}
	if raw == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil
	}
	return v
}

func (o *Orchestrator) resolveGas(ctx context.Context, binding *ChainBinding, poolType string) (chainrpc.GasParams, error) {
	base, priority, err := binding.RPC.EstimateGasPrice(ctx, binding.Scope)
	if err != nil {
		return chainrpc.GasParams{}, err
	}
	feeCap := new(big.Int).Set(base)
	if binding.GasMultiplierPct > 0 {
		feeCap.Mul(feeCap, big.NewInt(int64(100+binding.GasMultiplierPct)))
		feeCap.Div(feeCap, big.NewInt(100))
	}
	if binding.GasMaxWei != nil && binding.GasMaxWei.Sign() > 0 && feeCap.Cmp(binding.GasMaxWei) > 0 {
		feeCap = new(big.Int).Set(binding.GasMaxWei)
	}
	return chainrpc.GasParams{
		FeeCap:   feeCap,
		TipCap:   priority,
		GasLimit: binding.computeUnits(poolType),
	}, nil
}
