package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dexgate/gateway/internal/confirm"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
)

// maxUint256 bounds the buffer amount below; approvals never exceed it.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// approveBufferMultiplier over-approves beyond the immediately required
// amount so a second swap against the same spender doesn't re-trigger the
// sub-state-machine (§4.4.2).
const approveBufferMultiplier = 10

// approve runs the §4.4.2 sub-state-machine: it reuses the swap's held
// wallet lock, pulls its own nonce, signs, submits, and waits out a short
// confirmation budget before returning control to the caller's swap flow.
// A failure before submission, or a submit error, rolls its own nonce back
// (a nonce-stale submit error invalidates the cache instead); once
// submitted the nonce is spent, so a confirmation failure rolls nothing
// back. The caller's outer defer only concerns the swap's own nonce.
func (o *Orchestrator) approve(ctx context.Context, binding *ChainBinding, scope, owner, token, spender string, required *big.Int) *apperrors.AppError {
	amount := new(big.Int).Mul(required, big.NewInt(approveBufferMultiplier))
	if amount.Cmp(maxUint256) > 0 {
		amount = maxUint256
	}

	nonce, err := o.nonces.NextNonce(ctx, binding.RPC, scope, owner)
	if err != nil {
		return apperrors.New(apperrors.ErrInternal, "failed to resolve nonce for approve", err)
	}
	rollback := func() { o.nonces.Rollback(scope, owner, nonce) }

	gas, err := o.resolveGas(ctx, binding, "approve")
	if err != nil {
		rollback()
		return apperrors.New(apperrors.ErrInternal, "failed to resolve gas price for approve", err)
	}

	tx, err := binding.Builder.BuildApproveTx(ctx, owner, token, spender, amount, nonce, gas)
	if err != nil {
		rollback()
		return o.classifier.Classify(err.Error())
	}

	signed, err := binding.Signer.Sign(ctx, scope, tx)
	if err != nil {
		rollback()
		return o.classifier.Classify(err.Error())
	}

	if err := binding.RPC.Simulate(ctx, scope, tx); err != nil {
		rollback()
		return o.classifier.Classify(err.Error())
	}

	handle, err := binding.RPC.SubmitRaw(ctx, scope, signed)
	if err != nil {
		appErr := o.classifier.Classify(err.Error())
		if appErr.Type == apperrors.ErrNonceStale {
			o.nonces.Invalidate(scope, owner)
		} else {
			rollback()
		}
		return appErr
	}

	// Submitted: this nonce is spent regardless of confirmation outcome,
	// so no rollback past this point.
	approveEngine := confirm.New(o.pollInterval, o.approveTimeout)
	outcome := approveEngine.Confirm(ctx, binding.RPC, scope, handle, confirm.Expectation{})
	switch outcome.Status {
	case model.StatusConfirmed:
		return nil
	case model.StatusPending:
		return apperrors.New(apperrors.ErrInternal, fmt.Sprintf("approve transaction %s did not confirm within the approval window", handle), nil)
	default:
		return apperrors.New(apperrors.ErrInternal, fmt.Sprintf("approve transaction %s failed on-chain", handle), nil)
	}
}
