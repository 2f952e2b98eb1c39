package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
)

// Classifier centralizes the error-by-string-match pattern: nonce/slippage/
// blockhash/device detection lives in one place with a configuration-driven
// substring table instead of scattered strings.Contains calls.
type Classifier struct {
	patterns []config.ErrorPattern
}

func NewClassifier(patterns []config.ErrorPattern) *Classifier {
	if len(patterns) == 0 {
		patterns = config.DefaultErrorPatterns()
	}
	return &Classifier{patterns: patterns}
}

// Classify maps a raw RPC/simulate/submit error string to the stable error
// taxonomy. The raw string (which routinely carries wallet addresses, tx
// hashes, or contract revert data) is matched for classification and kept
// as the error's Cause for logs, but never becomes the client-facing
// message: AppError.Message is always one of a fixed set of templates, so a
// caller never sees an identifier echoed back out of an RPC error. Unmatched
// errors classify as Internal.
func (c *Classifier) Classify(raw string) *apperrors.AppError {
	lower := strings.ToLower(raw)
	for _, p := range c.patterns {
		if strings.Contains(lower, strings.ToLower(p.Substring)) {
			errType := kindToType(p.Kind)
			return apperrors.New(errType, templateMessage(errType), fmt.Errorf("%s", raw))
		}
	}
	return apperrors.New(apperrors.ErrInternal, templateMessage(apperrors.ErrInternal), fmt.Errorf("%s", raw))
}

// templateMessage returns the fixed, identifier-free message shown to
// callers for each error type.
func templateMessage(t apperrors.ErrorType) string {
	switch t {
	case apperrors.ErrNonceStale:
		return "the submitted nonce is stale; re-acquire a lock and retry"
	case apperrors.ErrInsufficientFunds:
		return "wallet balance is insufficient to cover this transaction"
	case apperrors.ErrSlippageOrLiquidity:
		return "price moved beyond the configured slippage tolerance or liquidity is insufficient"
	case apperrors.ErrExpired:
		return "the transaction's validity window expired before it could be submitted"
	case apperrors.ErrNotFound:
		return "the requested resource could not be found"
	case apperrors.ErrDeviceLocked:
		return "the signing device is locked"
	case apperrors.ErrDeviceRejected:
		return "the signing request was rejected on the device"
	case apperrors.ErrDeviceWrongApp:
		return "the signing device does not have the required application open"
	case apperrors.ErrAllowanceRequired:
		return "token allowance must be increased before this transaction can submit"
	case apperrors.ErrValidation:
		return "the request failed validation"
	default:
		return "the transaction could not be processed"
	}
}

func kindToType(kind string) apperrors.ErrorType {
	switch kind {
	case "NonceStale":
		return apperrors.ErrNonceStale
	case "InsufficientFunds":
		return apperrors.ErrInsufficientFunds
	case "SlippageOrLiquidity":
		return apperrors.ErrSlippageOrLiquidity
	case "Expired":
		return apperrors.ErrExpired
	case "NotFound":
		return apperrors.ErrNotFound
	case "DeviceLocked":
		return apperrors.ErrDeviceLocked
	case "DeviceRejected":
		return apperrors.ErrDeviceRejected
	case "DeviceWrongApp":
		return apperrors.ErrDeviceWrongApp
	case "AllowanceRequired":
		return apperrors.ErrAllowanceRequired
	case "Validation":
		return apperrors.ErrValidation
	default:
		return apperrors.ErrInternal
	}
}
