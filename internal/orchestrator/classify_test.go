package orchestrator

import (
	"testing"

	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMapsKnownSubstringsToStableTypes(t *testing.T) {
	c := NewClassifier(nil)

	cases := map[string]apperrors.ErrorType{
		"nonce too low: expected 5":                   apperrors.ErrNonceStale,
		"insufficient funds for gas * price + value":  apperrors.ErrInsufficientFunds,
		"execution reverted: slippage exceeded":       apperrors.ErrSlippageOrLiquidity,
		"blockhash not found":                         apperrors.ErrExpired,
		"pool not found for 0xabc/0xdef":               apperrors.ErrNotFound,
		"device locked, unlock to continue":            apperrors.ErrDeviceLocked,
		"device rejected by user 0xwallet123":          apperrors.ErrDeviceRejected,
		"wrong app open on device":                     apperrors.ErrDeviceWrongApp,
		"some unrecognized RPC failure":                apperrors.ErrInternal,
	}

	for raw, want := range cases {
		appErr := c.Classify(raw)
		require.NotNil(t, appErr)
		assert.Equal(t, want, appErr.Type, "raw=%q", raw)
	}
}

func TestClassifyNeverLeaksRawErrorIntoClientMessage(t *testing.T) {
	c := NewClassifier(nil)

	raw := "insufficient funds for wallet 0xDEADBEEF00000000000000000000000000000042, tx 0xfeedfacecafebabe"
	appErr := c.Classify(raw)

	assert.NotContains(t, appErr.Message, "0xDEADBEEF00000000000000000000000000000042")
	assert.NotContains(t, appErr.Message, "0xfeedfacecafebabe")
	assert.NotContains(t, appErr.Message, raw)

	// The raw detail is preserved as the wrapped cause, not serialized on
	// the JSON response (Cause is json:"-"), so it still reaches logs.
	require.Error(t, appErr.Cause)
	assert.Contains(t, appErr.Cause.Error(), "0xDEADBEEF00000000000000000000000000000042")
}

func TestClassifyUnmatchedErrorIsInternalWithTemplatedMessage(t *testing.T) {
	c := NewClassifier(nil)

	appErr := c.Classify("connection reset by peer at 10.0.0.5:8545")

	assert.Equal(t, apperrors.ErrInternal, appErr.Type)
	assert.NotContains(t, appErr.Message, "10.0.0.5")
}
