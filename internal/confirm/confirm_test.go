package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePoller returns a fixed result on every poll, optionally after a few
// pending ticks, so tests don't depend on wall-clock chain confirmation.
type fakePoller struct {
	pendingPolls int
	result       chainrpc.PollResult
	err          error
}

func (p *fakePoller) Poll(ctx context.Context, scope, handle string) (chainrpc.PollResult, error) {
	if p.pendingPolls > 0 {
		p.pendingPolls--
		return chainrpc.PollResult{Status: model.StatusPending}, p.err
	}
	return p.result, p.err
}

func TestConfirmSellReportsNegativeBaseAndPositiveQuote(t *testing.T) {
	e := New(time.Millisecond, time.Second)
	poller := &fakePoller{result: chainrpc.PollResult{Status: model.StatusConfirmed, Fee: "21000"}}

	outcome := e.Confirm(context.Background(), poller, "eth", "0xhandle", Expectation{
		Side:       model.SideSell,
		BaseToken:  "0xbase",
		QuoteToken: "0xquote",
		AmountIn:   "1000",
		AmountOut:  "990",
	})

	require.Equal(t, model.StatusConfirmed, outcome.Status)
	assert.Equal(t, "-1000", outcome.BaseTokenBalanceChange)
	assert.Equal(t, "990", outcome.QuoteTokenBalanceChange)
	assert.Equal(t, "21000", outcome.Fee)
}

func TestConfirmBuyReportsPositiveBaseAndNegativeQuote(t *testing.T) {
	e := New(time.Millisecond, time.Second)
	poller := &fakePoller{result: chainrpc.PollResult{Status: model.StatusConfirmed}}

	outcome := e.Confirm(context.Background(), poller, "eth", "0xhandle", Expectation{
		Side:       model.SideBuy,
		BaseToken:  "0xbase",
		QuoteToken: "0xquote",
		AmountIn:   "1000",
		AmountOut:  "990",
	})

	require.Equal(t, model.StatusConfirmed, outcome.Status)
	assert.Equal(t, "990", outcome.BaseTokenBalanceChange)
	assert.Equal(t, "-1000", outcome.QuoteTokenBalanceChange)
}

func TestConfirmFailedTxReportsNoBalanceDeltas(t *testing.T) {
	e := New(time.Millisecond, time.Second)
	poller := &fakePoller{result: chainrpc.PollResult{Status: model.StatusFailed}}

	outcome := e.Confirm(context.Background(), poller, "eth", "0xhandle", Expectation{
		Side:       model.SideSell,
		BaseToken:  "0xbase",
		QuoteToken: "0xquote",
		AmountIn:   "1000",
		AmountOut:  "990",
	})

	require.Equal(t, model.StatusFailed, outcome.Status)
	assert.Empty(t, outcome.BaseTokenBalanceChange)
	assert.Empty(t, outcome.QuoteTokenBalanceChange)
}

func TestConfirmWithoutExpectationLeavesDeltasEmpty(t *testing.T) {
	e := New(time.Millisecond, time.Second)
	poller := &fakePoller{result: chainrpc.PollResult{Status: model.StatusConfirmed}}

	outcome := e.Confirm(context.Background(), poller, "eth", "0xhandle", Expectation{})

	require.Equal(t, model.StatusConfirmed, outcome.Status)
	assert.Empty(t, outcome.BaseTokenBalanceChange)
	assert.Empty(t, outcome.QuoteTokenBalanceChange)
}

func TestConfirmTimesOutToPendingAfterBudgetExhausted(t *testing.T) {
	e := New(2*time.Millisecond, 5*time.Millisecond)
	poller := &fakePoller{pendingPolls: 1000}

	outcome := e.Confirm(context.Background(), poller, "eth", "0xhandle", Expectation{})

	assert.Equal(t, model.StatusPending, outcome.Status)
	assert.Equal(t, "0xhandle", outcome.Handle)
}
