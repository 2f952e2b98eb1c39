// Package confirm implements the confirmation engine (C5): bounded polling
// of a submitted transaction until it resolves to CONFIRMED, FAILED, or the
// polling budget is exhausted (PENDING).
package confirm

import (
	"context"
	"math/big"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/pkg/logger"
	"github.com/dexgate/gateway/internal/pkg/metrics"
)

// Poller is the subset of RPCAdapter the engine needs.
type Poller interface {
	Poll(ctx context.Context, scope, handle string) (chainrpc.PollResult, error)
}

// Expectation carries the side/token/amount context a swap already knows
// before submission, so the engine can report signed balance deltas once the
// tx confirms instead of relying on chain-reported amounts (PollResult has
// no per-token accounting; an approve tx passes the zero value).
type Expectation struct {
	Side       model.Side
	BaseToken  string
	QuoteToken string
	AmountIn   string
	AmountOut  string
}

func (e Expectation) hasTokens() bool {
	return e.BaseToken != "" && e.QuoteToken != ""
}

// PushWatcher is an optional fast path: when a chain exposes a
// subscription endpoint, the engine listens for a terminal event instead
// of waiting out the next poll tick.
type PushWatcher interface {
	Watch(ctx context.Context, scope, handle string) (<-chan chainrpc.PollResult, error)
}

type Engine struct {
	pollInterval time.Duration
	timeout      time.Duration
	watcher      PushWatcher
}

func New(pollInterval, timeout time.Duration) *Engine {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{pollInterval: pollInterval, timeout: timeout}
}

// WithPushWatcher enables the websocket fast path alongside polling.
func (e *Engine) WithPushWatcher(w PushWatcher) *Engine {
	e.watcher = w
	return e
}

// Confirm polls (and, if configured, listens) for handle's terminal status
// until the confirmation budget is spent. A timeout returns PENDING with
// the handle still attached so the client can poll again later; transient
// poll errors never fail the call.
func (e *Engine) Confirm(ctx context.Context, poller Poller, scope, handle string, exp Expectation) model.TransactionOutcome {
	start := time.Now()
	deadline := start.Add(e.timeout)

	var pushCh <-chan chainrpc.PollResult
	if e.watcher != nil {
		if ch, err := e.watcher.Watch(ctx, scope, handle); err == nil {
			pushCh = ch
		} else {
			logger.Debug("push watcher unavailable, falling back to polling", "error", err)
		}
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		if res, err := poller.Poll(ctx, scope, handle); err != nil {
			logger.Warn("transient confirmation poll error", "handle", handle, "error", err)
		} else if terminal(res.Status) {
			return e.finish(handle, res, start, exp)
		}

		if time.Now().After(deadline) {
			metrics.ConfirmationSeconds.WithLabelValues("pending_timeout").Observe(time.Since(start).Seconds())
			return model.TransactionOutcome{Status: model.StatusPending, Handle: handle, ObservedAt: time.Now()}
		}

		select {
		case <-ctx.Done():
			return model.TransactionOutcome{Status: model.StatusPending, Handle: handle, ObservedAt: time.Now()}
		case res, ok := <-pushCh:
			if ok && terminal(res.Status) {
				return e.finish(handle, res, start, exp)
			}
		case <-ticker.C:
		}
	}
}

func terminal(status int) bool {
	return status == model.StatusConfirmed || status == model.StatusFailed
}

func (e *Engine) finish(handle string, res chainrpc.PollResult, start time.Time, exp Expectation) model.TransactionOutcome {
	outcomeLabel := "confirmed"
	if res.Status == model.StatusFailed {
		outcomeLabel = "failed"
	}
	metrics.ConfirmationSeconds.WithLabelValues(outcomeLabel).Observe(time.Since(start).Seconds())

	outcome := model.TransactionOutcome{
		Status:     res.Status,
		Handle:     handle,
		Fee:        res.Fee,
		ObservedAt: time.Now(),
	}

	// Balance deltas are only meaningful for a confirmed swap with known
	// legs; a failed tx moved nothing, and an approve tx has no swap side.
	if res.Status == model.StatusConfirmed && exp.hasTokens() {
		outcome.BaseTokenBalanceChange, outcome.QuoteTokenBalanceChange = signedDeltas(exp)
	}
	return outcome
}

// signedDeltas turns Expectation's unsigned in/out amounts into base/quote
// deltas signed from the wallet's point of view: a SELL spends base and
// receives quote, a BUY spends quote and receives base.
func signedDeltas(exp Expectation) (base, quote string) {
	in, ok := new(big.Int).SetString(exp.AmountIn, 10)
	if !ok {
		in = big.NewInt(0)
	}
	out, ok := new(big.Int).SetString(exp.AmountOut, 10)
	if !ok {
		out = big.NewInt(0)
	}
	negIn := new(big.Int).Neg(in)

	if exp.Side == model.SideBuy {
		return out.String(), negIn.String()
	}
	return negIn.String(), out.String()
}
