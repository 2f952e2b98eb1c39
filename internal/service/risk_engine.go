package service

import (
	"context"
	"fmt"

	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/pkg/metrics"
)

// UsageRepo is the A.9 usage/risk store: per-client daily order count and
// notional volume, backing the MaxDailyOrders/MaxDailyValue checks below.
type UsageRepo interface {
	GetDailyUsage(ctx context.Context, clientID string) (int, float64, error)
	AddDailyUsage(ctx context.Context, clientID string, orders int, amount float64) error
}

// RiskEngine is the pre-trade risk gate standing in front of C4: every
// execute-swap passes CheckSwap before the orchestrator ever touches a
// wallet lock. execute-quote is not passed through CheckSwap; only
// PostSwapHook records its usage.
type RiskEngine struct {
	repo UsageRepo
}

func NewRiskEngine(repo UsageRepo) *RiskEngine {
	return &RiskEngine{repo: repo}
}

// CheckSwap rejects a swap before it reaches the orchestrator. notionalValue
// is the request's estimated value in the client's accounting currency,
// supplied by the caller from the route's quoted price.
func (e *RiskEngine) CheckSwap(ctx context.Context, client *model.Client, req model.SwapRequest, notionalValue float64) error {
	cfg := client.Risk

	if cfg.MaxOrderValue > 0 && notionalValue > cfg.MaxOrderValue {
		metrics.RiskRejects.WithLabelValues("max_order_value").Inc()
		return fmt.Errorf("risk reject: order value %.2f exceeds limit %.2f", notionalValue, cfg.MaxOrderValue)
	}

	if cfg.MaxSlippage > 0 && req.SlippagePct/100 > cfg.MaxSlippage {
		metrics.RiskRejects.WithLabelValues("max_slippage").Inc()
		return fmt.Errorf("risk reject: requested slippage %.4f exceeds limit %.4f", req.SlippagePct/100, cfg.MaxSlippage)
	}

	for _, restricted := range cfg.RestrictedPools {
		if req.PoolAddress != "" && req.PoolAddress == restricted {
			metrics.RiskRejects.WithLabelValues("restricted_pool").Inc()
			return fmt.Errorf("risk reject: pool %s is restricted for this client", req.PoolAddress)
		}
	}

	if cfg.MaxDailyValue > 0 || cfg.MaxDailyOrders > 0 {
		currentOrders, currentVol, err := e.repo.GetDailyUsage(ctx, client.ID)
		if err != nil {
			return fmt.Errorf("risk check failed: %w", err)
		}

		if cfg.MaxDailyValue > 0 && currentVol+notionalValue > cfg.MaxDailyValue {
			metrics.RiskRejects.WithLabelValues("max_daily_value").Inc()
			return fmt.Errorf("risk reject: daily volume limit exceeded (current %.2f, new %.2f, max %.2f)",
				currentVol, notionalValue, cfg.MaxDailyValue)
		}
		if cfg.MaxDailyOrders > 0 && currentOrders+1 > cfg.MaxDailyOrders {
			metrics.RiskRejects.WithLabelValues("max_daily_orders").Inc()
			return fmt.Errorf("risk reject: daily order limit exceeded (current %d, max %d)",
				currentOrders, cfg.MaxDailyOrders)
		}
	}

	return nil
}

// PostSwapHook updates the daily usage counters once a swap has been
// submitted. The swap handler calls it for CONFIRMED and PENDING outcomes;
// a FAILED outcome returns an error first and is not counted.
func (e *RiskEngine) PostSwapHook(ctx context.Context, client *model.Client, notionalValue float64) {
	_ = e.repo.AddDailyUsage(ctx, client.ID, 1, notionalValue)
}
