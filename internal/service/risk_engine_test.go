package service

import (
	"context"
	"testing"

	"github.com/dexgate/gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(risk model.RiskConfig) *model.Client {
	return &model.Client{ID: "client-1", Risk: risk}
}

func TestCheckSwapRejectsOverMaxOrderValue(t *testing.T) {
	engine := NewRiskEngine(NewRiskUsageStore())
	client := testClient(model.RiskConfig{MaxOrderValue: 1000})

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 5000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order value")
}

func TestCheckSwapRejectsOverMaxSlippage(t *testing.T) {
	engine := NewRiskEngine(NewRiskUsageStore())
	client := testClient(model.RiskConfig{MaxSlippage: 0.01}) // 1%

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{SlippagePct: 5}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage")
}

func TestCheckSwapRejectsRestrictedPool(t *testing.T) {
	engine := NewRiskEngine(NewRiskUsageStore())
	client := testClient(model.RiskConfig{RestrictedPools: []string{"0xbad"}})

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{PoolAddress: "0xbad"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restricted")
}

func TestCheckSwapAllowsWithinLimits(t *testing.T) {
	engine := NewRiskEngine(NewRiskUsageStore())
	client := testClient(model.RiskConfig{MaxOrderValue: 1000, MaxSlippage: 0.05})

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{SlippagePct: 1}, 500)
	assert.NoError(t, err)
}

func TestCheckSwapEnforcesDailyOrderLimitAcrossCalls(t *testing.T) {
	store := NewRiskUsageStore()
	engine := NewRiskEngine(store)
	client := testClient(model.RiskConfig{MaxDailyOrders: 2})

	require.NoError(t, engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 0))
	engine.PostSwapHook(context.Background(), client, 100)

	require.NoError(t, engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 0))
	engine.PostSwapHook(context.Background(), client, 100)

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily order limit")
}

func TestCheckSwapEnforcesDailyVolumeLimitAcrossCalls(t *testing.T) {
	store := NewRiskUsageStore()
	engine := NewRiskEngine(store)
	client := testClient(model.RiskConfig{MaxDailyValue: 1000})

	require.NoError(t, engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 600))
	engine.PostSwapHook(context.Background(), client, 600)

	err := engine.CheckSwap(context.Background(), client, model.SwapRequest{}, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily volume")
}
