package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dexgate/gateway/internal/chainrpc"
	"github.com/dexgate/gateway/internal/confirm"
	"github.com/dexgate/gateway/internal/middleware"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/noncecache"
	"github.com/dexgate/gateway/internal/orchestrator"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/dexgate/gateway/internal/quotecache"
	"github.com/dexgate/gateway/internal/service"
	"github.com/dexgate/gateway/internal/walletlock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSwapRPC and fakeSwapSigner/fakeSwapBuilder mirror the fakes in
// orchestrator_test.go; they can't be reused directly since that package's
// types are unexported, so the handler layer gets its own minimal copies.
type fakeSwapRPC struct {
	allowance *big.Int
	balance   *big.Int
}

func (f *fakeSwapRPC) PendingNonceAt(ctx context.Context, scope, address string) (uint64, error) {
	return 1, nil
}
func (f *fakeSwapRPC) BalanceOf(ctx context.Context, scope, owner, token string) (*big.Int, error) {
	return f.balance, nil
}
func (f *fakeSwapRPC) AllowanceOf(ctx context.Context, scope, owner, token, spender string) (*big.Int, error) {
	return f.allowance, nil
}
func (f *fakeSwapRPC) SubmitRaw(ctx context.Context, scope string, signed []byte) (string, error) {
	f.allowance = big.NewInt(1_000_000)
	return "0xhandle", nil
}
func (f *fakeSwapRPC) Poll(ctx context.Context, scope, handle string) (chainrpc.PollResult, error) {
	return chainrpc.PollResult{Status: model.StatusConfirmed}, nil
}
func (f *fakeSwapRPC) Simulate(ctx context.Context, scope string, tx chainrpc.UnsignedTx) error {
	return nil
}
func (f *fakeSwapRPC) EstimateGasPrice(ctx context.Context, scope string) (*big.Int, *big.Int, error) {
	return big.NewInt(10), big.NewInt(1), nil
}

type fakeSwapSigner struct{}

func (s *fakeSwapSigner) Address() string  { return "0xsigner" }
func (s *fakeSwapSigner) IsHardware() bool { return false }
func (s *fakeSwapSigner) Sign(ctx context.Context, scope string, tx chainrpc.UnsignedTx) ([]byte, error) {
	return []byte("signed"), nil
}

type fakeSwapBuilder struct{}

func (b *fakeSwapBuilder) ComputeRoute(ctx context.Context, req model.SwapRequest) (model.QuoteResult, error) {
	return model.QuoteResult{
		PoolAddress:  "0xpool",
		TokenIn:      req.BaseToken,
		TokenOut:     req.QuoteToken,
		AmountIn:     req.Amount,
		AmountOut:    "990",
		MinAmountOut: "980",
	}, nil
}
func (b *fakeSwapBuilder) BuildSwapTx(ctx context.Context, route model.QuoteResult, req model.SwapRequest, nonce uint64, gas chainrpc.GasParams) (chainrpc.UnsignedTx, error) {
	return chainrpc.UnsignedTx{To: route.PoolAddress, Nonce: nonce, ChainID: big.NewInt(1)}, nil
}
func (b *fakeSwapBuilder) BuildApproveTx(ctx context.Context, owner, token, spender string, amount *big.Int, nonce uint64, gas chainrpc.GasParams) (chainrpc.UnsignedTx, error) {
	return chainrpc.UnsignedTx{To: token, Nonce: nonce, ChainID: big.NewInt(1)}, nil
}
func (b *fakeSwapBuilder) RequiredAllowance(ctx context.Context, route model.QuoteResult) (string, string, *big.Int, error) {
	return route.TokenIn, "0xspender", big.NewInt(0), nil
}

func newTestSwapHandler(t *testing.T, risk model.RiskConfig) (*SwapHandler, *model.Client) {
	t.Helper()
	rpc := &fakeSwapRPC{allowance: big.NewInt(1_000_000), balance: big.NewInt(1_000_000_000)}
	nonces := noncecache.New(noncecache.Tunables{})
	locks := walletlock.NewRegistry(time.Hour, nonces)
	quotes := quotecache.New(time.Minute)
	classifier := orchestrator.NewClassifier(nil)
	confirmEngine := confirm.New(time.Millisecond, 50*time.Millisecond)

	orch := orchestrator.New(locks, nonces, quotes, classifier, confirmEngine, time.Millisecond, 200*time.Millisecond)
	orch.RegisterChain(&orchestrator.ChainBinding{
		Scope:            "eth",
		Family:           model.FamilyAccountNonce,
		RPC:              rpc,
		Builder:          &fakeSwapBuilder{},
		Signer:           &fakeSwapSigner{},
		AllowAutoApprove: true,
	})

	riskEngine := service.NewRiskEngine(service.NewRiskUsageStore())
	client := &model.Client{ID: "client-1", Risk: risk}
	return NewSwapHandler(orch, riskEngine), client
}

func newSwapGinContext(t *testing.T, method, path string, body interface{}, client *model.Client, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	if client != nil {
		c.Set(middleware.ContextClientKey, client)
	}
	return c, w
}

func TestExecuteSwapSucceedsWithinRiskLimits(t *testing.T) {
	h, client := newTestSwapHandler(t, model.RiskConfig{MaxOrderValue: 10000})

	req := model.SwapRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
		BaseToken:     "0xbase",
		QuoteToken:    "0xquote",
		Amount:        "1000",
		Side:          "SELL",
	}
	c, w := newSwapGinContext(t, http.MethodPost, "/connectors/genericamm/amm/execute-swap?notionalValue=500", req, client,
		gin.Params{{Key: "dex", Value: "genericamm"}, {Key: "poolType", Value: "amm"}})

	h.ExecuteSwap(c)
	require.Empty(t, c.Errors)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.SwapExecuteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusConfirmed, resp.Status)
}

func TestExecuteSwapRejectedByRiskGateNeverReachesOrchestrator(t *testing.T) {
	h, client := newTestSwapHandler(t, model.RiskConfig{MaxOrderValue: 100})

	req := model.SwapRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
		BaseToken:     "0xbase",
		QuoteToken:    "0xquote",
		Amount:        "1000",
		Side:          "SELL",
	}
	c, _ := newSwapGinContext(t, http.MethodPost, "/connectors/genericamm/amm/execute-swap?notionalValue=99999", req, client,
		gin.Params{{Key: "dex", Value: "genericamm"}, {Key: "poolType", Value: "amm"}})

	h.ExecuteSwap(c)
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.Last().Err.Error(), "order value")
	// The handler writes no body itself; ErrorHandler maps the recorded
	// error to its HTTP status in production.
	var appErr *apperrors.AppError
	require.ErrorAs(t, c.Errors.Last().Err, &appErr)
	assert.NotEqual(t, http.StatusOK, appErr.HTTPStatus)
}

func TestExecuteSwapMissingClientContextErrorsOut(t *testing.T) {
	h, _ := newTestSwapHandler(t, model.RiskConfig{})

	req := model.SwapRequest{
		Network:       "eth",
		WalletAddress: "0xwallet",
		BaseToken:     "0xbase",
		QuoteToken:    "0xquote",
		Amount:        "1000",
		Side:          "SELL",
	}
	c, _ := newSwapGinContext(t, http.MethodPost, "/connectors/genericamm/amm/execute-swap", req, nil,
		gin.Params{{Key: "dex", Value: "genericamm"}, {Key: "poolType", Value: "amm"}})

	h.ExecuteSwap(c)
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.Last().Err.Error(), "unauthorized")
}

func TestExecuteSwapInvalidBodyIsValidationError(t *testing.T) {
	h, client := newTestSwapHandler(t, model.RiskConfig{})

	c, _ := newSwapGinContext(t, http.MethodPost, "/connectors/genericamm/amm/execute-swap",
		map[string]string{"network": "eth"}, client,
		gin.Params{{Key: "dex", Value: "genericamm"}, {Key: "poolType", Value: "amm"}})

	h.ExecuteSwap(c)
	require.Len(t, c.Errors, 1)
}

func TestQuoteSwapReturnsRouteAndQuoteID(t *testing.T) {
	h, _ := newTestSwapHandler(t, model.RiskConfig{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	target := "/connectors/genericamm/amm/quote-swap?network=eth&baseToken=0xbase&quoteToken=0xquote&amount=1000&side=SELL"
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)

	h.QuoteSwap(c)
	require.Empty(t, c.Errors)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["quoteId"])
}
