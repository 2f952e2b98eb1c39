package handler

import (
	"net/http"
	"strconv"

	"github.com/dexgate/gateway/internal/middleware"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/orchestrator"
	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/dexgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// SwapHandler serves §6.2's /connectors/:dex/:poolType surface: quote-swap,
// execute-swap, execute-quote, over the C4 orchestrator. execute-swap is
// gated by the risk engine ahead of ever touching a wallet lock;
// execute-quote is not risk-checked.
type SwapHandler struct {
	orch *orchestrator.Orchestrator
	risk *service.RiskEngine
}

func NewSwapHandler(orch *orchestrator.Orchestrator, risk *service.RiskEngine) *SwapHandler {
	return &SwapHandler{orch: orch, risk: risk}
}

func (h *SwapHandler) QuoteSwap(c *gin.Context) {
	var req model.QuoteSwapRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	route, quoteID, appErr := h.orch.QuoteSwap(c.Request.Context(), req)
	if appErr != nil {
		c.Error(appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quoteId": quoteID, "route": route})
}

func (h *SwapHandler) ExecuteSwap(c *gin.Context) {
	var req model.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	req.Dex = c.Param("dex")
	req.PoolType = c.Param("poolType")

	client, ok := clientFromContext(c)
	if !ok {
		return
	}

	notional := parseNotional(c)
	if err := h.risk.CheckSwap(c.Request.Context(), client, req, notional); err != nil {
		c.Error(apperrors.NewRiskReject(err.Error()))
		return
	}

	resp, appErr := h.orch.ExecuteSwap(c.Request.Context(), req)
	if appErr != nil {
		c.Error(appErr)
		return
	}
	h.risk.PostSwapHook(c.Request.Context(), client, notional)
	middleware.AddAuditContext(c, "status", resp.Status)
	c.JSON(http.StatusOK, resp)
}

func (h *SwapHandler) ExecuteQuote(c *gin.Context) {
	var req model.ExecuteQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}

	client, ok := clientFromContext(c)
	if !ok {
		return
	}

	notional := parseNotional(c)
	resp, appErr := h.orch.ExecuteQuote(c.Request.Context(), req)
	if appErr != nil {
		c.Error(appErr)
		return
	}
	h.risk.PostSwapHook(c.Request.Context(), client, notional)
	middleware.AddAuditContext(c, "status", resp.Status)
	c.JSON(http.StatusOK, resp)
}

func clientFromContext(c *gin.Context) (*model.Client, bool) {
	val, exists := c.Get(middleware.ContextClientKey)
	if !exists {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing client context", nil))
		return nil, false
	}
	return val.(*model.Client), true
}

// parseNotional reads the caller-supplied notional value used by the risk
// gate; it is informational pricing context from the caller's own quote,
// not re-derived from the route (there is no on-gateway price oracle).
func parseNotional(c *gin.Context) float64 {
	raw := c.Query("notionalValue")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
