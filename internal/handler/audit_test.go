package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexgate/gateway/internal/middleware"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandlerListReturnsBufferedEntriesForClient(t *testing.T) {
	svc, err := service.NewAuditService(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	svc.Log(&model.AuditLog{ClientID: "client-1", Path: "/v1/connectors/genericamm/amm/execute-swap"})
	svc.Log(&model.AuditLog{ClientID: "client-2", Path: "/v1/connectors/genericamm/amm/execute-swap"})

	h := NewAuditHandler(svc)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	c.Set(middleware.ContextClientKey, &model.Client{ID: "client-1"})

	h.List(c)
	require.Empty(t, c.Errors)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditHandlerListMissingClientContextErrorsOut(t *testing.T) {
	svc, err := service.NewAuditService(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	h := NewAuditHandler(svc)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/audit", nil)

	h.List(c)
	require.Len(t, c.Errors, 1)
}

func TestAuditHandlerListRejectsInvalidFromParam(t *testing.T) {
	svc, err := service.NewAuditService(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	h := NewAuditHandler(svc)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/audit?from=not-a-time", nil)
	c.Set(middleware.ContextClientKey, &model.Client{ID: "client-1"})

	h.List(c)
	require.Len(t, c.Errors, 1)
}
