package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/dexgate/gateway/internal/repository"
	"github.com/dexgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// ClientHandler is the admin CRUD surface over ClientService, mounted
// behind AdminMiddleware.
type ClientHandler struct {
	svc *service.ClientService
}

func NewClientHandler(svc *service.ClientService) *ClientHandler {
	return &ClientHandler{svc: svc}
}

func (h *ClientHandler) List(c *gin.Context) {
	limit := 100
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			offset = parsed
		}
	}
	clients, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleLookupErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req service.ClientCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	client, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	var req service.ClientUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	client, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleLookupErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ClientHandler) UpdateSigner(c *gin.Context) {
	var req service.ClientSignerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidation(err.Error()))
		return
	}
	client, err := h.svc.UpdateSigner(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleLookupErr(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) handleLookupErr(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrClientNotFound) {
		c.Error(apperrors.NewNotFound(err.Error()))
		return
	}
	c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
}
