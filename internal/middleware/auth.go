package middleware

import (
	"net/http"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderGatewayKey = "X-Gateway-Key"
	ContextClientKey = "client"
)

func AuthMiddleware(cfg *config.Config, cm *service.ClientManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if client := cm.DefaultClient(); client != nil {
					c.Set(ContextClientKey, client)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		client, ok := cm.GetClientByAPIKeyWithFallback(c.Request.Context(), apiKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextClientKey, client)
		c.Next()
	}
}
