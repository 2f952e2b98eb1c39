package middleware

import (
	"net/http"

	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/service"
	"github.com/gin-gonic/gin"
)

func RateLimitMiddleware(cm *service.ClientManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientVal, exists := c.Get(ContextClientKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		client := clientVal.(*model.Client)

		limiter := cm.GetLimiterForClient(client.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
