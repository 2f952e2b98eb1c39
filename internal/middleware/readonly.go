package middleware

import (
	"net/http"
	"strings"

	"github.com/dexgate/gateway/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		method := c.Request.Method
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			// C6 release/invalidate stay open so outstanding leases can be
			// drained while other writes are blocked.
			path := c.Request.URL.Path
			if strings.HasSuffix(path, "/nonce/release") || strings.HasSuffix(path, "/nonce/invalidate") {
				c.Next()
				return
			}
			c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
			return
		}
	}
}
