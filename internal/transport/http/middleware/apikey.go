package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/response"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match
// the configured key.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(apiKeyHeader)
		if presented == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing api key")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid api key")
			c.Abort()
			return
		}
		c.Next()
	}
}
