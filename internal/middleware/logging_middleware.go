// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"printer-service/internal/utils"
)

// LoggingMiddleware logs every request once it has been served. WebSocket
// upgrades are logged when the stream ends.
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		logger.LogAPIRequest(utils.APIRequest{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Route:      route,
			RequestID:  c.GetString("request_id"),
			UserAgent:  c.Request.UserAgent(),
			ClientIP:   c.ClientIP(),
			StatusCode: c.Writer.Status(),
			Duration:   time.Since(start),
		})
	}
}
