// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-service/internal/utils"
)

// RecoveryMiddleware turns a handler panic into a 500. The panic value is
// logged, never returned to the client.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.With(zap.String("component", "recovery"))

	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		fields := []zap.Field{
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString("request_id")),
			zap.Stack("stacktrace"),
		}
		if name := c.Param("name"); name != "" {
			fields = append(fields, zap.String("printer", name))
		}
		logger.Error("Panic recovered", fields...)

		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
	})
}
