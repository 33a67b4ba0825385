// internal/middleware/cors_middleware.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"printer-service/internal/config"
)

// CORSMiddleware allows the configured origins to drive printers from a
// browser. Without origins every origin is allowed, without credentials.
func CORSMiddleware(config *config.SecurityConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders:   []string{"Content-Length", RequestIDHeader},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}

	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}

	return cors.New(corsConfig)
}
