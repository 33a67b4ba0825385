// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"printer-service/internal/config"
	"printer-service/internal/discovery"
	"printer-service/internal/handler"
	"printer-service/internal/middleware"
	"printer-service/internal/service"
	"printer-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	monitor        *discovery.Monitor
	printerService *service.PrinterService
	wsHandler      *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	monitor *discovery.Monitor,
	printerService *service.PrinterService,
	wsHandler *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		monitor:        monitor,
		printerService: printerService,
		wsHandler:      wsHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() || !r.config.IsDebugEnabled() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.printerService, r.monitor.LastScan, r.config, r.logger)
	printerHandler := handler.NewPrinterHandler(r.printerService, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router.Group(""))

	// API v1 routes
	printerHandler.RegisterRoutes(router.Group("/api/v1"))

	// WebSocket routes
	if r.wsHandler != nil {
		r.wsHandler.RegisterRoutes(router.Group("/ws"))
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
