// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-service/internal/config"
	"printer-service/internal/printer"
	"printer-service/internal/service"
	"printer-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	printerService *service.PrinterService
	lastScan       func() time.Time
	config         *config.Config
	logger         *utils.ServiceLogger
	startedAt      time.Time
}

// NewHealthHandler creates a new health handler. lastScan reports when the
// port monitor last finished a scan.
func NewHealthHandler(printerService *service.PrinterService, lastScan func() time.Time, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		printerService: printerService,
		lastScan:       lastScan,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "health-handler"),
		startedAt:      time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get service health including port monitor freshness and printer states
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy or degraded"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	// Port monitor check
	if h.scanIsStale() {
		health.Status = "unhealthy"
		health.Checks["port_monitor"] = CheckResult{
			Status:  "unhealthy",
			Message: "No recent port scan",
		}
	} else {
		health.Checks["port_monitor"] = CheckResult{
			Status:  "healthy",
			Message: "Port scans OK",
			Data:    map[string]interface{}{"last_scan": h.lastScan()},
		}
	}

	// Printer states
	byState := make(map[string]interface{})
	counts := make(map[printer.State]int)
	for _, p := range h.printerService.ListPrinters() {
		counts[p.Status.State]++
	}
	for state, n := range counts {
		byState[state.String()] = n
	}
	failed := counts[printer.StateError]
	printers := CheckResult{Status: "healthy", Data: byState}
	if failed > 0 {
		printers.Status = "degraded"
		printers.Message = "One or more printers are in the Error state"
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
	}
	health.Checks["printers"] = printers

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Ready once the first port scan has completed
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.lastScan().IsZero() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "port scan pending",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// scanIsStale reports whether three scan intervals passed without a scan
func (h *HealthHandler) scanIsStale() bool {
	last := h.lastScan()
	if last.IsZero() {
		return time.Since(h.startedAt) > 3*h.config.Discovery.PortScanInterval
	}
	return time.Since(last) > 3*h.config.Discovery.PortScanInterval
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
