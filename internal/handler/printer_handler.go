// internal/handler/printer_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-service/internal/printer"
	"printer-service/internal/service"
	"printer-service/internal/utils"
)

// PrinterHandler handles printer-related HTTP requests
type PrinterHandler struct {
	printerService *service.PrinterService
	logger         *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(printerService *service.PrinterService, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		printerService: printerService,
		logger:         utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer-related routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	ports := router.Group("/ports")
	{
		ports.GET("", h.ListPorts)
		ports.POST("/scan", h.ScanPorts)
	}

	printers := router.Group("/printers")
	{
		printers.GET("", h.ListPrinters)

		p := printers.Group("/:name")
		{
			p.GET("", h.GetPrinter)
			p.GET("/errors", h.GetErrorLog)
			p.POST("/connect", h.Connect)
			p.POST("/disconnect", h.Disconnect)
			p.POST("/print", h.StartPrint)
			p.POST("/pause", h.Pause)
			p.POST("/resume", h.Resume)
			p.POST("/cancel", h.Cancel)
			p.POST("/commands", h.SendCommands)
			p.POST("/home", h.Home)
			p.POST("/move", h.Move)
			p.PUT("/temperature", h.SetTemperature)
			p.PUT("/extruders", h.SetExtruders)
		}
	}
}

// ListPorts lists monitored serial ports
// @Summary List serial ports
// @Description List every monitored serial port with its USB details and connection state
// @Tags Ports
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]service.PortView} "Ports retrieved"
// @Router /ports [get]
func (h *PrinterHandler) ListPorts(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Ports retrieved successfully", h.printerService.ListPorts())
}

// ScanPorts runs a port scan immediately
// @Summary Rescan serial ports
// @Tags Ports
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Scan completed"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /ports/scan [post]
func (h *PrinterHandler) ScanPorts(c *gin.Context) {
	result, err := h.printerService.Rescan(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Port scan failed")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", result)
}

// ListPrinters lists printer statuses
// @Summary List printers
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]service.PrinterView} "Printers retrieved"
// @Router /printers [get]
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Printers retrieved successfully", h.printerService.ListPrinters())
}

// GetPrinter gets one printer's status
// @Summary Get printer
// @Tags Printers
// @Produce json
// @Param name path string true "Printer name (port base name or path)"
// @Success 200 {object} utils.APIResponse{data=service.PrinterView} "Printer retrieved"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Router /printers/{name} [get]
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	view, err := h.printerService.GetPrinter(c.Param("name"))
	if err != nil {
		h.respondError(c, err, "Failed to get printer")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer retrieved successfully", view)
}

// GetErrorLog returns the error lines reported by a printer
// @Summary Get printer error log
// @Tags Printers
// @Produce json
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse "Error log retrieved"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Router /printers/{name}/errors [get]
func (h *PrinterHandler) GetErrorLog(c *gin.Context) {
	lines, err := h.printerService.ErrorLog(c.Param("name"))
	if err != nil {
		h.respondError(c, err, "Failed to get error log")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Error log retrieved successfully", gin.H{"lines": lines})
}

// Connect starts the connect sequence
// @Summary Connect printer
// @Description Start probing the port; progress is reported on the event stream
// @Tags Printers
// @Param name path string true "Printer name"
// @Success 202 {object} utils.APIResponse "Connect started"
// @Failure 409 {object} utils.APIResponse "Already connected"
// @Router /printers/{name}/connect [post]
func (h *PrinterHandler) Connect(c *gin.Context) {
	if err := h.printerService.Connect(c.Param("name"), requestID(c)); err != nil {
		h.respondError(c, err, "Failed to connect printer")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Connect started", nil)
}

// Disconnect closes the printer connection
// @Summary Disconnect printer
// @Tags Printers
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse "Printer disconnected"
// @Router /printers/{name}/disconnect [post]
func (h *PrinterHandler) Disconnect(c *gin.Context) {
	if err := h.printerService.Disconnect(c.Param("name"), requestID(c)); err != nil {
		h.respondError(c, err, "Failed to disconnect printer")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer disconnected", nil)
}

// StartPrint starts printing a program
// @Summary Start print
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.PrintRequest true "Program"
// @Success 202 {object} utils.APIResponse "Print started"
// @Failure 409 {object} utils.APIResponse "Printer not idle"
// @Router /printers/{name}/print [post]
func (h *PrinterHandler) StartPrint(c *gin.Context) {
	var req service.PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}

	if err := h.printerService.StartPrint(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to start print")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Print started", nil)
}

// Pause pauses the running print
// @Summary Pause print
// @Tags Printers
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse "Print paused"
// @Failure 409 {object} utils.APIResponse "Printer not printing"
// @Router /printers/{name}/pause [post]
func (h *PrinterHandler) Pause(c *gin.Context) {
	h.simpleAction(c, h.printerService.Pause, "Print paused", "Failed to pause print")
}

// Resume resumes a paused print
// @Summary Resume print
// @Tags Printers
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse "Print resumed"
// @Failure 409 {object} utils.APIResponse "Printer not paused"
// @Router /printers/{name}/resume [post]
func (h *PrinterHandler) Resume(c *gin.Context) {
	h.simpleAction(c, h.printerService.Resume, "Print resumed", "Failed to resume print")
}

// Cancel cancels the print and cools the printer down
// @Summary Cancel print
// @Tags Printers
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse "Print cancelled"
// @Router /printers/{name}/cancel [post]
func (h *PrinterHandler) Cancel(c *gin.Context) {
	h.simpleAction(c, h.printerService.Cancel, "Print cancelled", "Failed to cancel print")
}

// SendCommands queues direct G-code
// @Summary Send G-code
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.CommandRequest true "Commands"
// @Success 202 {object} utils.APIResponse "Commands queued"
// @Failure 429 {object} utils.APIResponse "Command queue full"
// @Router /printers/{name}/commands [post]
func (h *PrinterHandler) SendCommands(c *gin.Context) {
	var req service.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}

	if err := h.printerService.SendCommands(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to queue commands")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Commands queued", nil)
}

// Home homes the head or bed
// @Summary Home
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.HomeRequest false "Target"
// @Success 202 {object} utils.APIResponse "Home queued"
// @Router /printers/{name}/home [post]
func (h *PrinterHandler) Home(c *gin.Context) {
	var req service.HomeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BindErrorResponse(c, err)
			return
		}
	}

	if err := h.printerService.Home(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to home")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Home queued", nil)
}

// Move moves the head
// @Summary Move head
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.MoveRequest true "Relative move"
// @Success 202 {object} utils.APIResponse "Move queued"
// @Router /printers/{name}/move [post]
func (h *PrinterHandler) Move(c *gin.Context) {
	var req service.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}

	if err := h.printerService.Move(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to move head")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Move queued", nil)
}

// SetTemperature sets a heater target
// @Summary Set target temperature
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.TemperatureRequest true "Heater target"
// @Success 202 {object} utils.APIResponse "Temperature queued"
// @Router /printers/{name}/temperature [put]
func (h *PrinterHandler) SetTemperature(c *gin.Context) {
	var req service.TemperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}

	if err := h.printerService.SetTemperature(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to set temperature")
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Temperature queued", nil)
}

// SetExtruders sets the extruder count
// @Summary Set extruder count
// @Tags Printers
// @Accept json
// @Param name path string true "Printer name"
// @Param request body service.ExtrudersRequest true "Extruder count"
// @Success 200 {object} utils.APIResponse "Extruder count updated"
// @Failure 409 {object} utils.APIResponse "Printer busy"
// @Router /printers/{name}/extruders [put]
func (h *PrinterHandler) SetExtruders(c *gin.Context) {
	var req service.ExtrudersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}

	if err := h.printerService.SetExtruders(c.Param("name"), &req, requestID(c)); err != nil {
		h.respondError(c, err, "Failed to set extruder count")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Extruder count updated", nil)
}

func (h *PrinterHandler) simpleAction(c *gin.Context, action func(name, requestID string) error, ok, failed string) {
	if err := action(c.Param("name"), requestID(c)); err != nil {
		h.respondError(c, err, failed)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, ok, nil)
}

func (h *PrinterHandler) respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.Error(err),
			zap.String("printer", c.Param("name")),
			zap.String("request_id", requestID(c)),
		)
	}
	utils.ErrorResponse(c, status, message, err)
}

// statusFor maps service and printer errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPrinterNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, printer.ErrInvalidExtruder):
		return http.StatusBadRequest
	case errors.Is(err, printer.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, printer.ErrQueueFull):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}
