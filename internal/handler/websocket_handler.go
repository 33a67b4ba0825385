// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"printer-service/internal/service"
	"printer-service/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocketHandler streams printer events to WebSocket clients
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	printerService *service.PrinterService
	eventHub       *EventHub
	logger         *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	printerService *service.PrinterService,
	eventHub *EventHub,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:       upgrader,
		connections:    NewConnectionManager(),
		printerService: printerService,
		eventHub:       eventHub,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// originChecker accepts any origin when none are configured
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// All printers and port changes
	router.GET("/events", h.HandleEventConnection)

	// One printer
	router.GET("/printers/:name", h.HandlePrinterConnection)
}

// Run forwards hub events to clients until ctx ends
func (h *WebSocketHandler) Run(ctx context.Context) {
	events, cancel := h.eventHub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			h.BroadcastEvent(event)
		}
	}
}

// HandleEventConnection handles the all-printers event stream
// @Summary Printer event stream
// @Description Upgrade to a WebSocket streaming every printer and port event
// @Tags WebSocket
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := h.newClient(c, conn, "events", nil)
	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientWrite(client)
	go h.handleClientRead(client)
}

// HandlePrinterConnection handles a single-printer stream
// @Summary Single printer event stream
// @Description Upgrade to a WebSocket streaming one printer's events; accepts command messages
// @Tags WebSocket
// @Param name path string true "Printer name"
// @Router /ws/printers/{name} [get]
func (h *WebSocketHandler) HandlePrinterConnection(c *gin.Context) {
	name := c.Param("name")
	view, err := h.printerService.GetPrinter(name)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	port := view.Port.Path
	client := h.newClient(c, conn, "printer", &port)
	h.connections.Register(client)
	h.logger.Info("Printer WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("port", port),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      view,
		Timestamp: time.Now(),
	})

	go h.handleClientWrite(client)
	go h.handleClientRead(client)
}

func (h *WebSocketHandler) newClient(c *gin.Context, conn *websocket.Conn, kind string, port *string) *Client {
	return &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        kind,
		Port:        port,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Debug("WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadLimit(64 * 1024)
	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		h.handleSubscription(client, message)
	case "command":
		h.handleCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// handleSubscription narrows or widens the event types a client receives
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "topic is required")
		return
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		h.sendError(client, "topic is required")
		return
	}

	if message.Type == "subscribe" {
		client.Subscribe(topic)
	} else {
		client.Unsubscribe(topic)
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      message.Type + "_confirmed",
		Data:      map[string]interface{}{"topic": topic},
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

// handleCommand queues direct G-code on a printer stream's printer
func (h *WebSocketHandler) handleCommand(client *Client, message *WebSocketMessage) {
	if client.Port == nil {
		h.sendError(client, "command only available on printer connections")
		return
	}

	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid command data")
		return
	}
	commands, ok := data["commands"].(string)
	if !ok {
		h.sendError(client, "commands is required")
		return
	}

	requestID := message.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	err := h.printerService.SendCommands(*client.Port, &service.CommandRequest{Commands: commands}, requestID)

	result := map[string]interface{}{"success": err == nil}
	if err != nil {
		result["error"] = err.Error()
	}
	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      result,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// BroadcastEvent sends an event to every events client and to the
// printer clients of the event's port
func (h *WebSocketHandler) BroadcastEvent(event Event) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "event",
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	skipped := h.connections.Deliver(messageBytes, func(client *Client) bool {
		if !client.Wants(event.Type) {
			return false
		}
		return client.Type == "events" || (client.Port != nil && *client.Port == event.Source)
	})
	for _, client := range skipped {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("client_id", client.ID),
			zap.String("event_type", event.Type),
		)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
