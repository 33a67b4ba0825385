// internal/service/printer_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/printer"
	"printer-service/internal/utils"
)

var (
	// ErrPrinterNotFound is returned for names that match no monitored port
	ErrPrinterNotFound = errors.New("printer not found")
	// ErrInvalidRequest is returned when a request fails validation
	ErrInvalidRequest = errors.New("invalid request")
)

// PrinterService is the control surface over the monitored printers
type PrinterService struct {
	monitor     *discovery.Monitor
	logger      *utils.ServiceLogger
	auditLogger *utils.AuditLogger
}

// NewPrinterService creates a new printer service instance
func NewPrinterService(monitor *discovery.Monitor, logger *zap.Logger) *PrinterService {
	return &PrinterService{
		monitor:     monitor,
		logger:      utils.NewServiceLogger(logger, "printer-service"),
		auditLogger: utils.NewAuditLogger(logger),
	}
}

// PortView describes a monitored port
type PortView struct {
	Name      string                `json:"name"`
	Port      *discovery.SerialPort `json:"port"`
	State     printer.State         `json:"state"`
	FirstSeen time.Time             `json:"first_seen"`
}

// PrinterView is a printer's status together with its port details
type PrinterView struct {
	Name   string                `json:"name"`
	Port   *discovery.SerialPort `json:"port"`
	Status printer.Status        `json:"status"`
}

// ScanResult reports the changes applied by a manual rescan
type ScanResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// PrintRequest carries a program either as lines or as one text blob
type PrintRequest struct {
	Lines   []string `json:"lines"`
	Program string   `json:"program"`
}

// CommandRequest carries direct G-code, one command per line
type CommandRequest struct {
	Commands string `json:"commands" binding:"required"`
}

// HomeRequest selects what to home: "head" (default) or "bed"
type HomeRequest struct {
	Target string `json:"target"`
}

// MoveRequest is a relative head move
type MoveRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	FeedRate float64 `json:"feed_rate"`
}

// TemperatureRequest sets a heater target. Heater is "tool" or "bed".
type TemperatureRequest struct {
	Heater  string  `json:"heater" binding:"required"`
	Tool    int     `json:"tool"`
	Celsius float64 `json:"celsius"`
}

// ExtrudersRequest resizes the temperature arrays
type ExtrudersRequest struct {
	Count int `json:"count" binding:"required"`
}

// ListPorts returns every monitored port
func (ps *PrinterService) ListPorts() []*PortView {
	ports := ps.monitor.Ports()
	views := make([]*PortView, 0, len(ports))
	for _, mp := range ports {
		views = append(views, &PortView{
			Name:      portName(mp.Info.Path),
			Port:      mp.Info,
			State:     mp.Connection.State(),
			FirstSeen: mp.FirstSeen,
		})
	}
	return views
}

// ListPrinters returns the status of every monitored port
func (ps *PrinterService) ListPrinters() []*PrinterView {
	ports := ps.monitor.Ports()
	views := make([]*PrinterView, 0, len(ports))
	for _, mp := range ports {
		views = append(views, ps.view(mp))
	}
	return views
}

// GetPrinter returns one printer's status
func (ps *PrinterService) GetPrinter(name string) (*PrinterView, error) {
	mp, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return ps.view(mp), nil
}

// ErrorLog returns the error lines a printer reported
func (ps *PrinterService) ErrorLog(name string) ([]string, error) {
	mp, err := ps.lookup(name)
	if err != nil {
		return nil, err
	}
	return mp.Connection.ErrorLog(), nil
}

// Rescan runs one port scan immediately
func (ps *PrinterService) Rescan(ctx context.Context) (*ScanResult, error) {
	added, removed, err := ps.monitor.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("port scan failed: %w", err)
	}
	ps.logger.Info("Manual port scan completed",
		zap.Strings("added", added),
		zap.Strings("removed", removed),
	)
	return &ScanResult{Added: nonNil(added), Removed: nonNil(removed)}, nil
}

// Connect starts the connect sequence in the background
func (ps *PrinterService) Connect(name, requestID string) error {
	return ps.act(name, "connect", requestID, func(conn *printer.Connection) error {
		return conn.Connect()
	})
}

// Disconnect closes the printer's transport
func (ps *PrinterService) Disconnect(name, requestID string) error {
	return ps.act(name, "disconnect", requestID, func(conn *printer.Connection) error {
		return conn.Close()
	})
}

// StartPrint loads a program and starts printing it
func (ps *PrinterService) StartPrint(name string, req *PrintRequest, requestID string) error {
	lines := req.Lines
	if req.Program != "" {
		if len(lines) > 0 {
			return fmt.Errorf("%w: give either lines or program", ErrInvalidRequest)
		}
		lines = strings.Split(strings.ReplaceAll(req.Program, "\r\n", "\n"), "\n")
	}

	return ps.act(name, "print", requestID, func(conn *printer.Connection) error {
		return conn.StartPrint(lines)
	})
}

// Pause suspends program streaming
func (ps *PrinterService) Pause(name, requestID string) error {
	return ps.act(name, "pause", requestID, (*printer.Connection).Pause)
}

// Resume continues a paused program
func (ps *PrinterService) Resume(name, requestID string) error {
	return ps.act(name, "resume", requestID, (*printer.Connection).Resume)
}

// Cancel abandons the program and cools the printer down
func (ps *PrinterService) Cancel(name, requestID string) error {
	return ps.act(name, "cancel", requestID, (*printer.Connection).Cancel)
}

// SendCommands queues direct G-code
func (ps *PrinterService) SendCommands(name string, req *CommandRequest, requestID string) error {
	if strings.TrimSpace(req.Commands) == "" {
		return fmt.Errorf("%w: commands must not be empty", ErrInvalidRequest)
	}
	return ps.act(name, "commands", requestID, func(conn *printer.Connection) error {
		return conn.Send(req.Commands)
	})
}

// Home homes the head or the bed
func (ps *PrinterService) Home(name string, req *HomeRequest, requestID string) error {
	var home func(*printer.Connection) error
	switch req.Target {
	case "", "head":
		home = (*printer.Connection).HomeHead
	case "bed":
		home = (*printer.Connection).HomeBed
	default:
		return fmt.Errorf("%w: unknown home target %q", ErrInvalidRequest, req.Target)
	}
	return ps.act(name, "home", requestID, home)
}

// Move moves the head relative to its position
func (ps *PrinterService) Move(name string, req *MoveRequest, requestID string) error {
	if req.FeedRate < 0 {
		return fmt.Errorf("%w: feed_rate must not be negative", ErrInvalidRequest)
	}
	return ps.act(name, "move", requestID, func(conn *printer.Connection) error {
		return conn.MoveHead(req.X, req.Y, req.Z, req.FeedRate)
	})
}

// SetTemperature sets a hotend or bed target temperature
func (ps *PrinterService) SetTemperature(name string, req *TemperatureRequest, requestID string) error {
	if req.Celsius < 0 {
		return fmt.Errorf("%w: celsius must not be negative", ErrInvalidRequest)
	}

	var set func(*printer.Connection) error
	switch req.Heater {
	case "tool":
		set = func(conn *printer.Connection) error { return conn.SetTargetHotendTemperature(req.Tool, req.Celsius) }
	case "bed":
		set = func(conn *printer.Connection) error { return conn.SetTargetBedTemperature(req.Celsius) }
	default:
		return fmt.Errorf("%w: heater must be tool or bed", ErrInvalidRequest)
	}
	return ps.act(name, "temperature", requestID, set)
}

// SetExtruders changes the extruder count
func (ps *PrinterService) SetExtruders(name string, req *ExtrudersRequest, requestID string) error {
	return ps.act(name, "extruders", requestID, func(conn *printer.Connection) error {
		return conn.SetExtruderCount(req.Count)
	})
}

// act runs fn against the named printer and records the outcome
func (ps *PrinterService) act(name, action, requestID string, fn func(*printer.Connection) error) error {
	mp, err := ps.lookup(name)
	if err != nil {
		return err
	}

	err = fn(mp.Connection)
	ps.auditLogger.LogPrinterAction(mp.Info.Path, action, requestID, err)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, mp.Info.Path, err)
	}
	return nil
}

// lookup resolves a printer by full port path or by its base name
func (ps *PrinterService) lookup(name string) (*discovery.MonitoredPort, error) {
	if mp, ok := ps.monitor.Get(name); ok {
		return mp, nil
	}
	for _, mp := range ps.monitor.Ports() {
		if portName(mp.Info.Path) == name {
			return mp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, name)
}

func (ps *PrinterService) view(mp *discovery.MonitoredPort) *PrinterView {
	return &PrinterView{
		Name:   portName(mp.Info.Path),
		Port:   mp.Info,
		Status: mp.Connection.Status(),
	}
}

// portName is the URL-safe name of a port: its base name.
func portName(path string) string {
	return filepath.Base(path)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
