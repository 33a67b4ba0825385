// 📁 internal/discovery/scanner.go - Main Scanner Interface
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// PortScanner interface - Strategy Pattern
type PortScanner interface {
	Scan(ctx context.Context) ([]*SerialPort, error)
	GetScannerType() string
	IsAvailable() bool
}

// SerialPort represents a discovered serial device node
type SerialPort struct {
	Path         string `json:"path"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	Board        string `json:"board,omitempty"`
	Source       string `json:"source"`
}

// merge fills empty fields of p from other.
func (p *SerialPort) merge(other *SerialPort) {
	if other.IsUSB {
		p.IsUSB = true
	}
	if p.VID == "" {
		p.VID = other.VID
	}
	if p.PID == "" {
		p.PID = other.PID
	}
	if p.SerialNumber == "" {
		p.SerialNumber = other.SerialNumber
	}
	if p.Product == "" {
		p.Product = other.Product
	}
	if p.Board == "" {
		p.Board = other.Board
	}
}

// ScannerManager manages all port scanners - Facade Pattern
type ScannerManager struct {
	scanners map[string]PortScanner
	order    []string
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScannerManager{
		scanners: make(map[string]PortScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a port scanner. Scanners registered first win
// when two report the same path with conflicting details.
func (sm *ScannerManager) RegisterScanner(scanner PortScanner) {
	scannerType := scanner.GetScannerType()
	if _, exists := sm.scanners[scannerType]; !exists {
		sm.order = append(sm.order, scannerType)
	}
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner and merges the results by path.
// It fails only when every available scanner failed.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*SerialPort, error) {
	byPath := make(map[string]*SerialPort)
	var (
		ran, failed int
		lastErr     error
	)

	for _, scannerType := range sm.order {
		scanner := sm.scanners[scannerType]
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}
		ran++

		ports, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			failed++
			lastErr = err
			continue
		}

		for _, port := range ports {
			if existing, ok := byPath[port.Path]; ok {
				existing.merge(port)
				continue
			}
			cp := *port
			byPath[port.Path] = &cp
		}

		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("ports_found", len(ports)),
		)
	}

	if ran > 0 && failed == ran {
		return nil, fmt.Errorf("all scanners failed: %w", lastErr)
	}

	result := make([]*SerialPort, 0, len(byPath))
	for _, port := range byPath {
		result = append(result, port)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ScanByType scans specific scanner type
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*SerialPort, error) {
	scanner, exists := sm.scanners[scannerType]
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for _, scannerType := range sm.order {
		if sm.scanners[scannerType].IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}
