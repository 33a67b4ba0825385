// 📁 internal/discovery/usb/scanner.go - USB Detail Scanner
package usb

import (
	"context"
	"fmt"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"printer-service/internal/discovery"
)

var getDetailedPortsList = enumerator.GetDetailedPortsList

// Scanner reports USB serial ports together with their descriptor details
type Scanner struct {
	logger      *zap.Logger
	knownBoards *BoardDatabase
	listPorts   func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logger:      logger,
		knownBoards: NewBoardDatabase(),
		listPorts:   getDetailedPortsList,
	}
}

// GetScannerType returns the scanner type
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks if USB enumeration is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists USB serial ports with VID, PID, serial number and product
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.SerialPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("enumerator error: %w", err)
	}

	var ports []*discovery.SerialPort
	for _, d := range details {
		if !d.IsUSB {
			continue
		}

		vid, pid := normalizeID(d.VID), normalizeID(d.PID)
		port := &discovery.SerialPort{
			Path:         d.Name,
			IsUSB:        true,
			VID:          vid,
			PID:          pid,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
			Board:        s.knownBoards.Describe(vid, pid),
			Source:       s.GetScannerType(),
		}

		if s.knownBoards.IsKnownVendor(vid) {
			s.logger.Debug("Found known board",
				zap.String("path", port.Path),
				zap.String("vendor_id", vid),
				zap.String("product_id", pid),
				zap.String("board", port.Board),
			)
		}
		ports = append(ports, port)
	}

	return ports, nil
}
