// 📁 internal/discovery/serial/scanner.go - Serial Scanner Implementation
package serial

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"printer-service/internal/discovery"
)

// Scanner lists serial device nodes that may host a printer
type Scanner struct {
	logger *zap.Logger
	config *Config

	glob         func(pattern string) ([]string, error)
	lstat        func(name string) (os.FileInfo, error)
	listRegistry func() ([]RegistryEntry, error)
}

// Config for serial scanner
type Config struct {
	Patterns     []string `json:"patterns"`
	ExcludeNames []string `json:"exclude_names"`
}

// RegistryEntry is one value of the Windows SERIALCOMM key
type RegistryEntry struct {
	Name string
	Port string
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	if len(config.Patterns) == 0 {
		config.Patterns = DefaultPatterns()
	}
	if len(config.ExcludeNames) == 0 {
		config.ExcludeNames = []string{"Bluetooth"}
	}

	return &Scanner{
		logger:       logger,
		config:       config,
		glob:         filepath.Glob,
		lstat:        os.Lstat,
		listRegistry: listRegistryPorts,
	}
}

// DefaultPatterns returns the device globs searched on POSIX systems
func DefaultPatterns() []string {
	return []string{
		"/dev/ttyUSB*",
		"/dev/ttyACM*",
		"/dev/cu.usb*",
		"/dev/serial/by-id/*",
	}
}

// GetScannerType returns the scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists the serial ports currently present
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.SerialPort, error) {
	if runtime.GOOS == "windows" {
		return s.scanRegistry()
	}
	return s.scanGlobs(ctx)
}

func (s *Scanner) scanGlobs(ctx context.Context) ([]*discovery.SerialPort, error) {
	seen := make(map[string]bool)
	var ports []*discovery.SerialPort

	for _, pattern := range s.config.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := s.glob(pattern)
		if err != nil {
			s.logger.Warn("Invalid port pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}

		for _, path := range matches {
			if seen[path] || s.excluded(path) {
				continue
			}

			info, err := s.lstat(path)
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				s.logger.Debug("Skipping symlinked port", zap.String("path", path))
				continue
			}

			seen[path] = true
			ports = append(ports, &discovery.SerialPort{
				Path:   path,
				Source: s.GetScannerType(),
			})
		}
	}

	return ports, nil
}

func (s *Scanner) scanRegistry() ([]*discovery.SerialPort, error) {
	entries, err := s.listRegistry()
	if err != nil {
		return nil, err
	}

	var ports []*discovery.SerialPort
	for _, entry := range entries {
		if !IsUSBSerialValue(entry.Name) || s.excluded(entry.Port) {
			continue
		}
		ports = append(ports, &discovery.SerialPort{
			Path:   entry.Port,
			IsUSB:  true,
			Source: s.GetScannerType(),
		})
	}
	return ports, nil
}

func (s *Scanner) excluded(path string) bool {
	lower := strings.ToLower(path)
	for _, name := range s.config.ExcludeNames {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// IsUSBSerialValue reports whether a SERIALCOMM value name belongs to a
// USB CDC or virtual COM port driver.
func IsUSBSerialValue(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "USBSER") || strings.Contains(upper, "VCP")
}
