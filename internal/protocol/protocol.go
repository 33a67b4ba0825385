// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOpenFailed   = errors.New("open failed")
	ErrReadFailed   = errors.New("read failed")
	ErrWriteTimeout = errors.New("write timeout")
	ErrWriteFailed  = errors.New("write failed")
	ErrNotOpen      = errors.New("transport not open")
)

// Transport is a line-oriented link to a printer.
type Transport interface {
	// ReadLine returns the next line without its terminator. A nil line with a
	// nil error means the read timeout elapsed. It returns soon after ctx ends.
	ReadLine(ctx context.Context) ([]byte, error)

	// Read returns whatever raw bytes are available, up to maxBytes.
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	Write(ctx context.Context, data []byte) error

	SetBitrate(bitrate int) error
	SetReadTimeout(timeout time.Duration) error

	Close() error
}

// Opener opens a Transport for the given configuration.
type Opener func(config *SerialConfig, logger *zap.Logger) (Transport, error)
