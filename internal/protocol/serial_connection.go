// internal/protocol/serial_connection.go
package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	readChunkSize = 256

	// readPollInterval bounds a single port read so ReadLine notices a
	// cancelled context well before its own timeout.
	readPollInterval = 100 * time.Millisecond
)

// SerialTransport implements Transport on top of go.bug.st/serial
type SerialTransport struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex

	readMu      sync.Mutex
	pending     []byte
	buf         []byte
	readTimeout time.Duration

	// writeMu guards the write that outlived its timeout, if any. Its bytes
	// may still reach the wire, so nothing else is written until it settles.
	writeMu      sync.Mutex
	inflight     chan error
	inflightData []byte
}

var _ Transport = (*SerialTransport)(nil)

// OpenSerial opens the configured serial port. It satisfies Opener.
func OpenSerial(config *SerialConfig, logger *zap.Logger) (Transport, error) {
	if config == nil || config.Port == "" {
		return nil, fmt.Errorf("%w: port is required", ErrOpenFailed)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger = logger.With(
		zap.String("protocol", "serial"),
		zap.String("port", config.Port),
	)

	logger.Info("Opening serial port", zap.Int("baud_rate", config.BaudRate))

	port, err := serial.Open(config.Port, modeFor(config, config.BaudRate))
	if err != nil {
		logger.Error("Failed to open serial port", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailed, config.Port, err)
	}

	st := newSerialTransport(port, config, logger)
	if err := st.SetReadTimeout(config.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	logger.Info("Serial port opened successfully")
	return st, nil
}

func newSerialTransport(port serial.Port, config *SerialConfig, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config:      config,
		port:        port,
		logger:      logger,
		buf:         make([]byte, readChunkSize),
		readTimeout: config.ReadTimeout,
	}
}

func modeFor(config *SerialConfig, baudRate int) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: config.DataBits,
		StopBits: serial.OneStopBit,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

func (st *SerialTransport) current() serial.Port {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.port
}

// ReadLine reads until a newline or until the read timeout elapses.
func (st *SerialTransport) ReadLine(ctx context.Context) ([]byte, error) {
	st.readMu.Lock()
	defer st.readMu.Unlock()

	port := st.current()
	if port == nil {
		return nil, ErrNotOpen
	}

	deadline := time.Now().Add(st.readTimeout)
	for {
		if i := bytes.IndexByte(st.pending, '\n'); i >= 0 {
			line := bytes.TrimRight(st.pending[:i], "\r")
			out := make([]byte, len(line))
			copy(out, line)
			st.pending = st.pending[i+1:]
			return out, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		n, err := port.Read(st.buf)
		if err != nil {
			st.logger.Error("Serial read failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
		if n == 0 {
			continue
		}
		st.pending = append(st.pending, st.buf[:n]...)
	}
}

// Read returns buffered bytes first, then at most one chunk from the port.
func (st *SerialTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	st.readMu.Lock()
	defer st.readMu.Unlock()

	port := st.current()
	if port == nil {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(st.pending) == 0 {
		n, err := port.Read(st.buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
		st.pending = append(st.pending, st.buf[:n]...)
	}

	n := min(maxBytes, len(st.pending))
	out := make([]byte, n)
	copy(out, st.pending[:n])
	st.pending = st.pending[n:]
	return out, nil
}

// Write writes data, giving up after the configured write timeout. A write
// that timed out keeps going in the background; the next Write waits for it
// first, and reports success without writing again when it carried the same
// bytes and completed.
func (st *SerialTransport) Write(ctx context.Context, data []byte) error {
	port := st.current()
	if port == nil {
		return ErrNotOpen
	}

	if st.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.config.WriteTimeout)
		defer cancel()
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	if st.inflight != nil {
		select {
		case err := <-st.inflight:
			same := bytes.Equal(st.inflightData, data)
			st.inflight, st.inflightData = nil, nil
			if same && err == nil {
				st.logger.Debug("Timed out write completed late", zap.ByteString("data", bytes.TrimSpace(data)))
				return nil
			}
		case <-ctx.Done():
			return writeAborted(ctx)
		}
	}

	buf := append([]byte(nil), data...)
	done := make(chan error, 1)
	go func() {
		n, err := port.Write(buf)
		if err == nil && n != len(buf) {
			err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(buf))
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			st.logger.Error("Serial write failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		st.logger.Debug("Serial write completed", zap.ByteString("data", bytes.TrimSpace(data)))
		return nil
	case <-ctx.Done():
		st.inflight, st.inflightData = done, buf
		return writeAborted(ctx)
	}
}

func writeAborted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWriteTimeout
	}
	return ctx.Err()
}

// SetBitrate reconfigures the open port.
func (st *SerialTransport) SetBitrate(bitrate int) error {
	port := st.current()
	if port == nil {
		return ErrNotOpen
	}
	if err := port.SetMode(modeFor(st.config, bitrate)); err != nil {
		return fmt.Errorf("failed to set bitrate %d: %w", bitrate, err)
	}

	st.readMu.Lock()
	st.pending = st.pending[:0]
	st.readMu.Unlock()

	st.logger.Debug("Bitrate changed", zap.Int("baud_rate", bitrate))
	return nil
}

// SetReadTimeout changes how long ReadLine waits for a complete line.
func (st *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	port := st.current()
	if port == nil {
		return ErrNotOpen
	}
	portTimeout := timeout
	if portTimeout <= 0 || portTimeout > readPollInterval {
		portTimeout = readPollInterval
	}
	if err := port.SetReadTimeout(portTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	st.readMu.Lock()
	st.readTimeout = timeout
	st.readMu.Unlock()
	return nil
}

// Close closes the serial port. Closing twice is a no-op.
func (st *SerialTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.port == nil {
		return nil
	}

	if err := st.port.Close(); err != nil {
		st.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	st.port = nil
	st.logger.Info("Serial port closed successfully")
	return nil
}
