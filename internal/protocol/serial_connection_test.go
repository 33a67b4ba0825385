package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap/zaptest"
)

// scriptedPort feeds Read from a list of chunks; an exhausted script behaves
// like a read timeout.
type scriptedPort struct {
	serial.Port

	mu       sync.Mutex
	chunks   [][]byte
	written  []byte
	mode     *serial.Mode
	timeout  time.Duration
	closed   bool
	writeErr error
	block    chan struct{}
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(buf, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if len(p.chunks[0]) == 0 {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *scriptedPort) Write(data []byte) (int, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *scriptedPort) SetMode(mode *serial.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
	return nil
}

func (p *scriptedPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func newTestTransport(t *testing.T, port *scriptedPort) *SerialTransport {
	cfg := DefaultSerialConfig("/dev/ttyTEST0", 115200)
	cfg.ReadTimeout = 20 * time.Millisecond
	cfg.WriteTimeout = 50 * time.Millisecond
	return newSerialTransport(port, cfg, zaptest.NewLogger(t))
}

func TestReadLineSplitsChunks(t *testing.T) {
	port := &scriptedPort{chunks: [][]byte{
		[]byte("ok T:21"),
		[]byte(".5 /0.0\r\nok\nec"),
		[]byte("ho:busy\n"),
	}}
	st := newTestTransport(t, port)
	ctx := context.Background()

	want := []string{"ok T:21.5 /0.0", "ok", "echo:busy"}
	for _, w := range want {
		line, err := st.ReadLine(ctx)
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if string(line) != w {
			t.Errorf("ReadLine = %q, want %q", line, w)
		}
	}

	line, err := st.ReadLine(ctx)
	if err != nil || line != nil {
		t.Errorf("ReadLine on silence = %q, %v; want nil, nil", line, err)
	}
}

func TestReadLineAfterClose(t *testing.T) {
	st := newTestTransport(t, &scriptedPort{})
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := st.ReadLine(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("ReadLine after close = %v, want ErrNotOpen", err)
	}
}

func TestWriteErrors(t *testing.T) {
	port := &scriptedPort{writeErr: errors.New("device gone")}
	st := newTestTransport(t, port)
	if err := st.Write(context.Background(), []byte("M105\n")); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Write = %v, want ErrWriteFailed", err)
	}

	block := make(chan struct{})
	defer close(block)
	st = newTestTransport(t, &scriptedPort{block: block})
	if err := st.Write(context.Background(), []byte("M105\n")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write = %v, want ErrWriteTimeout", err)
	}
}

func TestWriteAfterTimeoutIsNotRepeated(t *testing.T) {
	block := make(chan struct{})
	port := &scriptedPort{block: block}
	st := newTestTransport(t, port)
	ctx := context.Background()

	if err := st.Write(ctx, []byte("G1 X5\n")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Write = %v, want ErrWriteTimeout", err)
	}
	// still stuck: the retry times out without a second port write
	if err := st.Write(ctx, []byte("G1 X5\n")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("retry while blocked = %v, want ErrWriteTimeout", err)
	}

	close(block)
	if err := st.Write(ctx, []byte("G1 X5\n")); err != nil {
		t.Fatalf("retry after the late write completed = %v", err)
	}
	if err := st.Write(ctx, []byte("M105\n")); err != nil {
		t.Fatalf("Write = %v", err)
	}

	port.mu.Lock()
	defer port.mu.Unlock()
	if got, want := string(port.written), "G1 X5\nM105\n"; got != want {
		t.Errorf("bytes on the wire = %q, want %q", got, want)
	}
}

func TestWriteOtherDataAfterTimeout(t *testing.T) {
	block := make(chan struct{})
	port := &scriptedPort{block: block}
	st := newTestTransport(t, port)
	ctx := context.Background()

	if err := st.Write(ctx, []byte("N1G28*18\n")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Write = %v, want ErrWriteTimeout", err)
	}
	close(block)
	if err := st.Write(ctx, []byte("M112\n")); err != nil {
		t.Fatalf("Write = %v", err)
	}

	port.mu.Lock()
	defer port.mu.Unlock()
	if got, want := string(port.written), "N1G28*18\nM112\n"; got != want {
		t.Errorf("bytes on the wire = %q, want %q", got, want)
	}
}

func TestReadLineHonoursCancel(t *testing.T) {
	port := &scriptedPort{}
	st := newTestTransport(t, port)
	if err := st.SetReadTimeout(time.Hour); err != nil {
		t.Fatalf("SetReadTimeout: %v", err)
	}
	port.mu.Lock()
	if port.timeout != readPollInterval {
		t.Errorf("port read timeout = %v, want %v", port.timeout, readPollInterval)
	}
	port.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := st.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadLine = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ReadLine returned after %v", elapsed)
	}
}

func TestSetBitrate(t *testing.T) {
	port := &scriptedPort{}
	st := newTestTransport(t, port)
	if err := st.SetBitrate(250000); err != nil {
		t.Fatalf("SetBitrate: %v", err)
	}
	if port.mode == nil || port.mode.BaudRate != 250000 || port.mode.DataBits != 8 {
		t.Errorf("mode = %+v", port.mode)
	}
	if port.mode.Parity != serial.NoParity {
		t.Errorf("parity = %v, want none", port.mode.Parity)
	}
}
