package printer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/protocol"
)

const simPort = "/dev/ttySIM0"

// simPrinter is an in-memory Marlin board behind the Transport interface.
type simPrinter struct {
	mu          sync.Mutex
	bitrate     int
	answerAt    int
	answerPolls bool
	autoOk      bool
	bootloader  bool
	readTimeout time.Duration
	lines       []string
	raw         []byte
	writes      []string
	bitrates    []int
	closed      bool
	opens       int
	failPrefix  string
	writeErrs   []error
	notify      chan struct{}
}

func newSim(answerAt int) *simPrinter {
	return &simPrinter{
		answerAt: answerAt,
		notify:   make(chan struct{}, 1),
	}
}

func (s *simPrinter) opener() protocol.Opener {
	return func(cfg *protocol.SerialConfig, _ *zap.Logger) (protocol.Transport, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bitrate = cfg.BaudRate
		s.readTimeout = cfg.ReadTimeout
		s.closed = false
		s.opens++
		return s, nil
	}
}

func (s *simPrinter) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// push queues reply lines for the host to read.
func (s *simPrinter) push(lines ...string) {
	s.mu.Lock()
	s.lines = append(s.lines, lines...)
	s.mu.Unlock()
	s.signal()
}

// failWrites makes the next writes starting with prefix return errs in turn.
func (s *simPrinter) failWrites(prefix string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPrefix = prefix
	s.writeErrs = errs
}

func (s *simPrinter) wait(ctx context.Context) bool {
	s.mu.Lock()
	timeout := s.readTimeout
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.notify:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *simPrinter) ReadLine(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, protocol.ErrReadFailed
		}
		if len(s.lines) > 0 {
			line := s.lines[0]
			s.lines = s.lines[1:]
			s.mu.Unlock()
			return []byte(line), nil
		}
		s.mu.Unlock()

		if !s.wait(ctx) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
	}
}

func (s *simPrinter) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, protocol.ErrReadFailed
		}
		if len(s.raw) > 0 {
			n := min(maxBytes, len(s.raw))
			out := append([]byte(nil), s.raw[:n]...)
			s.raw = s.raw[n:]
			s.mu.Unlock()
			return out, nil
		}
		s.mu.Unlock()

		if !s.wait(ctx) {
			return nil, ctx.Err()
		}
	}
}

func (s *simPrinter) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return protocol.ErrWriteFailed
	}
	if len(s.writeErrs) > 0 && strings.HasPrefix(string(data), s.failPrefix) {
		err := s.writeErrs[0]
		s.writeErrs = s.writeErrs[1:]
		s.mu.Unlock()
		return err
	}
	s.writes = append(s.writes, string(data))
	s.respondLocked(data)
	s.mu.Unlock()

	s.signal()
	return nil
}

func (s *simPrinter) respondLocked(data []byte) {
	if s.bootloader && s.bitrate == protocol.BootloaderBitrate {
		seq, body, ok, err := protocol.DecodeMessage(data)
		if err != nil || !ok {
			return
		}
		switch body[0] {
		case 0x01:
			sig := "AVRISP_2"
			s.raw = append(s.raw, protocol.EncodeMessage(seq, append([]byte{0x01, 0x00, byte(len(sig))}, sig...))...)
		case 0x11:
			s.raw = append(s.raw, protocol.EncodeMessage(seq, []byte{0x11, 0x00})...)
			s.bootloader = false
		}
		return
	}

	if s.bitrate != s.answerAt {
		return
	}

	text := strings.TrimSuffix(string(data), "\n")
	var tool int
	switch {
	case text == "M105":
		s.lines = append(s.lines, "ok T:20.0 /0.0 B:20.0 /0.0 @:0 B@:0")
	case strings.HasPrefix(text, "M105 T"):
		if s.answerPolls {
			fmt.Sscanf(text, "M105 T%d", &tool)
			s.lines = append(s.lines, fmt.Sprintf("ok T:%d.0 /210.0 B:60.0 /60.0 @:0 B@:0", 200+tool))
		}
	case text == "":
	default:
		if s.autoOk {
			s.lines = append(s.lines, "ok")
		}
	}
}

func (s *simPrinter) SetBitrate(bitrate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitrate = bitrate
	s.bitrates = append(s.bitrates, bitrate)
	s.lines = nil
	return nil
}

func (s *simPrinter) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

func (s *simPrinter) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *simPrinter) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *simPrinter) allWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// frames returns the numbered program lines written so far.
func (s *simPrinter) frames() []string {
	var out []string
	for _, w := range s.allWrites() {
		if strings.HasPrefix(w, "N") {
			out = append(out, w)
		}
	}
	return out
}

// directs returns unnumbered writes other than temperature requests.
func (s *simPrinter) directs() []string {
	var out []string
	for _, w := range s.allWrites() {
		if !strings.HasPrefix(w, "N") && !strings.HasPrefix(w, "M105") && w != "\n" {
			out = append(out, strings.TrimSuffix(w, "\n"))
		}
	}
	return out
}

func testOptions(sim *simPrinter) Options {
	opts := DefaultOptions()
	opts.ReadTimeout = 20 * time.Millisecond
	opts.ProbeReadTimeout = 20 * time.Millisecond
	opts.ProbeWindow = 300 * time.Millisecond
	opts.BootloaderWait = 0
	opts.BootloaderProbe = false
	opts.OkSilenceTimeout = time.Hour
	opts.TelemetryInterval = time.Hour
	opts.WriteRetryDelay = 10 * time.Millisecond
	opts.CandidateBitrates = []int{250000, 115200}
	opts.Opener = sim.opener()
	return opts
}

// recorder collects observer callbacks.
type recorder struct {
	mu       sync.Mutex
	states   []State
	progress []float64
	temps    map[int]float64
	errs     []ErrorKind
	details  []string
}

func (r *recorder) observer() Observer {
	return ObserverFuncs{
		StateChanged: func(_ string, s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		Progress: func(_ string, p float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, p)
		},
		Temperature: func(_ string, sensor int, v float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.temps == nil {
				r.temps = make(map[int]float64)
			}
			r.temps[sensor] = v
		},
		Error: func(_ string, kind ErrorKind, detail string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, kind)
			r.details = append(r.details, detail)
		},
	}
}

func (r *recorder) hasError(kind ErrorKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.errs {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *recorder) progressValues() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

func newTestConnection(t *testing.T, opts Options) (*Connection, *recorder) {
	t.Helper()
	c := NewConnection(simPort, opts, zaptest.NewLogger(t))
	rec := &recorder{}
	c.Subscribe(rec.observer())
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

// connectSim returns a connection that has probed successfully against sim.
func connectSim(t *testing.T, sim *simPrinter, opts Options) (*Connection, *recorder) {
	t.Helper()
	c, rec := newTestConnection(t, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.ConnectContext(ctx); err != nil {
		t.Fatalf("ConnectContext() error: %v", err)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state after connect = %s, want idle", got)
	}
	return c, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitFrames(t *testing.T, sim *simPrinter, n int) []string {
	t.Helper()
	var frames []string
	waitFor(t, fmt.Sprintf("%d program lines", n), func() bool {
		frames = sim.frames()
		return len(frames) >= n
	})
	return frames
}

func waitState(t *testing.T, c *Connection, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return c.State() == want })
}
