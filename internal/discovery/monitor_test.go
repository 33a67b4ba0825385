package discovery

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/printer"
	"printer-service/internal/protocol"
)

var errNoDevice = errors.New("no such device")

type fakeLister struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeLister) set(paths ...string) {
	f.mu.Lock()
	f.paths = paths
	f.mu.Unlock()
}

func (f *fakeLister) ScanAll(ctx context.Context) ([]*SerialPort, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ports := make([]*SerialPort, 0, len(f.paths))
	for _, p := range f.paths {
		ports = append(ports, &SerialPort{Path: p, Source: "fake"})
	}
	return ports, nil
}

type portRecorder struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (r *portRecorder) PortAdded(port *SerialPort, conn *printer.Connection) {
	r.mu.Lock()
	r.added = append(r.added, port.Path)
	r.mu.Unlock()
}

func (r *portRecorder) PortRemoved(path string) {
	r.mu.Lock()
	r.removed = append(r.removed, path)
	r.mu.Unlock()
}

func (r *portRecorder) snapshot() (added, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.added...), append([]string(nil), r.removed...)
}

func factoryWithOpener(t *testing.T, opener protocol.Opener) ConnectionFactory {
	logger := zaptest.NewLogger(t)
	return func(path string) *printer.Connection {
		opts := printer.DefaultOptions()
		opts.BootloaderProbe = false
		opts.Opener = opener
		return printer.NewConnection(path, opts, logger)
	}
}

func countingOpener(opens *atomic.Int32) protocol.Opener {
	return func(config *protocol.SerialConfig, logger *zap.Logger) (protocol.Transport, error) {
		opens.Add(1)
		return nil, errNoDevice
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMonitorScanDiff(t *testing.T) {
	var opens atomic.Int32
	lister := &fakeLister{}
	rec := &portRecorder{}

	m := NewMonitor(lister, factoryWithOpener(t, countingOpener(&opens)), MonitorConfig{
		MaxConcurrentConnects: 2,
		AutoConnect:           true,
	}, zaptest.NewLogger(t))
	m.AddListener(rec)
	defer m.Close()

	if !m.LastScan().IsZero() {
		t.Error("LastScan() set before any scan")
	}

	lister.set("/dev/ttyUSB0", "/dev/ttyACM0")
	added, removed, err := m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if want := []string{"/dev/ttyACM0", "/dev/ttyUSB0"}; !reflect.DeepEqual(added, want) || len(removed) != 0 {
		t.Fatalf("Scan() = %v, %v, want added %v", added, removed, want)
	}

	if m.LastScan().IsZero() {
		t.Error("LastScan() still zero after a scan")
	}

	waitUntil(t, "both ports to be probed", func() bool { return opens.Load() == 2 })
	for _, mp := range m.Ports() {
		waitUntil(t, mp.Info.Path+" to settle", func() bool {
			return mp.Connection.State() == printer.StateDisconnected
		})
	}

	lister.set("/dev/ttyUSB0")
	added, removed, err = m.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(added) != 0 || !reflect.DeepEqual(removed, []string{"/dev/ttyACM0"}) {
		t.Fatalf("Scan() = %v, %v, want removed [/dev/ttyACM0]", added, removed)
	}
	if _, ok := m.Get("/dev/ttyACM0"); ok {
		t.Error("vanished port still monitored")
	}
	if _, ok := m.Get("/dev/ttyUSB0"); !ok {
		t.Error("remaining port dropped")
	}

	// an unchanged listing is a no-op
	added, removed, _ = m.Scan(context.Background())
	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("unchanged Scan() = %v, %v", added, removed)
	}
	if got := opens.Load(); got != 2 {
		t.Errorf("opens = %d, want 2", got)
	}

	gotAdded, gotRemoved := rec.snapshot()
	if len(gotAdded) != 2 || !reflect.DeepEqual(gotRemoved, []string{"/dev/ttyACM0"}) {
		t.Errorf("listener saw added %v removed %v", gotAdded, gotRemoved)
	}
}

func TestMonitorWithoutAutoConnect(t *testing.T) {
	var opens atomic.Int32
	lister := &fakeLister{paths: []string{"/dev/ttyUSB0"}}

	m := NewMonitor(lister, factoryWithOpener(t, countingOpener(&opens)), MonitorConfig{}, nil)
	defer m.Close()

	if _, _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	mp, ok := m.Get("/dev/ttyUSB0")
	if !ok {
		t.Fatal("port not monitored")
	}
	if mp.Connection.State() != printer.StateDisconnected || opens.Load() != 0 {
		t.Errorf("state = %s opens = %d, want untouched connection", mp.Connection.State(), opens.Load())
	}
}

func TestMonitorBoundsConcurrentConnects(t *testing.T) {
	var inFlight, peak, opens atomic.Int32
	release := make(chan struct{})

	opener := func(config *protocol.SerialConfig, logger *zap.Logger) (protocol.Transport, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		opens.Add(1)
		<-release
		inFlight.Add(-1)
		return nil, errNoDevice
	}

	lister := &fakeLister{paths: []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2", "/dev/ttyUSB3", "/dev/ttyUSB4"}}
	m := NewMonitor(lister, factoryWithOpener(t, opener), MonitorConfig{
		MaxConcurrentConnects: 2,
		AutoConnect:           true,
	}, zaptest.NewLogger(t))

	if _, _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	waitUntil(t, "two probes in flight", func() bool { return inFlight.Load() == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := peak.Load(); got != 2 {
		t.Errorf("peak concurrent probes = %d, want 2", got)
	}

	close(release)
	waitUntil(t, "every port to be probed", func() bool { return opens.Load() == 5 })
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent probes = %d, want at most 2", got)
	}

	m.Close()
	if ports := m.Ports(); len(ports) != 0 {
		t.Errorf("Ports() after Close = %d, want 0", len(ports))
	}
}

func TestMonitorScanError(t *testing.T) {
	lister := &fakeLister{paths: []string{"/dev/ttyUSB0"}}
	m := NewMonitor(lister, factoryWithOpener(t, countingOpener(new(atomic.Int32))), MonitorConfig{}, nil)
	defer m.Close()

	if _, _, err := m.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	lister.err = errors.New("enumeration failed")
	if _, _, err := m.Scan(context.Background()); err == nil {
		t.Fatal("Scan() error = nil, want lister failure")
	}
	if _, ok := m.Get("/dev/ttyUSB0"); !ok {
		t.Error("failed scan dropped a known port")
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	lister := &fakeLister{paths: []string{"/dev/ttyUSB0"}}
	rec := &portRecorder{}
	m := NewMonitor(lister, factoryWithOpener(t, countingOpener(new(atomic.Int32))), MonitorConfig{
		ScanInterval: 10 * time.Millisecond,
	}, nil)
	m.AddListener(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitUntil(t, "first scan", func() bool {
		added, _ := rec.snapshot()
		return len(added) == 1
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, removed := rec.snapshot(); !reflect.DeepEqual(removed, []string{"/dev/ttyUSB0"}) {
		t.Errorf("removed on shutdown = %v", removed)
	}
}
