// 📁 internal/discovery/monitor.go - Port Monitor
package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"printer-service/internal/printer"
)

// PortLister produces the current set of serial ports
type PortLister interface {
	ScanAll(ctx context.Context) ([]*SerialPort, error)
}

// ConnectionFactory builds the Connection for a newly seen port
type ConnectionFactory func(path string) *printer.Connection

// PortListener is told about ports entering and leaving the monitor.
// PortAdded runs before the connect sequence starts so listeners can
// subscribe to the connection first.
type PortListener interface {
	PortAdded(port *SerialPort, conn *printer.Connection)
	PortRemoved(path string)
}

// MonitorConfig holds port monitor settings
type MonitorConfig struct {
	ScanInterval          time.Duration
	MaxConcurrentConnects int64
	AutoConnect           bool
}

// MonitoredPort is a port known to the monitor and its Connection
type MonitoredPort struct {
	Info       *SerialPort
	Connection *printer.Connection
	FirstSeen  time.Time
}

// Monitor polls the serial ports and keeps one Connection per port
type Monitor struct {
	lister  PortLister
	factory ConnectionFactory
	config  MonitorConfig
	sem     *semaphore.Weighted
	logger  *zap.Logger

	mu        sync.RWMutex
	ports     map[string]*MonitoredPort
	listeners []PortListener
	lastScan  time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewMonitor creates a port monitor
func NewMonitor(lister PortLister, factory ConnectionFactory, config MonitorConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 5 * time.Second
	}
	if config.MaxConcurrentConnects < 1 {
		config.MaxConcurrentConnects = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		lister:  lister,
		factory: factory,
		config:  config,
		sem:     semaphore.NewWeighted(config.MaxConcurrentConnects),
		logger:  logger.With(zap.String("component", "port-monitor")),
		ports:   make(map[string]*MonitoredPort),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddListener registers a port listener
func (m *Monitor) AddListener(l PortListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Run scans immediately and then every ScanInterval until ctx ends, after
// which every Connection is closed.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.ScanInterval)
	defer ticker.Stop()

	m.logger.Info("Port monitor started", zap.Duration("interval", m.config.ScanInterval))

	for {
		if _, _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("Port scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			m.Close()
			m.logger.Info("Port monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scan lists the ports once and applies the difference: new ports get a
// Connection (connected in the background when AutoConnect is set) and
// vanished ports are closed and dropped.
func (m *Monitor) Scan(ctx context.Context) (added, removed []string, err error) {
	current, err := m.lister.ScanAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]*SerialPort, len(current))
	for _, p := range current {
		seen[p.Path] = p
	}

	var (
		newPorts  []*MonitoredPort
		gonePorts []*MonitoredPort
	)

	m.mu.Lock()
	for path, mp := range m.ports {
		if _, ok := seen[path]; !ok {
			gonePorts = append(gonePorts, mp)
			delete(m.ports, path)
		}
	}
	now := time.Now()
	for path, info := range seen {
		if _, ok := m.ports[path]; ok {
			continue
		}
		mp := &MonitoredPort{
			Info:       info,
			Connection: m.factory(path),
			FirstSeen:  now,
		}
		m.ports[path] = mp
		newPorts = append(newPorts, mp)
	}
	listeners := append([]PortListener(nil), m.listeners...)
	m.lastScan = now
	m.mu.Unlock()

	sort.Slice(newPorts, func(i, j int) bool { return newPorts[i].Info.Path < newPorts[j].Info.Path })
	sort.Slice(gonePorts, func(i, j int) bool { return gonePorts[i].Info.Path < gonePorts[j].Info.Path })

	for _, mp := range gonePorts {
		path := mp.Info.Path
		if err := mp.Connection.Close(); err != nil {
			m.logger.Warn("Failed to close vanished port", zap.String("port", path), zap.Error(err))
		}
		m.logger.Info("Port removed", zap.String("port", path))
		for _, l := range listeners {
			l.PortRemoved(path)
		}
		removed = append(removed, path)
	}

	for _, mp := range newPorts {
		m.logger.Info("Port added",
			zap.String("port", mp.Info.Path),
			zap.Bool("usb", mp.Info.IsUSB),
			zap.String("board", mp.Info.Board),
		)
		for _, l := range listeners {
			l.PortAdded(mp.Info, mp.Connection)
		}
		if m.config.AutoConnect {
			m.connect(mp.Connection)
		}
		added = append(added, mp.Info.Path)
	}

	return added, removed, nil
}

// connect runs the connect sequence in a worker, at most
// MaxConcurrentConnects probing at once.
func (m *Monitor) connect(conn *printer.Connection) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()

		if err := m.sem.Acquire(m.ctx, 1); err != nil {
			return
		}
		defer m.sem.Release(1)

		if mp, ok := m.Get(conn.Port()); !ok || mp.Connection != conn {
			return
		}

		if err := conn.ConnectContext(m.ctx); err != nil && m.ctx.Err() == nil {
			m.logger.Info("Printer not detected",
				zap.String("port", conn.Port()),
				zap.Error(err),
			)
		}
	}()
}

// Get returns the monitored port at path
func (m *Monitor) Get(path string) (*MonitoredPort, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.ports[path]
	return mp, ok
}

// LastScan returns when the last successful scan finished, zero before the first.
func (m *Monitor) LastScan() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastScan
}

// Ports returns the monitored ports ordered by path
func (m *Monitor) Ports() []*MonitoredPort {
	m.mu.RLock()
	result := make([]*MonitoredPort, 0, len(m.ports))
	for _, mp := range m.ports {
		result = append(result, mp)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Info.Path < result[j].Info.Path })
	return result
}

// Close stops connect workers, then closes and drops every Connection.
func (m *Monitor) Close() {
	m.cancel()

	m.mu.Lock()
	ports := m.ports
	m.ports = make(map[string]*MonitoredPort)
	listeners := append([]PortListener(nil), m.listeners...)
	m.mu.Unlock()

	for path, mp := range ports {
		if err := mp.Connection.Close(); err != nil {
			m.logger.Warn("Failed to close port", zap.String("port", path), zap.Error(err))
		}
		for _, l := range listeners {
			l.PortRemoved(path)
		}
	}

	m.workers.Wait()
}
