// Package printer drives one Marlin printer over a serial link: bitrate
// probing, the job state machine, the reply listener and telemetry polling.
package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"printer-service/internal/marlin"
	"printer-service/internal/protocol"
	"printer-service/internal/utils"
)

// Connection owns the transport, queue, job and telemetry of one serial port.
type Connection struct {
	port     string
	opts     Options
	logger   *utils.ConnectionLogger
	parser   *marlin.Parser
	queue    *CommandQueue
	errorLog *ErrorLog

	obsMu     sync.RWMutex
	observers []subscription

	// event batches are numbered under mu and delivered in that order
	nextSeq     uint64
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64

	mu        sync.Mutex
	state     State
	transport protocol.Transport
	bitrate   int
	hasError  bool

	cancelRun context.CancelFunc
	done      chan struct{}
	// wake interrupts the listener's read when there is something to write
	wake      chan struct{}
	probed    chan struct{}
	probeErr  error

	// job
	program  []marlin.Payload
	cursor   int
	preload  int
	okGate   bool
	progress float64
	currentZ float64
	job      *utils.JobLogger

	okDeadline time.Time

	// telemetry
	extruderCount    int
	toolTemps        []float64
	toolTargets      []float64
	bedTemp          float64
	bedTarget        float64
	queriedTool      int
	pollIndex        int
	pollPending      bool
	lastPollDeadline time.Time
}

// Status is a point-in-time snapshot of a Connection.
type Status struct {
	Port             string    `json:"port"`
	State            State     `json:"state"`
	Bitrate          int       `json:"bitrate"`
	Progress         float64   `json:"progress"`
	Cursor           int       `json:"cursor"`
	ProgramLength    int       `json:"program_length"`
	JobID            string    `json:"job_id,omitempty"`
	CurrentZ         float64   `json:"current_z"`
	ExtruderCount    int       `json:"extruder_count"`
	ToolTemperatures []float64 `json:"tool_temperatures"`
	ToolTargets      []float64 `json:"tool_targets"`
	BedTemperature   float64   `json:"bed_temperature"`
	BedTarget        float64   `json:"bed_target"`
	HasError         bool      `json:"has_error"`
	QueueLength      int       `json:"queue_length"`
}

// NewConnection creates a disconnected Connection for port.
func NewConnection(port string, opts Options, logger *zap.Logger) *Connection {
	opts = opts.normalize()

	c := &Connection{
		port:          port,
		opts:          opts,
		logger:        utils.NewConnectionLogger(logger, port),
		parser:        marlin.NewParser(opts.FatalErrors),
		queue:         NewCommandQueue(opts.QueueCapacity),
		errorLog:      NewErrorLog(opts.ErrorLogSize),
		state:         StateDisconnected,
		extruderCount: opts.ExtruderCount,
		toolTemps:     make([]float64, opts.ExtruderCount),
		toolTargets:   make([]float64, opts.ExtruderCount),
		wake:          make(chan struct{}, 1),
	}
	c.deliverCond = sync.NewCond(&c.deliverMu)
	return c
}

// Port returns the serial port path identifying the connection.
func (c *Connection) Port() string {
	return c.port
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the connection.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Port:             c.port,
		State:            c.state,
		Bitrate:          c.bitrate,
		Progress:         c.progress,
		Cursor:           c.cursor,
		ProgramLength:    len(c.program),
		CurrentZ:         c.currentZ,
		ExtruderCount:    c.extruderCount,
		ToolTemperatures: append([]float64(nil), c.toolTemps...),
		ToolTargets:      append([]float64(nil), c.toolTargets...),
		BedTemperature:   c.bedTemp,
		BedTarget:        c.bedTarget,
		HasError:         c.hasError,
		QueueLength:      c.queue.Len(),
	}
	if c.job != nil {
		s.JobID = c.job.JobID()
	}
	return s
}

// ErrorLog returns the error lines reported by the printer, oldest first.
func (c *Connection) ErrorLog() []string {
	return c.errorLog.Lines()
}

// Connect starts probing in the background. It is allowed from Disconnected
// and Error.
func (c *Connection) Connect() error {
	_, err := c.startConnect()
	return err
}

// ConnectContext starts probing and waits until it settles or ctx ends. The
// probe keeps running if ctx ends first.
func (c *Connection) ConnectContext(ctx context.Context) error {
	probed, err := c.startConnect()
	if err != nil {
		return err
	}

	select {
	case <-probed:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeErr
}

func (c *Connection) startConnect() (<-chan struct{}, error) {
	var ev events

	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StateError {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: connect while %s", ErrInvalidStateTransition, state)
	}

	if c.cancelRun != nil {
		c.cancelRun()
	}
	prev := c.done
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	c.done = make(chan struct{})
	c.probed = make(chan struct{})
	c.probeErr = nil
	c.hasError = false
	c.setStateLocked(&ev, StateProbing)
	done, probed := c.done, c.probed
	c.unlockAndPublish(ev)
	go c.run(ctx, prev, done, probed)
	return probed, nil
}

func (c *Connection) run(ctx context.Context, prev, done, probed chan struct{}) {
	defer close(done)

	if prev != nil {
		<-prev
	}

	t, bitrate, err := c.probe(ctx)
	if !c.finishProbe(ctx, t, bitrate, err) {
		close(probed)
		return
	}
	close(probed)

	c.listen(ctx, t)
}

// finishProbe moves the connection out of Probing and reports whether the
// listener should start.
func (c *Connection) finishProbe(ctx context.Context, t protocol.Transport, bitrate int, err error) bool {
	var ev events

	c.mu.Lock()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	c.probeErr = err

	if err != nil {
		if ctx.Err() == nil {
			c.setStateLocked(&ev, StateDisconnected)
			ev.err(KindOf(err), err.Error())
		}
		c.unlockAndPublish(ev)

		if t != nil {
			_ = t.Close()
		}
		if ctx.Err() == nil {
			c.logger.Warn("Connection probe failed", zap.Error(err))
		}
		return false
	}

	now := time.Now()
	c.transport = t
	c.bitrate = bitrate
	c.okGate = true
	c.okDeadline = now.Add(c.opts.OkSilenceTimeout)
	c.lastPollDeadline = now
	c.pollPending = false
	c.setStateLocked(&ev, StateIdle)
	c.unlockAndPublish(ev)
	c.logger.Info("Printer connected", zap.Int("bitrate", bitrate))
	return true
}

// Close stops the listener, waits for it, closes the transport and leaves
// the connection Disconnected. It must not be called from an observer.
func (c *Connection) Close() error {
	c.mu.Lock()
	cancel, done := c.cancelRun, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	var ev events
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.cancelRun = nil
	if c.job != nil {
		c.job.Stop("connection closed", nil)
		c.job = nil
	}
	c.program = nil
	c.cursor = 0
	c.preload = 0
	c.queue.Clear()
	c.pollPending = false
	c.setStateLocked(&ev, StateDisconnected)
	c.unlockAndPublish(ev)

	if t != nil {
		if err := t.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// SetExtruderCount resizes the temperature arrays. Allowed while Disconnected
// or Idle.
func (c *Connection) SetExtruderCount(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: extruder count %d", ErrInvalidExtruder, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateDisconnected {
		return fmt.Errorf("%w: set extruder count while %s", ErrInvalidStateTransition, c.state)
	}

	c.extruderCount = n
	c.toolTemps = make([]float64, n)
	c.toolTargets = make([]float64, n)
	c.pollIndex = 0
	c.queriedTool = 0
	return nil
}

func (c *Connection) setStateLocked(ev *events, s State) {
	if c.state == s {
		return
	}
	c.logger.LogStateChange(c.state.String(), s.String())
	c.state = s
	ev.state(s)
}

// failLocked moves a connected printer to Error and detaches the transport
// for the caller to close once the lock is released.
func (c *Connection) failLocked(ev *events, kind ErrorKind, err error) protocol.Transport {
	t := c.transport
	c.transport = nil
	c.hasError = true
	if c.job != nil {
		c.job.Stop("connection error", err)
		c.job = nil
	}
	c.setStateLocked(ev, StateError)
	ev.err(kind, err.Error())
	return t
}

func (c *Connection) fail(kind ErrorKind, err error) {
	var ev events

	c.mu.Lock()
	t := c.failLocked(&ev, kind, err)
	c.unlockAndPublish(ev)
	if t != nil {
		_ = t.Close()
	}
}

func newJobID() string {
	return uuid.NewString()
}
