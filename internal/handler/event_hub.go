// internal/handler/event_hub.go
package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/printer"
)

// Event types published by the hub
const (
	EventStateChanged = "state_changed"
	EventProgress     = "progress"
	EventTemperature  = "temperature"
	EventError        = "error"
	EventPortAdded    = "port_added"
	EventPortRemoved  = "port_removed"
)

// Event represents a printer or port event
type Event struct {
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

var (
	_ printer.Observer       = (*EventHub)(nil)
	_ discovery.PortListener = (*EventHub)(nil)
)

type subscriber struct {
	ch    chan Event
	types map[string]bool
}

// EventHub fans printer observer callbacks and port monitor changes out to
// channel subscribers. Publishing never blocks: events are dropped when the
// hub or a subscriber is full.
type EventHub struct {
	events chan Event
	logger *zap.Logger

	mutex       sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int

	handlesMu sync.Mutex
	handles   map[string]portSubscription
}

type portSubscription struct {
	conn   *printer.Connection
	handle uuid.UUID
}

// NewEventHub creates a new event hub
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		events:      make(chan Event, 1000),
		logger:      logger.With(zap.String("component", "event-hub")),
		subscribers: make(map[int]*subscriber),
		handles:     make(map[string]portSubscription),
	}
}

// Run distributes published events until ctx ends
func (eh *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eh.events:
			eh.distributeEvent(event)
		}
	}
}

// Publish publishes an event
func (eh *EventHub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case eh.events <- event:
	default:
		eh.logger.Warn("Event hub full, dropping event",
			zap.String("event_type", event.Type),
			zap.String("source", event.Source),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given, and a function that cancels it.
func (eh *EventHub) Subscribe(eventTypes ...string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 100)}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}

	eh.mutex.Lock()
	id := eh.nextID
	eh.nextID++
	eh.subscribers[id] = sub
	eh.mutex.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eh.mutex.Lock()
			delete(eh.subscribers, id)
			eh.mutex.Unlock()
		})
	}
}

// distributeEvent distributes an event to subscribers
func (eh *EventHub) distributeEvent(event Event) {
	eh.mutex.RLock()
	defer eh.mutex.RUnlock()

	for _, sub := range eh.subscribers {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// OnStateChanged implements printer.Observer
func (eh *EventHub) OnStateChanged(port string, state printer.State) {
	eh.Publish(Event{
		Type:   EventStateChanged,
		Source: port,
		Data:   map[string]interface{}{"state": state.String()},
	})
}

// OnProgress implements printer.Observer
func (eh *EventHub) OnProgress(port string, fraction float64) {
	eh.Publish(Event{
		Type:   EventProgress,
		Source: port,
		Data:   map[string]interface{}{"progress": fraction},
	})
}

// OnTemperature implements printer.Observer
func (eh *EventHub) OnTemperature(port string, sensor int, celsius float64) {
	data := map[string]interface{}{"celsius": celsius}
	if sensor == printer.BedSensor {
		data["sensor"] = "bed"
	} else {
		data["sensor"] = "tool"
		data["tool"] = sensor
	}
	eh.Publish(Event{Type: EventTemperature, Source: port, Data: data})
}

// OnError implements printer.Observer
func (eh *EventHub) OnError(port string, kind printer.ErrorKind, detail string) {
	eh.Publish(Event{
		Type:   EventError,
		Source: port,
		Data: map[string]interface{}{
			"kind":   string(kind),
			"detail": detail,
		},
	})
}

// PortAdded implements discovery.PortListener. The hub observes the new
// connection before it starts probing.
func (eh *EventHub) PortAdded(port *discovery.SerialPort, conn *printer.Connection) {
	handle := conn.Subscribe(eh)

	eh.handlesMu.Lock()
	if old, ok := eh.handles[port.Path]; ok {
		old.conn.Unsubscribe(old.handle)
	}
	eh.handles[port.Path] = portSubscription{conn: conn, handle: handle}
	eh.handlesMu.Unlock()

	eh.Publish(Event{
		Type:   EventPortAdded,
		Source: port.Path,
		Data: map[string]interface{}{
			"is_usb":  port.IsUSB,
			"vid":     port.VID,
			"pid":     port.PID,
			"product": port.Product,
			"board":   port.Board,
		},
	})
}

// PortRemoved implements discovery.PortListener
func (eh *EventHub) PortRemoved(path string) {
	eh.handlesMu.Lock()
	if sub, ok := eh.handles[path]; ok {
		sub.conn.Unsubscribe(sub.handle)
		delete(eh.handles, path)
	}
	eh.handlesMu.Unlock()

	eh.Publish(Event{Type: EventPortRemoved, Source: path})
}
