package printer

import "github.com/google/uuid"

// BedSensor is the sensor index OnTemperature uses for the heated bed.
const BedSensor = -1

// Observer receives connection events in the order the connection changed.
// Callbacks run on the connection's own goroutines and must not block or call
// methods that change the connection's state.
type Observer interface {
	OnStateChanged(port string, state State)
	OnProgress(port string, fraction float64)
	OnTemperature(port string, sensor int, celsius float64)
	OnError(port string, kind ErrorKind, detail string)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	StateChanged func(port string, state State)
	Progress     func(port string, fraction float64)
	Temperature  func(port string, sensor int, celsius float64)
	Error        func(port string, kind ErrorKind, detail string)
}

func (f ObserverFuncs) OnStateChanged(port string, state State) {
	if f.StateChanged != nil {
		f.StateChanged(port, state)
	}
}

func (f ObserverFuncs) OnProgress(port string, fraction float64) {
	if f.Progress != nil {
		f.Progress(port, fraction)
	}
}

func (f ObserverFuncs) OnTemperature(port string, sensor int, celsius float64) {
	if f.Temperature != nil {
		f.Temperature(port, sensor, celsius)
	}
}

func (f ObserverFuncs) OnError(port string, kind ErrorKind, detail string) {
	if f.Error != nil {
		f.Error(port, kind, detail)
	}
}

type subscription struct {
	id       uuid.UUID
	observer Observer
}

// events collects notifications while the connection lock is held so they
// can be delivered after it is released.
type events []func(port string, o Observer)

func (e *events) state(s State) {
	*e = append(*e, func(port string, o Observer) { o.OnStateChanged(port, s) })
}

func (e *events) progress(p float64) {
	*e = append(*e, func(port string, o Observer) { o.OnProgress(port, p) })
}

func (e *events) temperature(sensor int, v float64) {
	*e = append(*e, func(port string, o Observer) { o.OnTemperature(port, sensor, v) })
}

func (e *events) err(kind ErrorKind, detail string) {
	*e = append(*e, func(port string, o Observer) { o.OnError(port, kind, detail) })
}

// Subscribe registers o and returns the handle that removes it.
func (c *Connection) Subscribe(o Observer) uuid.UUID {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := uuid.New()
	c.observers = append(c.observers, subscription{id: id, observer: o})
	return id
}

// Unsubscribe removes the observer registered under id.
func (c *Connection) Unsubscribe(id uuid.UUID) bool {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	for i, s := range c.observers {
		if s.id == id {
			c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
			return true
		}
	}
	return false
}

// unlockAndPublish releases c.mu and delivers ev once every batch released
// before it has been delivered.
func (c *Connection) unlockAndPublish(ev events) {
	if len(ev) == 0 {
		c.mu.Unlock()
		return
	}
	seq := c.nextSeq
	c.nextSeq++
	c.mu.Unlock()

	c.deliverMu.Lock()
	for c.delivered != seq {
		c.deliverCond.Wait()
	}
	c.deliverMu.Unlock()

	c.obsMu.RLock()
	subs := c.observers
	c.obsMu.RUnlock()

	for _, fn := range ev {
		for _, s := range subs {
			fn(c.port, s.observer)
		}
	}

	c.deliverMu.Lock()
	c.delivered++
	c.deliverCond.Broadcast()
	c.deliverMu.Unlock()
}
