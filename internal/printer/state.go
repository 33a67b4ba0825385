package printer

import "fmt"

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateProbing
	StateIdle
	StatePrinting
	StatePaused
	StateError
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateProbing:      "probing",
	StateIdle:         "idle",
	StatePrinting:     "printing",
	StatePaused:       "paused",
	StateError:        "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Connected reports whether the listener owns a live transport in this state.
func (s State) Connected() bool {
	return s == StateIdle || s == StatePrinting || s == StatePaused
}

// Jobbed reports whether a program is loaded.
func (s State) Jobbed() bool {
	return s == StatePrinting || s == StatePaused
}
