package printer

import (
	"fmt"
	"sync"
)

// Command is a direct command waiting for the ok-gate.
type Command struct {
	Text string

	// poll marks a telemetry request for extruder tool.
	poll bool
	tool int
}

// CommandQueue is a bounded FIFO of direct commands. Enqueue never blocks.
type CommandQueue struct {
	mu       sync.Mutex
	items    []Command
	capacity int
}

// NewCommandQueue creates a queue holding at most capacity commands.
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{capacity: capacity}
}

// Enqueue appends all commands or none of them.
func (q *CommandQueue) Enqueue(cmds ...Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items)+len(cmds) > q.capacity {
		return fmt.Errorf("%w: %d queued, %d more, capacity %d", ErrQueueFull, len(q.items), len(cmds), q.capacity)
	}
	q.items = append(q.items, cmds...)
	return nil
}

// Dequeue removes the oldest command.
func (q *CommandQueue) Dequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Command{}, false
	}
	cmd := q.items[0]
	q.items[0] = Command{}
	q.items = q.items[1:]
	return cmd, true
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// dropPolls removes queued telemetry polls and reports how many were dropped.
func (q *CommandQueue) dropPolls() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, cmd := range q.items {
		if !cmd.poll {
			kept = append(kept, cmd)
		}
	}
	dropped := len(q.items) - len(kept)
	clear(q.items[len(kept):])
	q.items = kept
	return dropped
}

// Clear empties the queue.
func (q *CommandQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
