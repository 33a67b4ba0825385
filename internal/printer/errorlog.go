package printer

import (
	"strings"
	"sync"
)

// ErrorLog keeps the most recent error lines reported by a printer.
type ErrorLog struct {
	mu    sync.Mutex
	lines []string
	limit int
}

// NewErrorLog creates a log that keeps at most limit lines.
func NewErrorLog(limit int) *ErrorLog {
	return &ErrorLog{limit: limit}
}

// Append records line, dropping the oldest entry once the log is full.
func (l *ErrorLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == l.limit {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:len(l.lines)-1]
	}
	l.lines = append(l.lines, line)
}

// Lines returns a copy of the recorded lines, oldest first.
func (l *ErrorLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *ErrorLog) String() string {
	return strings.Join(l.Lines(), "\n")
}
