package printer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCommandQueueFIFO(t *testing.T) {
	q := NewCommandQueue(4)
	if err := q.Enqueue(Command{Text: "G91"}, Command{Text: "G1 X5"}, Command{Text: "G90"}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"G91", "G1 X5", "G90"} {
		cmd, ok := q.Dequeue()
		if !ok || cmd.Text != want {
			t.Fatalf("Dequeue() = %q, %v; want %q", cmd.Text, ok, want)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() on empty queue succeeded")
	}
}

func TestCommandQueueAllOrNothing(t *testing.T) {
	q := NewCommandQueue(3)
	if err := q.Enqueue(Command{Text: "M105"}, Command{Text: "M114"}); err != nil {
		t.Fatal(err)
	}

	err := q.Enqueue(Command{Text: "G28"}, Command{Text: "G28 Z"})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() error = %v, want ErrQueueFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d after refused enqueue, want 2", q.Len())
	}

	if err := q.Enqueue(Command{Text: "G28"}); err != nil {
		t.Errorf("Enqueue() into last slot: %v", err)
	}
}

func TestCommandQueueDropPolls(t *testing.T) {
	q := NewCommandQueue(8)
	_ = q.Enqueue(
		Command{Text: "M105 T0", poll: true},
		Command{Text: "G28"},
		Command{Text: "M105 T1", poll: true, tool: 1},
		Command{Text: "M140 S0"},
	)

	if n := q.dropPolls(); n != 2 {
		t.Errorf("dropPolls() = %d, want 2", n)
	}

	var got []string
	for {
		cmd, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, cmd.Text)
	}
	if strings.Join(got, ",") != "G28,M140 S0" {
		t.Errorf("remaining = %v", got)
	}
}

func TestErrorLogBounded(t *testing.T) {
	l := NewErrorLog(3)
	for i := 0; i < 5; i++ {
		l.Append(fmt.Sprintf("Error:%d", i))
	}

	got := l.Lines()
	if strings.Join(got, ",") != "Error:2,Error:3,Error:4" {
		t.Errorf("Lines() = %v", got)
	}
	if l.String() != "Error:2\nError:3\nError:4" {
		t.Errorf("String() = %q", l.String())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("open: %w", ErrProbeFailed), KindProbeFailed},
		{fmt.Errorf("x: %w", ErrFatalPrinterError), KindFatalPrinterError},
		{ErrPrinterReportedError, KindPrinterReportedError},
		{ErrQueueFull, KindQueueFull},
		{ErrInvalidStateTransition, KindInvalidStateTransition},
		{errors.New("other"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if !errors.Is(ErrFatalPrinterError, ErrPrinterReportedError) {
		t.Error("fatal printer error does not wrap printer reported error")
	}
}
