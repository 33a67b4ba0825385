package printer

import (
	"errors"
	"fmt"

	"printer-service/internal/marlin"
	"printer-service/internal/protocol"
)

var (
	ErrQueueFull              = errors.New("command queue full")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrProbeFailed            = errors.New("no candidate bitrate answered")
	ErrPrinterReportedError   = errors.New("printer reported error")
	ErrFatalPrinterError      = fmt.Errorf("fatal %w", ErrPrinterReportedError)
	ErrInvalidExtruder        = errors.New("invalid extruder index")
)

// ErrorKind classifies errors delivered to observers.
type ErrorKind string

const (
	KindOpenFailed             ErrorKind = "OpenFailed"
	KindProbeFailed            ErrorKind = "ProbeFailed"
	KindWriteTimeout           ErrorKind = "WriteTimeout"
	KindWriteFailed            ErrorKind = "WriteFailed"
	KindReadFailed             ErrorKind = "ReadFailed"
	KindMalformedReply         ErrorKind = "MalformedReply"
	KindPrinterReportedError   ErrorKind = "PrinterReportedError"
	KindFatalPrinterError      ErrorKind = "FatalPrinterError"
	KindQueueFull              ErrorKind = "QueueFull"
	KindInvalidStateTransition ErrorKind = "InvalidStateTransition"
	KindInternal               ErrorKind = "Internal"
)

// KindOf maps an error to its observer-facing kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, protocol.ErrOpenFailed):
		return KindOpenFailed
	case errors.Is(err, ErrProbeFailed):
		return KindProbeFailed
	case errors.Is(err, protocol.ErrWriteFailed):
		return KindWriteFailed
	case errors.Is(err, protocol.ErrWriteTimeout):
		return KindWriteTimeout
	case errors.Is(err, protocol.ErrReadFailed):
		return KindReadFailed
	case errors.Is(err, marlin.ErrMalformedReply):
		return KindMalformedReply
	case errors.Is(err, ErrFatalPrinterError):
		return KindFatalPrinterError
	case errors.Is(err, ErrPrinterReportedError):
		return KindPrinterReportedError
	case errors.Is(err, ErrQueueFull):
		return KindQueueFull
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	default:
		return KindInternal
	}
}
