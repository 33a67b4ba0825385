package printer

import (
	"time"

	"printer-service/internal/marlin"
	"printer-service/internal/protocol"
)

// Options tunes one Connection. Zero durations are used as given; start from
// DefaultOptions and override.
type Options struct {
	ExtruderCount     int
	RequiredOkCount   int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	OkSilenceTimeout  time.Duration
	TelemetryInterval time.Duration
	CandidateBitrates []int

	// ProbeWindow bounds how long one candidate bitrate is tried.
	ProbeWindow time.Duration
	// ProbeReadTimeout replaces ReadTimeout once a candidate has answered.
	ProbeReadTimeout time.Duration
	// BootloaderWait is slept after each bitrate change.
	BootloaderWait time.Duration
	// BootloaderProbe tries an STK500v2 handshake before the candidates.
	BootloaderProbe bool

	QueueCapacity   int
	PreloadLines    int
	WriteRetryDelay time.Duration
	ErrorLogSize    int
	FatalErrors     []string

	Opener protocol.Opener
}

// DefaultOptions returns the settings used for a stock Marlin board.
func DefaultOptions() Options {
	return Options{
		ExtruderCount:     1,
		RequiredOkCount:   10,
		ReadTimeout:       2 * time.Second,
		WriteTimeout:      10 * time.Second,
		OkSilenceTimeout:  5 * time.Second,
		TelemetryInterval: 5 * time.Second,
		CandidateBitrates: []int{250000, 230400, 115200, 57600, 38400, 19200, 9600},
		ProbeWindow:       5 * time.Second,
		ProbeReadTimeout:  500 * time.Millisecond,
		BootloaderWait:    1500 * time.Millisecond,
		BootloaderProbe:   true,
		QueueCapacity:     256,
		PreloadLines:      4,
		WriteRetryDelay:   500 * time.Millisecond,
		ErrorLogSize:      200,
		FatalErrors:       marlin.DefaultFatalErrors,
		Opener:            protocol.OpenSerial,
	}
}

// normalize replaces values that would make a connection unusable.
func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.ExtruderCount < 1 {
		o.ExtruderCount = d.ExtruderCount
	}
	if o.RequiredOkCount < 1 {
		o.RequiredOkCount = d.RequiredOkCount
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if len(o.CandidateBitrates) == 0 {
		o.CandidateBitrates = d.CandidateBitrates
	}
	if o.ProbeReadTimeout <= 0 {
		o.ProbeReadTimeout = o.ReadTimeout
	}
	if o.QueueCapacity < 1 {
		o.QueueCapacity = d.QueueCapacity
	}
	if o.PreloadLines < 0 {
		o.PreloadLines = 0
	}
	if o.ErrorLogSize < 1 {
		o.ErrorLogSize = d.ErrorLogSize
	}
	if o.Opener == nil {
		o.Opener = protocol.OpenSerial
	}
	return o
}
