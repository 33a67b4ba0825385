package marlin

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MessageKind tags a parsed reply.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindOk
	KindResend
	KindTemperature
	KindBedTemperature
	KindError
)

func (k MessageKind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindResend:
		return "resend"
	case KindTemperature:
		return "temperature"
	case KindBedTemperature:
		return "bed_temperature"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// QueriedTool marks a temperature reported without an explicit tool index;
// it belongs to the tool the host last asked about.
const QueriedTool = -1

// Message is one event extracted from a printer reply line.
type Message struct {
	Kind MessageKind

	// Line is the line number requested by a resend.
	Line uint32

	// Tool, Value, Target and HasTarget describe temperature reports.
	Tool      int
	Value     float64
	Target    float64
	HasTarget bool

	// Text carries the raw line for Error and Unknown messages.
	Text  string
	Fatal bool
}

// String renders temperature messages in the firmware's report syntax.
func (m Message) String() string {
	switch m.Kind {
	case KindTemperature, KindBedTemperature:
		var b strings.Builder
		switch {
		case m.Kind == KindBedTemperature:
			b.WriteString("B:")
		case m.Tool == QueriedTool:
			b.WriteString("T:")
		default:
			b.WriteString("T" + strconv.Itoa(m.Tool) + ":")
		}
		b.WriteString(strconv.FormatFloat(m.Value, 'f', -1, 64))
		if m.HasTarget {
			b.WriteString(" /" + strconv.FormatFloat(m.Target, 'f', -1, 64))
		}
		return b.String()
	case KindOk:
		return "ok"
	case KindResend:
		return "Resend: " + strconv.FormatUint(uint64(m.Line), 10)
	default:
		return m.Text
	}
}

var ErrMalformedReply = errors.New("malformed reply")

// DefaultFatalErrors are the Marlin messages after which the printer has
// halted and needs a power cycle.
var DefaultFatalErrors = []string{
	"Extruder switched off",
	"Temperature heated bed switched off",
	"Something is wrong, please turn off the printer.",
}

var (
	temperaturePattern   = regexp.MustCompile(`(?:^|\s)(B|T\d*):\s*([^\s/]+)(?:\s*/\s*([^\s/]+))?`)
	integerPattern       = regexp.MustCompile(`\d+`)
	numberedErrorPattern = regexp.MustCompile(`^Error:[0-9]$`)
)

// Parser turns reply lines into messages.
type Parser struct {
	FatalErrors []string
}

// NewParser returns a parser that treats fatal as the halting error messages.
// A nil fatal list selects DefaultFatalErrors.
func NewParser(fatal []string) *Parser {
	if fatal == nil {
		fatal = DefaultFatalErrors
	}
	return &Parser{FatalErrors: fatal}
}

// ParseReply parses line with the default fatal error list.
func ParseReply(line string) ([]Message, error) {
	return NewParser(nil).Parse(line)
}

// IsNumberedError reports whether line is an "Error:<digit>" header whose
// text follows on the next line.
func IsNumberedError(line string) bool {
	return numberedErrorPattern.MatchString(strings.TrimSpace(line))
}

// Parse extracts messages from line in the order they should be acted on.
// Messages parsed before a malformed field are still returned alongside an
// error wrapping ErrMalformedReply.
func (p *Parser) Parse(line string) ([]Message, error) {
	if strings.HasPrefix(line, "Error:") {
		return []Message{{Kind: KindError, Text: line, Fatal: p.isFatal(line)}}, nil
	}

	var (
		messages []Message
		parseErr error
	)

	if strings.Contains(line, "T:") || temperaturePattern.MatchString(line) {
		temps, err := parseTemperatures(line)
		messages = append(messages, temps...)
		parseErr = err
	}

	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "resend") || strings.HasPrefix(lower, "rs"):
		n, err := resendLine(line)
		if err != nil {
			return messages, err
		}
		messages = append(messages, Message{Kind: KindResend, Line: n})
	case strings.Contains(lower, "ok"):
		messages = append(messages, Message{Kind: KindOk})
	}

	if len(messages) == 0 && parseErr == nil {
		messages = append(messages, Message{Kind: KindUnknown, Text: line})
	}
	return messages, parseErr
}

func (p *Parser) isFatal(line string) bool {
	for _, s := range p.FatalErrors {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func parseTemperatures(line string) ([]Message, error) {
	matches := temperaturePattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no temperature in %q", ErrMalformedReply, line)
	}

	explicit := false
	for _, m := range matches {
		if len(m[1]) > 1 {
			explicit = true
			break
		}
	}

	var messages []Message
	for _, m := range matches {
		msg := Message{Kind: KindTemperature, Tool: QueriedTool}
		switch {
		case m[1] == "B":
			msg.Kind = KindBedTemperature
		case m[1] == "T":
			if explicit {
				continue
			}
		default:
			tool, err := strconv.Atoi(m[1][1:])
			if err != nil {
				return messages, fmt.Errorf("%w: tool %q", ErrMalformedReply, m[1])
			}
			msg.Tool = tool
		}

		value, ok := parseReading(m[2])
		if !ok {
			return messages, fmt.Errorf("%w: %s value %q", ErrMalformedReply, m[1], m[2])
		}
		msg.Value = value

		if m[3] != "" {
			target, ok := parseReading(m[3])
			if !ok {
				return messages, fmt.Errorf("%w: %s target %q", ErrMalformedReply, m[1], m[3])
			}
			msg.Target, msg.HasTarget = target, true
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// parseReading accepts finite numbers only, so "inf" and "nan" are
// malformed.
func parseReading(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// resendLine takes the last integer on the line, which covers both
// "Resend: N" and "rs N" as well as "rs N<n>".
func resendLine(line string) (uint32, error) {
	found := integerPattern.FindAllString(line, -1)
	if len(found) == 0 {
		return 0, fmt.Errorf("%w: resend without line number %q", ErrMalformedReply, line)
	}
	n, err := strconv.ParseUint(found[len(found)-1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: resend line %q", ErrMalformedReply, found[len(found)-1])
	}
	return uint32(n), nil
}
