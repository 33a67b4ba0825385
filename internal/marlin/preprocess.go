package marlin

import (
	"strings"
	"unicode"

	"github.com/256dpi/gcode"
)

// Payload is a program line made ready for framing.
type Payload struct {
	Text string

	// Z is the target height of a G0/G1 move that names Z.
	Z    float64
	HasZ bool
}

// Preprocess strips comments and trailing whitespace, swaps M0/M1 for M105 so
// the firmware does not wait on its LCD, and extracts Z from G0/G1 moves.
func Preprocess(line string) Payload {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRightFunc(line, unicode.IsSpace)

	p := Payload{Text: line}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p
	}

	switch strings.ToUpper(fields[0]) {
	case "M0", "M1":
		p.Text = CmdTemperature
	case "G0", "G1", "G00", "G01":
		p.Z, p.HasZ = moveZ(line)
	}
	return p
}

func moveZ(line string) (float64, bool) {
	parsed, err := gcode.ParseLine(line)
	if err != nil {
		return 0, false
	}

	for _, code := range parsed.Codes {
		if strings.EqualFold(code.Letter, "Z") {
			return code.Value, true
		}
	}
	return 0, false
}
