// Package marlin implements the host side of the Marlin serial protocol:
// line framing with XOR checksums, payload preprocessing and reply parsing.
package marlin

import (
	"strconv"
	"strings"
)

// Commands the host issues on its own.
const (
	CmdTemperature   = "M105"
	CmdResetLine     = "M110"
	CmdBedOff        = "M140 S0"
	CmdHotendOff     = "M109 S0"
	CmdHome          = "G28"
	CmdHomeZ         = "G28 Z"
	CmdRelative      = "G91"
	CmdAbsolute      = "G90"
	CmdSetHotendTemp = "M104"
	CmdSetBedTemp    = "M140"
)

// Checksum is the XOR of the bytes of s.
func Checksum(s string) uint8 {
	var cs uint8
	for i := 0; i < len(s); i++ {
		cs ^= s[i]
	}
	return cs
}

// LineFrame is a numbered, checksummed program line.
type LineFrame struct {
	LineNumber uint32
	Payload    string
	Checksum   uint8
}

// NewLineFrame numbers payload and computes its checksum.
func NewLineFrame(lineNumber uint32, payload string) LineFrame {
	return LineFrame{
		LineNumber: lineNumber,
		Payload:    payload,
		Checksum:   Checksum(numbered(lineNumber, payload)),
	}
}

func numbered(lineNumber uint32, payload string) string {
	return "N" + strconv.FormatUint(uint64(lineNumber), 10) + payload
}

// String renders the frame as sent on the wire, including the newline.
func (f LineFrame) String() string {
	var b strings.Builder
	b.WriteString(numbered(f.LineNumber, f.Payload))
	b.WriteByte('*')
	b.WriteString(strconv.Itoa(int(f.Checksum)))
	b.WriteByte('\n')
	return b.String()
}

// Bytes is String as a byte slice.
func (f LineFrame) Bytes() []byte {
	return []byte(f.String())
}

// Frame returns the wire form of payload numbered n.
func Frame(n uint32, payload string) []byte {
	return NewLineFrame(n, payload).Bytes()
}

// Direct returns the wire form of an unnumbered command.
func Direct(payload string) []byte {
	return []byte(payload + "\n")
}
