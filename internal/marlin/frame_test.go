package marlin

import (
	"strconv"
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		in   string
		want uint8
	}{
		{"", 0},
		{"N0M110", 3},
		{"N1G28", 50},
		{"N2G1 X0", 66},
	}
	for _, tt := range tests {
		if got := Checksum(tt.in); got != tt.want {
			t.Errorf("Checksum(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFrame(t *testing.T) {
	tests := []struct {
		n       uint32
		payload string
		want    string
	}{
		{0, "M110", "N0M110*3\n"},
		{1, "G28", "N1G28*50\n"},
		{2, "G1 X0", "N2G1 X0*66\n"},
		{3, "", "N3*" + strconv.Itoa(int(Checksum("N3"))) + "\n"},
	}
	for _, tt := range tests {
		if got := string(Frame(tt.n, tt.payload)); got != tt.want {
			t.Errorf("Frame(%d, %q) = %q, want %q", tt.n, tt.payload, got, tt.want)
		}
	}
}

func TestLineFrameChecksumTrailer(t *testing.T) {
	for n := uint32(0); n < 200; n++ {
		wire := NewLineFrame(n, "G1 X10.5 Y-3 F1200").String()
		body, trailer, ok := strings.Cut(strings.TrimSuffix(wire, "\n"), "*")
		if !ok {
			t.Fatalf("line %d: no checksum trailer in %q", n, wire)
		}

		var want uint8
		for _, c := range []byte(body) {
			want ^= c
		}
		if trailer != strconv.Itoa(int(want)) {
			t.Fatalf("line %d: trailer %s, want %d", n, trailer, want)
		}
	}
}

func TestDirect(t *testing.T) {
	if got := string(Direct("M140 S0")); got != "M140 S0\n" {
		t.Errorf("Direct = %q", got)
	}
}
