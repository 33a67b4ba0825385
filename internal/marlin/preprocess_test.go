package marlin

import "testing"

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Payload
	}{
		{"plain", "G28", Payload{Text: "G28"}},
		{"comment", "G1 X10 ; move", Payload{Text: "G1 X10"}},
		{"comment only", "; layer 2", Payload{Text: ""}},
		{"trailing whitespace", "M104 S200 \t\r", Payload{Text: "M104 S200"}},
		{"pause becomes poll", "M0", Payload{Text: "M105"}},
		{"stop becomes poll", "M1 ; wait for user", Payload{Text: "M105"}},
		{"M10 untouched", "M107", Payload{Text: "M107"}},
		{"z move", "G1 X5 Z0.3 F1200", Payload{Text: "G1 X5 Z0.3 F1200", Z: 0.3, HasZ: true}},
		{"rapid z", "G0 Z10", Payload{Text: "G0 Z10", Z: 10, HasZ: true}},
		{"move without z", "G1 X5 Y5", Payload{Text: "G1 X5 Y5"}},
		{"home with z", "G28 Z", Payload{Text: "G28 Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
