package usb

import (
	"context"
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"
)

func TestScanReportsUSBPortsOnly(t *testing.T) {
	scanner := NewScanner(zaptest.NewLogger(t))
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0042", SerialNumber: "75833353", Product: "Mega"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "dead", PID: "beef"},
		}, nil
	}

	ports, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(ports) != 3 {
		t.Fatalf("Scan() returned %d ports, want 3", len(ports))
	}

	tests := []struct {
		path, vid, board string
	}{
		{"/dev/ttyACM0", "2341", "Arduino Mega 2560 R3"},
		{"/dev/ttyUSB0", "1A86", "QinHeng Electronics CH340 serial converter"},
		{"/dev/ttyUSB1", "DEAD", ""},
	}
	for i, tt := range tests {
		p := ports[i]
		if p.Path != tt.path || p.VID != tt.vid || p.Board != tt.board || !p.IsUSB {
			t.Errorf("ports[%d] = %+v, want path %s vid %s board %q", i, p, tt.path, tt.vid, tt.board)
		}
	}
	if ports[0].SerialNumber != "75833353" || ports[0].Product != "Mega" {
		t.Errorf("descriptor details lost: %+v", ports[0])
	}
}

func TestScanEnumeratorError(t *testing.T) {
	scanner := NewScanner(nil)
	boom := errors.New("no sysfs")
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) { return nil, boom }

	if _, err := scanner.Scan(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Scan() error = %v, want %v", err, boom)
	}
}

func TestBoardDatabase(t *testing.T) {
	db := NewBoardDatabase()

	tests := []struct {
		vid, pid, want string
	}{
		{"2341", "0042", "Arduino Mega 2560 R3"},
		{"0x10c4", "0xea60", "Silicon Labs CP210x serial converter"},
		{"2341", "ffff", "Arduino"},
		{"ffff", "0001", ""},
	}
	for _, tt := range tests {
		if got := db.Describe(tt.vid, tt.pid); got != tt.want {
			t.Errorf("Describe(%s, %s) = %q, want %q", tt.vid, tt.pid, got, tt.want)
		}
	}

	before := db.GetTotalProductCount()
	db.AddProduct("0403", "6010", &ProductInfo{Model: "FT2232"})
	db.AddProduct("9999", "0001", &ProductInfo{Model: "ignored"})
	if got := db.GetTotalProductCount(); got != before+1 {
		t.Errorf("GetTotalProductCount() = %d, want %d", got, before+1)
	}
	if p := db.GetVendorInfo("0403").GetProductInfo("6010"); p == nil || p.Native {
		t.Errorf("GetProductInfo(6010) = %+v", p)
	}
}
