package discovery

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

type stubScanner struct {
	kind      string
	available bool
	ports     []*SerialPort
	err       error
}

func (s *stubScanner) Scan(ctx context.Context) ([]*SerialPort, error) { return s.ports, s.err }
func (s *stubScanner) GetScannerType() string                          { return s.kind }
func (s *stubScanner) IsAvailable() bool                               { return s.available }

func TestScanAllMergesByPath(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "serial", available: true, ports: []*SerialPort{
		{Path: "/dev/ttyUSB0", Source: "serial"},
		{Path: "/dev/ttyACM0", Source: "serial"},
	}})
	sm.RegisterScanner(&stubScanner{kind: "usb", available: true, ports: []*SerialPort{
		{Path: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523", Board: "CH340", Source: "usb"},
	}})
	sm.RegisterScanner(&stubScanner{kind: "offline", ports: []*SerialPort{{Path: "/dev/never"}}})

	ports, err := sm.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("ScanAll() = %d ports, want 2", len(ports))
	}

	if ports[0].Path != "/dev/ttyACM0" || ports[0].IsUSB {
		t.Errorf("ports[0] = %+v", ports[0])
	}
	usb := ports[1]
	if usb.Path != "/dev/ttyUSB0" || !usb.IsUSB || usb.VID != "1A86" || usb.Board != "CH340" || usb.Source != "serial" {
		t.Errorf("merged port = %+v", usb)
	}

	if got, want := sm.GetAvailableScanners(), []string{"serial", "usb"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetAvailableScanners() = %v, want %v", got, want)
	}
}

func TestScanAllFailures(t *testing.T) {
	boom := errors.New("boom")

	partial := NewScannerManager(nil)
	partial.RegisterScanner(&stubScanner{kind: "serial", available: true, err: boom})
	partial.RegisterScanner(&stubScanner{kind: "usb", available: true, ports: []*SerialPort{{Path: "COM3"}}})
	ports, err := partial.ScanAll(context.Background())
	if err != nil || len(ports) != 1 {
		t.Errorf("ScanAll() = %v, %v, want one port despite one failing scanner", ports, err)
	}

	total := NewScannerManager(nil)
	total.RegisterScanner(&stubScanner{kind: "serial", available: true, err: boom})
	if _, err := total.ScanAll(context.Background()); !errors.Is(err, boom) {
		t.Errorf("ScanAll() error = %v, want %v", err, boom)
	}

	if _, err := total.ScanByType(context.Background(), "usb"); err == nil {
		t.Error("ScanByType(unknown) error = nil")
	}
}
