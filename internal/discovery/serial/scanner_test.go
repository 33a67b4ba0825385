package serial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap/zaptest"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
}

func TestScanGlobs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("glob scanning is not used on windows")
	}

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "ttyUSB0"))
	touch(t, filepath.Join(dir, "ttyACM1"))
	touch(t, filepath.Join(dir, "tty.Bluetooth-Incoming-Port"))
	touch(t, filepath.Join(dir, "ttyS0"))
	if err := os.Symlink(filepath.Join(dir, "ttyUSB0"), filepath.Join(dir, "ttyUSB-link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	scanner := NewScanner(zaptest.NewLogger(t), &Config{
		Patterns: []string{
			filepath.Join(dir, "ttyUSB*"),
			filepath.Join(dir, "ttyACM*"),
			filepath.Join(dir, "tty.*"),
			filepath.Join(dir, "ttyUSB0"),
		},
	})

	ports, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	got := make(map[string]bool)
	for _, p := range ports {
		if got[p.Path] {
			t.Errorf("port %s reported twice", p.Path)
		}
		got[p.Path] = true
		if p.Source != "serial" {
			t.Errorf("Source = %q, want serial", p.Source)
		}
	}

	want := []string{filepath.Join(dir, "ttyUSB0"), filepath.Join(dir, "ttyACM1")}
	if len(got) != len(want) {
		t.Fatalf("Scan() = %v, want %v", got, want)
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing %s in %v", w, got)
		}
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(nil, nil)
	if _, err := scanner.scanGlobs(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("scanGlobs() error = %v, want context.Canceled", err)
	}
}

func TestScanRegistry(t *testing.T) {
	scanner := NewScanner(nil, nil)
	scanner.listRegistry = func() ([]RegistryEntry, error) {
		return []RegistryEntry{
			{Name: `\Device\USBSER000`, Port: "COM3"},
			{Name: `\Device\VCP0`, Port: "COM4"},
			{Name: `\Device\Serial0`, Port: "COM1"},
			{Name: `\Device\BthModem0`, Port: "COM7"},
		}, nil
	}

	ports, err := scanner.scanRegistry()
	if err != nil {
		t.Fatalf("scanRegistry() error = %v", err)
	}
	if len(ports) != 2 || ports[0].Path != "COM3" || ports[1].Path != "COM4" {
		t.Fatalf("scanRegistry() = %+v, want COM3 and COM4", ports)
	}
	for _, p := range ports {
		if !p.IsUSB {
			t.Errorf("%s: IsUSB = false", p.Path)
		}
	}

	scanner.listRegistry = func() ([]RegistryEntry, error) {
		return nil, errors.New("access denied")
	}
	if _, err := scanner.scanRegistry(); err == nil {
		t.Error("scanRegistry() error = nil, want registry failure")
	}
}

func TestIsUSBSerialValue(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{`\Device\USBSER000`, true},
		{`\Device\usbser001`, true},
		{`\Device\VCP0`, true},
		{`\Device\Serial0`, false},
		{`\Device\ProlificSerial0`, false},
	}

	for _, tt := range tests {
		if got := IsUSBSerialValue(tt.name); got != tt.want {
			t.Errorf("IsUSBSerialValue(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
