package protocol

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// bootloaderLink answers every STK500v2 request with a canned sign-on reply.
type bootloaderLink struct {
	mu      sync.Mutex
	pending []byte
	silent  bool
}

func (l *bootloaderLink) ReadLine(ctx context.Context) ([]byte, error) { return nil, nil }

func (l *bootloaderLink) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := min(maxBytes, len(l.pending))
	out := append([]byte(nil), l.pending[:n]...)
	l.pending = l.pending[n:]
	return out, ctx.Err()
}

func (l *bootloaderLink) Write(ctx context.Context, data []byte) error {
	seq, body, ok, err := DecodeMessage(data)
	if err != nil || !ok {
		return errors.New("host sent a malformed frame")
	}
	if l.silent {
		return nil
	}

	var reply []byte
	switch body[0] {
	case stkCmdSignOn:
		reply = append([]byte{stkCmdSignOn, stkStatusCmdOK, 8}, "AVRISP_2"...)
	default:
		reply = []byte{body[0], stkStatusCmdOK}
	}

	l.mu.Lock()
	l.pending = append(l.pending, EncodeMessage(seq, reply)...)
	l.mu.Unlock()
	return nil
}

func (l *bootloaderLink) SetBitrate(int) error { return nil }
func (l *bootloaderLink) SetReadTimeout(time.Duration) error { return nil }
func (l *bootloaderLink) Close() error { return nil }

func TestEncodeMessage(t *testing.T) {
	got := EncodeMessage(1, []byte{stkCmdSignOn})
	want := []byte{0x1B, 0x01, 0x00, 0x01, 0x0E, 0x01, 0x1B ^ 0x01 ^ 0x00 ^ 0x01 ^ 0x0E ^ 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMessage = % X, want % X", got, want)
	}
}

func TestDecodeMessage(t *testing.T) {
	msg := EncodeMessage(7, []byte{0x11, 0x00})

	for i := 0; i < len(msg); i++ {
		if _, _, ok, err := DecodeMessage(msg[:i]); ok || err != nil {
			t.Fatalf("prefix %d: ok=%v err=%v, want incomplete", i, ok, err)
		}
	}

	seq, body, ok, err := DecodeMessage(msg)
	if err != nil || !ok {
		t.Fatalf("DecodeMessage: ok=%v err=%v", ok, err)
	}
	if seq != 7 || !bytes.Equal(body, []byte{0x11, 0x00}) {
		t.Errorf("seq=%d body=% X", seq, body)
	}

	corrupt := append([]byte(nil), msg...)
	corrupt[len(corrupt)-1] ^= 0xFF
	if _, _, _, err := DecodeMessage(corrupt); !errors.Is(err, ErrBootloaderHandshake) {
		t.Errorf("corrupt checksum: err = %v", err)
	}
}

func TestBootloaderSignOnAndLeave(t *testing.T) {
	bl := NewBootloader(&bootloaderLink{}, 100*time.Millisecond)
	sig, err := bl.SignOn(context.Background())
	if err != nil {
		t.Fatalf("SignOn: %v", err)
	}
	if sig != "AVRISP_2" {
		t.Errorf("signature = %q", sig)
	}
	if err := bl.LeaveISP(context.Background()); err != nil {
		t.Errorf("LeaveISP: %v", err)
	}
}

func TestBootloaderSilent(t *testing.T) {
	bl := NewBootloader(&bootloaderLink{silent: true}, 20*time.Millisecond)
	if _, err := bl.SignOn(context.Background()); !errors.Is(err, ErrBootloaderHandshake) {
		t.Errorf("SignOn on silent link = %v, want ErrBootloaderHandshake", err)
	}
}
