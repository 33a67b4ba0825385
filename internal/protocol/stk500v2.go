// internal/protocol/stk500v2.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// STK500v2 framing, as spoken by the Arduino Mega bootloader.
const (
	stkMessageStart = 0x1B
	stkToken        = 0x0E

	stkCmdSignOn         = 0x01
	stkCmdLeaveProgmode  = 0x11
	stkStatusCmdOK       = 0x00
	stkMaxResponseLength = 275

	// BootloaderBitrate is the rate the STK500v2 bootloader listens on.
	BootloaderBitrate = 115200
)

var ErrBootloaderHandshake = errors.New("stk500v2 handshake failed")

// Bootloader performs the STK500v2 exchanges needed to leave a bootloader
// that is still waiting for a programmer.
type Bootloader struct {
	transport Transport
	timeout   time.Duration
	seq       byte
}

// NewBootloader wraps an open transport. timeout bounds each request.
func NewBootloader(transport Transport, timeout time.Duration) *Bootloader {
	return &Bootloader{transport: transport, timeout: timeout}
}

// EncodeMessage frames body as an STK500v2 message with sequence number seq.
func EncodeMessage(seq byte, body []byte) []byte {
	msg := make([]byte, 0, len(body)+6)
	msg = append(msg, stkMessageStart, seq, byte(len(body)>>8), byte(len(body)), stkToken)
	msg = append(msg, body...)

	var checksum byte
	for _, b := range msg {
		checksum ^= b
	}
	return append(msg, checksum)
}

// DecodeMessage extracts the body from a complete STK500v2 message. It returns
// ok=false when more bytes are needed.
func DecodeMessage(data []byte) (seq byte, body []byte, ok bool, err error) {
	if len(data) == 0 {
		return 0, nil, false, nil
	}
	if data[0] != stkMessageStart {
		return 0, nil, false, fmt.Errorf("%w: bad start byte 0x%02X", ErrBootloaderHandshake, data[0])
	}
	if len(data) < 5 {
		return 0, nil, false, nil
	}

	size := int(data[2])<<8 | int(data[3])
	if size > stkMaxResponseLength {
		return 0, nil, false, fmt.Errorf("%w: message size %d", ErrBootloaderHandshake, size)
	}
	if data[4] != stkToken {
		return 0, nil, false, fmt.Errorf("%w: bad token 0x%02X", ErrBootloaderHandshake, data[4])
	}
	if len(data) < size+6 {
		return 0, nil, false, nil
	}

	var checksum byte
	for _, b := range data[:size+5] {
		checksum ^= b
	}
	if checksum != data[size+5] {
		return 0, nil, false, fmt.Errorf("%w: checksum mismatch", ErrBootloaderHandshake)
	}

	return data[1], data[5 : 5+size], true, nil
}

// SignOn asks the bootloader to identify itself and returns its signature.
func (b *Bootloader) SignOn(ctx context.Context) (string, error) {
	body, err := b.request(ctx, []byte{stkCmdSignOn})
	if err != nil {
		return "", err
	}
	if len(body) < 3 {
		return "", fmt.Errorf("%w: short sign-on reply", ErrBootloaderHandshake)
	}

	n := int(body[2])
	if len(body) < 3+n {
		return "", fmt.Errorf("%w: truncated signature", ErrBootloaderHandshake)
	}
	return string(body[3 : 3+n]), nil
}

// LeaveISP tells the bootloader to exit programming mode and start the firmware.
func (b *Bootloader) LeaveISP(ctx context.Context) error {
	_, err := b.request(ctx, []byte{stkCmdLeaveProgmode, 0x01, 0x01})
	return err
}

func (b *Bootloader) request(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	b.seq++
	if err := b.transport.Write(ctx, EncodeMessage(b.seq, body)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBootloaderHandshake, err)
	}

	var response []byte
	for {
		seq, reply, ok, err := DecodeMessage(response)
		if err != nil {
			return nil, err
		}
		if ok {
			if seq != b.seq {
				return nil, fmt.Errorf("%w: sequence %d, want %d", ErrBootloaderHandshake, seq, b.seq)
			}
			if len(reply) < 2 || reply[0] != body[0] || reply[1] != stkStatusCmdOK {
				return nil, fmt.Errorf("%w: command 0x%02X rejected", ErrBootloaderHandshake, body[0])
			}
			return reply, nil
		}

		chunk, err := b.transport.Read(ctx, 64)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrBootloaderHandshake, ctx.Err())
			}
			return nil, err
		}
		if len(chunk) == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrBootloaderHandshake, ctx.Err())
		}
		response = append(response, chunk...)
	}
}
