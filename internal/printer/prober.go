package printer

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/marlin"
	"printer-service/internal/protocol"
)

var probeCommand = marlin.Direct(marlin.CmdTemperature)

// probe opens the port and finds the bitrate the firmware answers on.
func (c *Connection) probe(ctx context.Context) (protocol.Transport, int, error) {
	candidates := slices.Clone(c.opts.CandidateBitrates)

	cfg := protocol.DefaultSerialConfig(c.port, candidates[0])
	cfg.ReadTimeout = c.opts.ReadTimeout
	cfg.WriteTimeout = c.opts.WriteTimeout
	if c.opts.BootloaderProbe {
		cfg.BaudRate = protocol.BootloaderBitrate
	}

	t, err := c.opts.Opener(cfg, c.logger.Logger)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", protocol.ErrOpenFailed, c.port, err)
	}

	// current is the bitrate the port is configured for.
	current := cfg.BaudRate
	if c.opts.BootloaderProbe {
		if c.leaveBootloader(ctx, t) {
			candidates = slices.DeleteFunc(candidates, func(b int) bool { return b == protocol.BootloaderBitrate })
			candidates = slices.Insert(candidates, 0, protocol.BootloaderBitrate)
		}
	}

	for _, bitrate := range candidates {
		if ctx.Err() != nil {
			return t, 0, ctx.Err()
		}

		if bitrate != current {
			if err := t.SetBitrate(bitrate); err != nil {
				c.logger.Warn("Failed to set bitrate", zap.Int("bitrate", bitrate), zap.Error(err))
				continue
			}
			current = bitrate
		}

		ok, err := c.tryBitrate(ctx, t, bitrate)
		if err != nil {
			return t, 0, err
		}
		if ok {
			return t, bitrate, nil
		}
	}

	return t, 0, fmt.Errorf("%w: tried %v", ErrProbeFailed, candidates)
}

// leaveBootloader starts the firmware if an STK500v2 bootloader is waiting
// for a programmer. It reports whether one answered.
func (c *Connection) leaveBootloader(ctx context.Context, t protocol.Transport) bool {
	bl := protocol.NewBootloader(t, c.opts.ProbeReadTimeout)

	signature, err := bl.SignOn(ctx)
	if err != nil {
		c.logger.Debug("No bootloader answered", zap.Error(err))
		return false
	}
	if err := bl.LeaveISP(ctx); err != nil {
		c.logger.Warn("Bootloader did not leave programming mode", zap.String("signature", signature), zap.Error(err))
		return false
	}

	c.logger.Info("Left bootloader", zap.String("signature", signature))
	return true
}

// tryBitrate counts temperature reports at the current bitrate. Errors are
// returned only for cancellation and failed writes.
func (c *Connection) tryBitrate(ctx context.Context, t protocol.Transport, bitrate int) (bool, error) {
	start := time.Now()
	successes := 0
	defer func() {
		c.logger.LogProbe(bitrate, successes, time.Since(start), successes >= c.opts.RequiredOkCount)
	}()

	if err := sleepContext(ctx, c.opts.BootloaderWait); err != nil {
		return false, err
	}

	if err := t.SetReadTimeout(c.opts.ReadTimeout); err != nil {
		return false, nil
	}
	if err := t.Write(ctx, []byte("\n")); err != nil {
		return false, ctxOr(ctx, nil)
	}
	if err := t.Write(ctx, probeCommand); err != nil {
		return false, ctxOr(ctx, nil)
	}

	deadline := start.Add(c.opts.BootloaderWait + c.opts.ProbeWindow)
	for time.Now().Before(deadline) {
		line, err := t.ReadLine(ctx)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			c.logger.Debug("Probe read failed", zap.Int("bitrate", bitrate), zap.Error(err))
			return false, nil
		}

		if bytes.Contains(line, []byte("T:")) {
			successes++
			if successes >= c.opts.RequiredOkCount {
				if err := t.SetReadTimeout(c.opts.ReadTimeout); err != nil {
					return false, fmt.Errorf("failed to restore read timeout: %w", err)
				}
				return true, nil
			}
			if successes == 1 {
				_ = t.SetReadTimeout(c.opts.ProbeReadTimeout)
			}
		}

		if err := t.Write(ctx, probeCommand); err != nil {
			return false, ctxOr(ctx, nil)
		}
	}
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ctxOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
