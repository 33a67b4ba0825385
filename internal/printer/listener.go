package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/marlin"
	"printer-service/internal/protocol"
)

// listen owns the transport until ctx ends or the connection fails.
func (c *Connection) listen(ctx context.Context, t protocol.Transport) {
	c.logger.Debug("Listener started")
	defer c.logger.Debug("Listener stopped")

	for {
		if !c.pump(ctx, t) {
			return
		}

		readCtx, stop := c.wakeable(ctx)
		line, err := t.ReadLine(readCtx)
		woken := readCtx.Err() != nil
		stop()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if woken && errors.Is(err, context.Canceled) {
				continue
			}
			c.fail(KindReadFailed, fmt.Errorf("listener read: %w", err))
			return
		}

		if line == nil {
			if !woken {
				c.onSilence(time.Now())
			}
			continue
		}

		text := string(line)
		if marlin.IsNumberedError(text) {
			next, err := t.ReadLine(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				c.fail(KindReadFailed, fmt.Errorf("listener read: %w", err))
				return
			}
			if len(next) > 0 {
				text += " " + string(next)
			}
		}

		if !c.dispatch(text) {
			return
		}
		c.scheduleTelemetry(time.Now())
	}
}

// wakeable derives a read context that kick cancels.
func (c *Connection) wakeable(ctx context.Context) (context.Context, context.CancelFunc) {
	readCtx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	go func() {
		select {
		case <-c.wake:
			cancel()
		case <-stop:
		}
	}()
	return readCtx, func() {
		close(stop)
		cancel()
	}
}

// onSilence handles a read that timed out with no traffic.
func (c *Connection) onSilence(now time.Time) {
	var ev events

	c.mu.Lock()
	if c.state.Connected() && !now.Before(c.okDeadline) {
		c.logger.Debug("No reply within silence timeout, assuming ok")
		c.okDeadline = now.Add(c.opts.OkSilenceTimeout)
		c.acceptOkLocked(&ev)
	}
	if c.state == StateIdle {
		c.queuePollLocked()
	}
	c.unlockAndPublish(ev)
	c.scheduleTelemetry(now)
}

// dispatch applies one reply line and reports whether listening continues.
func (c *Connection) dispatch(line string) bool {
	messages, parseErr := c.parser.Parse(line)

	var (
		ev    events
		fatal protocol.Transport
		stop  bool
	)

	c.mu.Lock()
	for _, m := range messages {
		switch m.Kind {
		case marlin.KindOk:
			c.okDeadline = time.Now().Add(c.opts.OkSilenceTimeout)
			c.acceptOkLocked(&ev)

		case marlin.KindResend:
			c.resendLocked(m.Line)

		case marlin.KindTemperature:
			tool := m.Tool
			if tool == marlin.QueriedTool {
				tool = c.queriedTool
			}
			if tool < 0 || tool >= c.extruderCount {
				c.logger.Debug("Temperature for unknown extruder", zap.Int("tool", tool))
				continue
			}
			c.toolTemps[tool] = m.Value
			if m.HasTarget {
				c.toolTargets[tool] = m.Target
			}
			ev.temperature(tool, m.Value)

		case marlin.KindBedTemperature:
			c.bedTemp = m.Value
			if m.HasTarget {
				c.bedTarget = m.Target
			}
			ev.temperature(BedSensor, m.Value)

		case marlin.KindError:
			c.errorLog.Append(m.Text)
			c.logger.LogPrinterError(m.Text, m.Fatal)
			if m.Fatal {
				fatal = c.failLocked(&ev, KindFatalPrinterError, fmt.Errorf("%w: %s", ErrFatalPrinterError, m.Text))
				stop = true
			} else {
				ev.err(KindPrinterReportedError, m.Text)
			}

		default:
			c.logger.Debug("Unhandled reply", zap.String("line", m.Text))
		}
	}

	if parseErr != nil {
		c.errorLog.Append(parseErr.Error())
		c.logger.Warn("Malformed reply", zap.String("line", line), zap.Error(parseErr))
		ev.err(KindMalformedReply, parseErr.Error())
	}
	c.unlockAndPublish(ev)
	if fatal != nil {
		_ = fatal.Close()
	}
	return !stop
}

// acceptOkLocked opens the ok-gate and completes the job when nothing is left.
func (c *Connection) acceptOkLocked(ev *events) {
	c.okGate = true

	if c.state == StatePrinting && c.cursor >= len(c.program) && c.queue.Len() == 0 {
		c.program = nil
		c.cursor = 0
		c.preload = 0
		if c.progress < 1 {
			c.progress = 1
			ev.progress(1)
		}
		if c.job != nil {
			c.job.Success()
			c.job = nil
		}
		c.setStateLocked(ev, StateIdle)
	}
}

func (c *Connection) resendLocked(n uint32) {
	if !c.state.Jobbed() {
		c.logger.Debug("Resend outside a job ignored", zap.Uint32("line", n))
		return
	}

	line := int(n)
	if line > len(c.program) {
		c.logger.Warn("Resend beyond program end", zap.Uint32("line", n), zap.Int("program_length", len(c.program)))
		line = len(c.program)
	}
	c.logger.Info("Printer requested resend", zap.Int("line", line), zap.Int("cursor", c.cursor))
	c.cursor = line
}

// pump writes everything the ok-gate currently allows. It reports false when
// the connection stopped.
func (c *Connection) pump(ctx context.Context, t protocol.Transport) bool {
	for {
		var ev events

		c.mu.Lock()
		if c.transport != t {
			c.mu.Unlock()
			return false
		}
		data, ok := c.nextLocked(&ev)
		c.unlockAndPublish(ev)
		if !ok {
			return true
		}

		if err := c.write(ctx, t, data); err != nil {
			if ctx.Err() != nil {
				return false
			}
			c.fail(KindWriteFailed, err)
			return false
		}
	}
}

// nextLocked picks the next line to send, if any. Direct commands go first
// whenever the gate is open.
func (c *Connection) nextLocked(ev *events) ([]byte, bool) {
	if c.state == StatePrinting && c.preload > 0 {
		if c.cursor < len(c.program) {
			c.preload--
			return c.programLineLocked(ev), true
		}
		c.preload = 0
	}

	if !c.state.Connected() || !c.okGate {
		return nil, false
	}

	if cmd, ok := c.queue.Dequeue(); ok {
		c.okGate = false
		if cmd.poll {
			c.pollPending = false
			c.queriedTool = cmd.tool
		}
		return marlin.Direct(cmd.Text), true
	}

	if c.state == StatePrinting && c.cursor < len(c.program) {
		c.okGate = false
		return c.programLineLocked(ev), true
	}
	return nil, false
}

func (c *Connection) programLineLocked(ev *events) []byte {
	payload := c.program[c.cursor]
	data := marlin.Frame(uint32(c.cursor), payload.Text)
	c.cursor++

	if payload.HasZ {
		c.currentZ = payload.Z
	}
	if p := float64(c.cursor) / float64(len(c.program)); p > c.progress {
		c.progress = p
		ev.progress(p)
	}
	return data
}

// write sends data, retrying once after a write timeout.
func (c *Connection) write(ctx context.Context, t protocol.Transport, data []byte) error {
	err := t.Write(ctx, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, protocol.ErrWriteTimeout) {
		return err
	}

	line := string(data[:len(data)-1])
	c.logger.LogWrite(line, 1, err)

	select {
	case <-time.After(c.opts.WriteRetryDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.Write(ctx, data); err != nil {
		c.logger.LogWrite(line, 2, err)
		if errors.Is(err, protocol.ErrWriteFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", protocol.ErrWriteFailed, err)
	}
	c.logger.LogWrite(line, 2, nil)
	return nil
}
