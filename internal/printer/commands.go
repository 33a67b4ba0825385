package printer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/marlin"
	"printer-service/internal/utils"
)

// StartPrint loads lines as a new program and starts streaming it. A line
// number reset is prepended, so program line i is sent as N<i+1>.
func (c *Connection) StartPrint(lines []string) error {
	program := make([]marlin.Payload, 0, len(lines)+1)
	program = append(program, marlin.Payload{Text: marlin.CmdResetLine})
	for _, line := range lines {
		program = append(program, marlin.Preprocess(line))
	}

	var ev events

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start print while %s", ErrInvalidStateTransition, state)
	}

	now := time.Now()
	c.program = program
	c.cursor = 0
	c.preload = min(c.opts.PreloadLines, len(program))
	if c.preload > 0 {
		c.okGate = false
	}
	c.okDeadline = now.Add(c.opts.OkSilenceTimeout)
	c.lastPollDeadline = now.Add(c.opts.TelemetryInterval)
	if c.queue.dropPolls() > 0 {
		c.pollPending = false
	}
	if c.progress != 0 {
		c.progress = 0
		ev.progress(0)
	}
	c.job = utils.NewJobLogger(c.logger.Logger, newJobID(), len(lines))
	c.job.Start(zap.Int("preload", c.preload))
	c.setStateLocked(&ev, StatePrinting)
	c.unlockAndPublish(ev)
	c.kick()
	return nil
}

// Pause stops program lines from being sent. Direct commands keep flowing.
func (c *Connection) Pause() error {
	return c.transition("pause", StatePrinting, StatePaused)
}

// Resume continues the program from the current cursor.
func (c *Connection) Resume() error {
	return c.transition("resume", StatePaused, StatePrinting)
}

func (c *Connection) transition(action string, from, to State) error {
	var ev events

	c.mu.Lock()
	if c.state != from {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s while %s", ErrInvalidStateTransition, action, state)
	}
	c.setStateLocked(&ev, to)
	c.unlockAndPublish(ev)
	c.kick()
	return nil
}

// Cancel discards the program, resets progress and queues heater shutdown.
// Cancelling while Idle does nothing.
func (c *Connection) Cancel() error {
	var ev events

	c.mu.Lock()
	switch {
	case c.state == StateIdle:
		c.mu.Unlock()
		return nil
	case !c.state.Jobbed():
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel while %s", ErrInvalidStateTransition, state)
	}

	c.program = nil
	c.cursor = 0
	c.preload = 0
	if c.job != nil {
		c.job.Stop("cancelled", nil)
		c.job = nil
	}
	c.progress = 0
	ev.progress(0)
	c.setStateLocked(&ev, StateIdle)

	err := c.queue.Enqueue(Command{Text: marlin.CmdBedOff}, Command{Text: marlin.CmdHotendOff})
	c.unlockAndPublish(ev)
	c.kick()
	if err != nil {
		c.logger.Warn("Failed to queue cooldown after cancel", zap.Error(err))
		return fmt.Errorf("print cancelled but cooldown not queued: %w", err)
	}
	return nil
}

// Send queues direct commands, one per line. Blank and comment-only lines are
// skipped. The whole submission is queued or none of it is.
func (c *Connection) Send(text string) error {
	var cmds []Command
	for _, line := range strings.Split(text, "\n") {
		p := marlin.Preprocess(line)
		if p.Text == "" {
			continue
		}
		cmds = append(cmds, Command{Text: p.Text})
	}
	if len(cmds) == 0 {
		return nil
	}

	c.mu.Lock()
	if !c.state.Connected() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: send while %s", ErrInvalidStateTransition, state)
	}
	err := c.queue.Enqueue(cmds...)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.kick()
	return nil
}

// kick wakes the listener so queued lines go out without waiting for its
// read to time out.
func (c *Connection) kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SetTargetHotendTemperature sets the target of extruder tool.
func (c *Connection) SetTargetHotendTemperature(tool int, celsius float64) error {
	c.mu.Lock()
	count := c.extruderCount
	c.mu.Unlock()

	if tool < 0 || tool >= count {
		return fmt.Errorf("%w: %d of %d", ErrInvalidExtruder, tool, count)
	}
	return c.Send(fmt.Sprintf("%s T%d S%s", marlin.CmdSetHotendTemp, tool, formatNumber(celsius)))
}

// SetTargetBedTemperature sets the heated bed target.
func (c *Connection) SetTargetBedTemperature(celsius float64) error {
	return c.Send(marlin.CmdSetBedTemp + " S" + formatNumber(celsius))
}

// HomeHead homes all axes.
func (c *Connection) HomeHead() error {
	return c.Send(marlin.CmdHome)
}

// HomeBed homes the Z axis.
func (c *Connection) HomeBed() error {
	return c.Send(marlin.CmdHomeZ)
}

// MoveHead jogs the head by a relative offset. A zero feed rate keeps the
// firmware's current one.
func (c *Connection) MoveHead(x, y, z, feedRate float64) error {
	move := "G0"
	for _, axis := range []struct {
		letter string
		value  float64
	}{{"X", x}, {"Y", y}, {"Z", z}, {"F", feedRate}} {
		if axis.value != 0 {
			move += " " + axis.letter + formatNumber(axis.value)
		}
	}
	return c.Send(strings.Join([]string{marlin.CmdRelative, move, marlin.CmdAbsolute}, "\n"))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
