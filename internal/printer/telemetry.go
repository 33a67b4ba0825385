package printer

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/marlin"
)

// scheduleTelemetry queues a temperature poll once per telemetry interval
// while a job is loaded.
func (c *Connection) scheduleTelemetry(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Jobbed() || now.Before(c.lastPollDeadline) {
		return
	}
	c.lastPollDeadline = now.Add(c.opts.TelemetryInterval)
	c.queuePollLocked()
}

// queuePollLocked queues M105 for the next extruder in round-robin order.
// At most one poll is queued at a time.
func (c *Connection) queuePollLocked() {
	if c.pollPending {
		return
	}

	tool := c.pollIndex
	cmd := Command{
		Text: marlin.CmdTemperature + " T" + strconv.Itoa(tool),
		poll: true,
		tool: tool,
	}
	if err := c.queue.Enqueue(cmd); err != nil {
		c.logger.Debug("Temperature poll skipped", zap.Error(err))
		return
	}

	c.pollPending = true
	c.pollIndex = (c.pollIndex + 1) % c.extruderCount
}
