package octohub

import "time"

type beatKind int

const (
	beatTick    beatKind = iota // interval elapsed, time to ping
	beatTimeout                 // no pong before the deadline
)

// heartbeat is the ping/pong liveness monitor of one connectedPhase.
//
// Timer callbacks only call fire; the supervisor takes its lock, checks the
// monitor still belongs to the current connection and then calls back into
// beat, pong, expired or stop. All methods therefore run under the
// supervisor lock.
type heartbeat struct {
	clock    clock
	interval time.Duration
	timeout  time.Duration
	fire     func(h *heartbeat, kind beatKind, seq uint64)

	tick     timer
	deadline timer
	due      time.Time // when the armed deadline falls due
	seq      uint64    // identifies the armed deadline
	stopped  bool
}

func newHeartbeat(clk clock, interval, timeout time.Duration, fire func(*heartbeat, beatKind, uint64)) *heartbeat {
	return &heartbeat{
		clock:    clk,
		interval: interval,
		timeout:  timeout,
		fire:     fire,
	}
}

func (h *heartbeat) start() {
	h.armTick()
}

func (h *heartbeat) armTick() {
	h.tick = h.clock.AfterFunc(h.interval, func() {
		h.fire(h, beatTick, 0)
	})
}

// beat starts a new ping cycle and schedules the next interval. A deadline
// left unanswered by the previous ping is kept, so the timeout always runs
// from the first unanswered ping. If that deadline is already due, beat
// reports false and arms nothing: the pong was missed, even when the tick
// got the supervisor lock before the deadline's own callback.
func (h *heartbeat) beat() bool {
	now := h.clock.Now()
	if h.deadline != nil && !now.Before(h.due) {
		return false
	}
	if h.deadline == nil {
		h.seq++
		seq := h.seq
		h.due = now.Add(h.timeout)
		h.deadline = h.clock.AfterFunc(h.timeout, func() {
			h.fire(h, beatTimeout, seq)
		})
	}
	h.armTick()
	return true
}

// pong disarms the pending deadline. It reports whether one was pending.
func (h *heartbeat) pong() bool {
	if h.deadline == nil {
		return false
	}
	h.disarm()
	return true
}

// expired reports whether a timeout fired for seq is still the armed deadline.
func (h *heartbeat) expired(seq uint64) bool {
	return !h.stopped && h.deadline != nil && seq == h.seq
}

func (h *heartbeat) disarm() {
	if h.deadline != nil {
		h.deadline.Stop()
		h.deadline = nil
	}
}

// stop cancels both timers. A stopped monitor ignores late timer callbacks.
func (h *heartbeat) stop() {
	h.stopped = true
	if h.tick != nil {
		h.tick.Stop()
		h.tick = nil
	}
	h.disarm()
}
