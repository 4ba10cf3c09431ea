package debate

import (
	"math"
	"time"
)

// TimerState is the externally visible countdown.
type TimerState struct {
	Phase            Phase `json:"phase"`
	RemainingSeconds int   `json:"remainingSeconds"`
	Running          bool  `json:"running"`
}

// PhaseClock is the authoritative countdown for the active phase of one
// session. It is not safe for concurrent use; the owning room serializes
// Start, Tick and Cancel.
//
// Remaining time is derived from wall clock deltas between ticks so a starved
// scheduler neither drifts nor fires twice.
type PhaseClock struct {
	now       func() time.Time
	phase     Phase
	remaining time.Duration
	lastTick  time.Time
	running   bool
}

// NewPhaseClock returns a stopped clock. A nil now uses time.Now.
func NewPhaseClock(now func() time.Time) *PhaseClock {
	if now == nil {
		now = time.Now
	}
	return &PhaseClock{now: now}
}

// Start cancels any running countdown and starts a new one for phase.
func (c *PhaseClock) Start(phase Phase, d time.Duration) {
	c.Cancel()
	c.phase = phase
	c.remaining = d
	c.lastTick = c.now()
	c.running = d > 0
}

// Tick advances the countdown by the wall clock time elapsed since the last
// tick. It returns the timed out phase and true exactly once, when the
// countdown crosses zero.
func (c *PhaseClock) Tick() (Phase, bool) {
	if !c.running {
		return "", false
	}
	now := c.now()
	elapsed := now.Sub(c.lastTick)
	if elapsed > 0 {
		c.remaining -= elapsed
	}
	c.lastTick = now
	if c.remaining > 0 {
		return "", false
	}
	c.remaining = 0
	c.running = false
	return c.phase, true
}

// Cancel stops the countdown without firing.
func (c *PhaseClock) Cancel() {
	c.running = false
}

func (c *PhaseClock) Running() bool { return c.running }

func (c *PhaseClock) Phase() Phase { return c.phase }

// Remaining returns the time left, as of the last tick.
func (c *PhaseClock) Remaining() time.Duration {
	if c.remaining < 0 {
		return 0
	}
	return c.remaining
}

// State returns the countdown rounded up to whole seconds.
func (c *PhaseClock) State() TimerState {
	return TimerState{
		Phase:            c.phase,
		RemainingSeconds: int(math.Ceil(c.Remaining().Seconds())),
		Running:          c.running,
	}
}
