package debate

import (
	"math"
	"time"
)

// DefaultCountdown is the pause between everyone readying up and the first
// speaking phase.
const DefaultCountdown = 3 * time.Second

// GateEvent is what a readiness change produced.
type GateEvent int

const (
	GateNone GateEvent = iota
	GateCountdownStarted
	GateCountdownCancelled
)

func (e GateEvent) String() string {
	switch e {
	case GateCountdownStarted:
		return "countdown_start"
	case GateCountdownCancelled:
		return "countdown_cancel"
	}
	return "none"
}

// ReadinessGate holds a session in Setup until every expected participant is
// ready, then runs the start countdown.
type ReadinessGate struct {
	session   *Session
	countdown time.Duration
	now       func() time.Time

	counting bool
	deadline time.Time
}

func NewReadinessGate(s *Session, countdown time.Duration, now func() time.Time) *ReadinessGate {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	if now == nil {
		now = time.Now
	}
	return &ReadinessGate{session: s, countdown: countdown, now: now}
}

// AllReady reports whether the session may start.
//
// Duel: two participants, both ready. Team: every expected team has at
// least one member present and every present member is ready.
func (g *ReadinessGate) AllReady() bool {
	s := g.session
	if len(s.participants) == 0 {
		return false
	}
	switch s.Mode {
	case ModeTeam:
		expected := s.Teams
		if len(expected) == 0 {
			expected = s.presentTeams()
			if len(expected) < 2 {
				return false
			}
		}
		for _, team := range expected {
			if len(s.members(team)) == 0 {
				return false
			}
		}
	default:
		if len(s.participants) != 2 {
			return false
		}
	}
	for _, p := range s.participants {
		if !s.readiness[p.UserID] {
			return false
		}
	}
	return true
}

// SetReady records a readiness change and re-evaluates the countdown.
func (g *ReadinessGate) SetReady(userID string, ready bool) (GateEvent, error) {
	if g.session.phase != PhaseSetup {
		return GateNone, outOfOrderError("already_started", "readiness is frozen once the debate starts")
	}
	if err := g.session.SetReady(userID, ready); err != nil {
		return GateNone, err
	}
	return g.Recheck(), nil
}

// Recheck starts the countdown on the transition to all ready and cancels it
// when readiness is lost. Call it after any membership change.
func (g *ReadinessGate) Recheck() GateEvent {
	if g.session.phase != PhaseSetup {
		g.counting = false
		return GateNone
	}
	all := g.AllReady()
	switch {
	case all && !g.counting:
		g.counting = true
		g.deadline = g.now().Add(g.countdown)
		return GateCountdownStarted
	case !all && g.counting:
		g.counting = false
		return GateCountdownCancelled
	}
	return GateNone
}

// Expire reports, exactly once per countdown, that the countdown elapsed
// while the session is still in Setup. The caller then advances to the
// first speaking phase.
func (g *ReadinessGate) Expire() bool {
	if !g.counting || g.now().Before(g.deadline) {
		return false
	}
	g.counting = false
	return g.session.phase == PhaseSetup
}

func (g *ReadinessGate) Counting() bool { return g.counting }

func (g *ReadinessGate) Countdown() time.Duration { return g.countdown }

// CountdownRemaining returns whole seconds left, 0 when not counting.
func (g *ReadinessGate) CountdownRemaining() int {
	if !g.counting {
		return 0
	}
	left := g.deadline.Sub(g.now())
	if left < 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
