package debate

import "time"

// Phase is one ordered segment of a debate. The wire values match what the
// web client sends in phaseChange messages.
type Phase string

const (
	PhaseSetup                Phase = "setup"
	PhaseOpeningFor           Phase = "openingFor"
	PhaseOpeningAgainst       Phase = "openingAgainst"
	PhaseCrossForQuestion     Phase = "crossForQuestion"
	PhaseCrossAgainstAnswer   Phase = "crossAgainstAnswer"
	PhaseCrossAgainstQuestion Phase = "crossAgainstQuestion"
	PhaseCrossForAnswer       Phase = "crossForAnswer"
	PhaseClosingFor           Phase = "closingFor"
	PhaseClosingAgainst       Phase = "closingAgainst"
	PhaseFinished             Phase = "finished"
)

// Sequence is the fixed phase order, terminal inclusive.
var Sequence = []Phase{
	PhaseSetup,
	PhaseOpeningFor,
	PhaseOpeningAgainst,
	PhaseCrossForQuestion,
	PhaseCrossAgainstAnswer,
	PhaseCrossAgainstQuestion,
	PhaseCrossForAnswer,
	PhaseClosingFor,
	PhaseClosingAgainst,
	PhaseFinished,
}

// SpeakingPhases are the phases that have an acting stance and a timer.
var SpeakingPhases = Sequence[1 : len(Sequence)-1]

// Index returns the position of p in Sequence, or -1 if p is unknown.
func (p Phase) Index() int {
	for i, s := range Sequence {
		if s == p {
			return i
		}
	}
	return -1
}

func (p Phase) Valid() bool { return p.Index() >= 0 }

func (p Phase) IsTerminal() bool { return p == PhaseFinished }

// Next returns the phase that follows p. The second result is false for the
// terminal phase and for unknown phases.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i == len(Sequence)-1 {
		return "", false
	}
	return Sequence[i+1], true
}

// Before reports whether p comes strictly before q in the sequence.
func (p Phase) Before(q Phase) bool {
	return p.Index() < q.Index()
}

func (p Phase) String() string { return string(p) }

// Stance is one of the two debate sides.
type Stance string

const (
	StanceFor     Stance = "for"
	StanceAgainst Stance = "against"
)

func (s Stance) Valid() bool { return s == StanceFor || s == StanceAgainst }

// Opposite returns the other stance. An invalid stance maps to itself.
func (s Stance) Opposite() Stance {
	switch s {
	case StanceFor:
		return StanceAgainst
	case StanceAgainst:
		return StanceFor
	}
	return s
}

// TurnType is what the acting side is expected to produce in a phase.
type TurnType string

const (
	TurnStatement TurnType = "statement"
	TurnQuestion  TurnType = "question"
	TurnAnswer    TurnType = "answer"
)

// Turn describes who holds the floor during a phase.
type Turn struct {
	Phase  Phase    `json:"phase"`
	Stance Stance   `json:"stance"`
	Type   TurnType `json:"turnType"`
}

var turns = map[Phase]Turn{
	PhaseOpeningFor:           {PhaseOpeningFor, StanceFor, TurnStatement},
	PhaseOpeningAgainst:       {PhaseOpeningAgainst, StanceAgainst, TurnStatement},
	PhaseCrossForQuestion:     {PhaseCrossForQuestion, StanceFor, TurnQuestion},
	PhaseCrossAgainstAnswer:   {PhaseCrossAgainstAnswer, StanceAgainst, TurnAnswer},
	PhaseCrossAgainstQuestion: {PhaseCrossAgainstQuestion, StanceAgainst, TurnQuestion},
	PhaseCrossForAnswer:       {PhaseCrossForAnswer, StanceFor, TurnAnswer},
	PhaseClosingFor:           {PhaseClosingFor, StanceFor, TurnStatement},
	PhaseClosingAgainst:       {PhaseClosingAgainst, StanceAgainst, TurnStatement},
}

// ResolveTurn maps a phase to its acting stance and turn type. Setup and
// Finished have no turn.
func ResolveTurn(p Phase) (Turn, bool) {
	t, ok := turns[p]
	return t, ok
}

// ActingStance returns the stance that holds the floor in p.
func ActingStance(p Phase) (Stance, bool) {
	t, ok := turns[p]
	return t.Stance, ok
}

// TurnTypeOf returns the expected turn type for p.
func TurnTypeOf(p Phase) (TurnType, bool) {
	t, ok := turns[p]
	return t.Type, ok
}

// WhoseTurn reports whether a participant holding stance may speak in p.
// In team mode the answer applies to every member of the team.
func WhoseTurn(p Phase, stance Stance) bool {
	acting, ok := ActingStance(p)
	return ok && stance.Valid() && acting == stance
}

// Durations holds the per phase time limit. Both stances share the same table.
type Durations map[Phase]time.Duration

// DefaultDurations mirrors the web client's phase table.
func DefaultDurations() Durations {
	return Durations{
		PhaseOpeningFor:           60 * time.Second,
		PhaseOpeningAgainst:       60 * time.Second,
		PhaseCrossForQuestion:     30 * time.Second,
		PhaseCrossAgainstAnswer:   30 * time.Second,
		PhaseCrossAgainstQuestion: 30 * time.Second,
		PhaseCrossForAnswer:       30 * time.Second,
		PhaseClosingFor:           45 * time.Second,
		PhaseClosingAgainst:       45 * time.Second,
	}
}

// For returns the duration for p, falling back to the default table.
func (d Durations) For(p Phase) time.Duration {
	if v, ok := d[p]; ok && v > 0 {
		return v
	}
	return DefaultDurations()[p]
}
