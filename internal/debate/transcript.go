package debate

import "strings"

// NoResponse is the sealed value for an acting stance that produced no text.
const NoResponse = "No response"

// Transcripts accumulates speech per (phase, stance). Text is appendable only
// until the phase is sealed; sealed entries never change afterwards.
type Transcripts struct {
	open   map[Phase]map[Stance]string
	sealed map[Phase]map[Stance]string
}

func NewTranscripts() *Transcripts {
	return &Transcripts{
		open:   make(map[Phase]map[Stance]string),
		sealed: make(map[Phase]map[Stance]string),
	}
}

// Append adds fragment to the open text of (phase, stance), separated from
// earlier fragments by a single space. Blank fragments are ignored.
func (t *Transcripts) Append(phase Phase, stance Stance, fragment string) error {
	if !stance.Valid() {
		return ErrInvalidStance
	}
	if _, ok := ResolveTurn(phase); !ok {
		return outOfOrderError("no_speaking_phase", "phase %q does not accept speech", phase)
	}
	if t.IsSealed(phase) {
		return ErrTranscriptSealed
	}
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil
	}
	byStance, ok := t.open[phase]
	if !ok {
		byStance = make(map[Stance]string)
		t.open[phase] = byStance
	}
	if cur := byStance[stance]; cur != "" {
		byStance[stance] = cur + " " + fragment
	} else {
		byStance[stance] = fragment
	}
	return nil
}

// Seal freezes the text of phase. The acting stance gets NoResponse when it
// said nothing. Sealing twice is a no-op.
func (t *Transcripts) Seal(phase Phase) {
	if t.IsSealed(phase) {
		return
	}
	out := make(map[Stance]string, 2)
	for stance, text := range t.open[phase] {
		out[stance] = text
	}
	if acting, ok := ActingStance(phase); ok && strings.TrimSpace(out[acting]) == "" {
		out[acting] = NoResponse
	}
	t.sealed[phase] = out
	delete(t.open, phase)
}

func (t *Transcripts) IsSealed(phase Phase) bool {
	_, ok := t.sealed[phase]
	return ok
}

// Sealed returns the frozen text for (phase, stance).
func (t *Transcripts) Sealed(phase Phase, stance Stance) (string, bool) {
	byStance, ok := t.sealed[phase]
	if !ok {
		return "", false
	}
	text, ok := byStance[stance]
	return text, ok
}

// Current returns the text of (phase, stance), sealed or not.
func (t *Transcripts) Current(phase Phase, stance Stance) string {
	if text, ok := t.Sealed(phase, stance); ok {
		return text
	}
	return t.open[phase][stance]
}

// Bundle returns phase -> sealed text for every phase stance acted in. This
// is the shape the judge submission expects.
func (t *Transcripts) Bundle(stance Stance) map[Phase]string {
	out := make(map[Phase]string)
	for _, p := range SpeakingPhases {
		if acting, _ := ActingStance(p); acting != stance {
			continue
		}
		if text, ok := t.Sealed(p, stance); ok {
			out[p] = text
		}
	}
	return out
}

// Snapshot copies every sealed entry.
func (t *Transcripts) Snapshot() map[Phase]map[Stance]string {
	out := make(map[Phase]map[Stance]string, len(t.sealed))
	for p, byStance := range t.sealed {
		cp := make(map[Stance]string, len(byStance))
		for s, text := range byStance {
			cp[s] = text
		}
		out[p] = cp
	}
	return out
}
