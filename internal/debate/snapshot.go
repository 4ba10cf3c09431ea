package debate

import "encoding/json"

// ParticipantView is a participant as clients see it.
type ParticipantView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	TeamID      string `json:"teamId,omitempty"`
	Stance      Stance `json:"stance,omitempty"`
	Ready       bool   `json:"ready"`
	Bot         bool   `json:"bot,omitempty"`
}

// TeamView aggregates one team in team mode.
type TeamView struct {
	TeamID       string `json:"teamId"`
	Stance       Stance `json:"stance,omitempty"`
	MembersCount int    `json:"membersCount"`
	ReadyCount   int    `json:"readyCount"`
}

// Snapshot is everything a freshly connected client needs to render the
// room. Every outbound message carries one.
type Snapshot struct {
	RoomID           string            `json:"roomId"`
	Mode             Mode              `json:"mode"`
	Topic            string            `json:"topic"`
	Phase            Phase             `json:"phase"`
	CurrentTurn      Stance            `json:"currentTurn,omitempty"`
	TurnType         TurnType          `json:"turnType,omitempty"`
	Roles            map[string]Stance `json:"roles"`
	Participants     []ParticipantView `json:"participants"`
	Teams            []TeamView        `json:"teams,omitempty"`
	ParticipantCount int               `json:"participantCount"`
	ReadyCount       int               `json:"readyCount"`
	AllReady         bool              `json:"allReady"`
	Timer            TimerState        `json:"timer"`
	Countdown        int               `json:"countdown,omitempty"`
	JudgmentPending  bool              `json:"judgmentPending,omitempty"`
	Verdict          json.RawMessage   `json:"verdict,omitempty"`
}

// SessionStatus is what the HTTP side may learn about a running session.
// Stance is the asking user's stance, empty when they hold none.
type SessionStatus struct {
	Live   bool
	Phase  Phase
	Stance Stance
}

// BuildSnapshot assembles the client view of s. gate and clock may be nil.
func BuildSnapshot(s *Session, gate *ReadinessGate, clock *PhaseClock) Snapshot {
	snap := Snapshot{
		RoomID:           s.ID,
		Mode:             s.Mode,
		Topic:            s.topic,
		Phase:            s.phase,
		Roles:            s.Roles(),
		Participants:     make([]ParticipantView, 0, len(s.participants)),
		ParticipantCount: len(s.participants),
		ReadyCount:       s.ReadyCount(),
		JudgmentPending:  s.judgmentRequested && s.verdict == nil,
		Verdict:          s.verdict,
	}
	if t, ok := ResolveTurn(s.phase); ok {
		snap.CurrentTurn = t.Stance
		snap.TurnType = t.Type
	}
	for _, p := range s.participants {
		snap.Participants = append(snap.Participants, ParticipantView{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			TeamID:      p.TeamID,
			Stance:      s.roles[s.SideKey(p)],
			Ready:       s.readiness[p.UserID],
			Bot:         p.Bot,
		})
	}
	if s.Mode == ModeTeam {
		for _, team := range s.Sides() {
			tv := TeamView{TeamID: team, Stance: s.roles[team]}
			for _, m := range s.members(team) {
				tv.MembersCount++
				if s.readiness[m.UserID] {
					tv.ReadyCount++
				}
			}
			snap.Teams = append(snap.Teams, tv)
		}
	}
	if gate != nil {
		snap.AllReady = gate.AllReady()
		snap.Countdown = gate.CountdownRemaining()
	}
	if clock != nil {
		snap.Timer = clock.State()
	} else {
		snap.Timer = TimerState{Phase: s.phase}
	}
	return snap
}
