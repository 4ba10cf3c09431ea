package debate

import (
	"encoding/json"
	"strings"
	"time"
)

// Mode selects how participants are grouped into the two sides.
type Mode string

const (
	// ModeDuel is one debater per side. The opposing debater may be a bot.
	ModeDuel Mode = "duel"
	// ModeTeam groups participants by team id into exactly two teams.
	ModeTeam Mode = "team"
)

func (m Mode) Valid() bool { return m == ModeDuel || m == ModeTeam }

// Participant is a debater. Spectators and viewers are not participants.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	TeamID      string    `json:"teamId,omitempty"`
	Bot         bool      `json:"bot,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Session is the state of one debate. It is plain data plus invariants and
// is not safe for concurrent use: the room that owns it serializes every
// mutation.
type Session struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time

	// Teams lists the team ids expected to take part in team mode. When
	// empty, the first two distinct team ids that join become the teams.
	Teams []string

	topic        string
	phase        Phase
	participants []*Participant
	roles        map[string]Stance
	readiness    map[string]bool
	transcripts  *Transcripts

	judgmentRequested bool
	verdict           json.RawMessage
	finishedAt        time.Time
}

// NewSession returns a session in Setup.
func NewSession(id string, mode Mode, now time.Time) *Session {
	if !mode.Valid() {
		mode = ModeDuel
	}
	return &Session{
		ID:          id,
		Mode:        mode,
		CreatedAt:   now,
		phase:       PhaseSetup,
		roles:       make(map[string]Stance),
		readiness:   make(map[string]bool),
		transcripts: NewTranscripts(),
	}
}

func (s *Session) Topic() string { return s.topic }

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) Started() bool { return s.phase != PhaseSetup }

func (s *Session) Transcripts() *Transcripts { return s.transcripts }

func (s *Session) FinishedAt() time.Time { return s.finishedAt }

// SetTopic overwrites the topic. Only allowed in Setup.
func (s *Session) SetTopic(topic string) error {
	if s.phase != PhaseSetup {
		return ErrNotInSetup
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	s.topic = topic
	return nil
}

// SideKey returns the key a participant's stance is stored under: the team
// id in team mode, the user id otherwise.
func (s *Session) SideKey(p *Participant) string {
	if s.Mode == ModeTeam {
		return p.TeamID
	}
	return p.UserID
}

// AddParticipant registers p. A participant that is already present keeps
// its readiness and side; only the display name is refreshed. The returned
// bool reports whether p was already present.
func (s *Session) AddParticipant(p Participant) (*Participant, bool, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return nil, false, ErrEmptyUserID
	}
	if existing := s.Participant(p.UserID); existing != nil {
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
		return existing, true, nil
	}
	if err := s.admit(p); err != nil {
		return nil, false, err
	}
	np := p
	if np.DisplayName == "" {
		np.DisplayName = np.UserID
	}
	s.participants = append(s.participants, &np)
	// Bots never toggle readiness themselves.
	s.readiness[np.UserID] = np.Bot
	return &np, false, nil
}

func (s *Session) admit(p Participant) error {
	if s.Mode == ModeDuel {
		if len(s.participants) >= 2 {
			return ErrRoomFull
		}
		return nil
	}
	p.TeamID = strings.TrimSpace(p.TeamID)
	if p.TeamID == "" {
		return validationError("missing_team", "team mode requires a team id")
	}
	if len(s.Teams) > 0 {
		for _, t := range s.Teams {
			if t == p.TeamID {
				return nil
			}
		}
		return validationError("unknown_team", "team %q is not part of this debate", p.TeamID)
	}
	teams := s.presentTeams()
	if len(teams) >= 2 && teams[0] != p.TeamID && teams[1] != p.TeamID {
		return ErrRoomFull
	}
	return nil
}

// RemoveParticipant drops userID together with its readiness entry. Before
// the debate starts, a side left without members also loses its stance.
func (s *Session) RemoveParticipant(userID string) bool {
	idx := -1
	for i, p := range s.participants {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := s.participants[idx]
	s.participants = append(s.participants[:idx], s.participants[idx+1:]...)
	delete(s.readiness, userID)

	if s.phase == PhaseSetup {
		side := s.SideKey(removed)
		if len(s.members(side)) == 0 {
			delete(s.roles, side)
		}
	}
	return true
}

// Participant returns the participant with userID, or nil.
func (s *Session) Participant(userID string) *Participant {
	for _, p := range s.participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Participants returns a copy of the ordered participant list.
func (s *Session) Participants() []Participant {
	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

func (s *Session) ParticipantCount() int { return len(s.participants) }

// HumanCount returns the number of non-bot participants.
func (s *Session) HumanCount() int {
	n := 0
	for _, p := range s.participants {
		if !p.Bot {
			n++
		}
	}
	return n
}

func (s *Session) members(side string) []*Participant {
	var out []*Participant
	for _, p := range s.participants {
		if s.SideKey(p) == side {
			out = append(out, p)
		}
	}
	return out
}

// Members returns the participants of one side.
func (s *Session) Members(side string) []Participant {
	var out []Participant
	for _, p := range s.members(side) {
		out = append(out, *p)
	}
	return out
}

// presentTeams returns distinct team ids in join order.
func (s *Session) presentTeams() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range s.participants {
		if p.TeamID == "" || seen[p.TeamID] {
			continue
		}
		seen[p.TeamID] = true
		out = append(out, p.TeamID)
	}
	return out
}

// Sides returns the side keys in a stable order: expected teams first in
// team mode, join order otherwise.
func (s *Session) Sides() []string {
	if s.Mode == ModeTeam {
		if len(s.Teams) > 0 {
			return append([]string(nil), s.Teams...)
		}
		return s.presentTeams()
	}
	out := make([]string, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p.UserID)
	}
	return out
}

// AssignStance gives the side of userID the requested stance. A stance held
// by the other side is rejected and leaves roles untouched.
func (s *Session) AssignStance(userID string, stance Stance) error {
	if s.phase != PhaseSetup {
		return ErrNotInSetup
	}
	if !stance.Valid() {
		return ErrInvalidStance
	}
	p := s.Participant(userID)
	if p == nil {
		return ErrUnknownUser
	}
	side := s.SideKey(p)
	for other, held := range s.roles {
		if other != side && held == stance {
			return ErrStanceTaken
		}
	}
	s.roles[side] = stance
	return nil
}

// StanceOf returns the stance of the side userID belongs to.
func (s *Session) StanceOf(userID string) (Stance, bool) {
	p := s.Participant(userID)
	if p == nil {
		return "", false
	}
	st, ok := s.roles[s.SideKey(p)]
	return st, ok
}

// SideWithStance returns the side key currently holding stance.
func (s *Session) SideWithStance(stance Stance) (string, bool) {
	for side, held := range s.roles {
		if held == stance {
			return side, true
		}
	}
	return "", false
}

// Roles returns a copy of side key -> stance.
func (s *Session) Roles() map[string]Stance {
	out := make(map[string]Stance, len(s.roles))
	for k, v := range s.roles {
		out[k] = v
	}
	return out
}

// completeRoles hands out the stances nobody picked so that every side
// holds one once the debate starts.
func (s *Session) completeRoles() {
	for _, side := range s.Sides() {
		if _, ok := s.roles[side]; ok {
			continue
		}
		if _, taken := s.SideWithStance(StanceFor); !taken {
			s.roles[side] = StanceFor
		} else if _, taken := s.SideWithStance(StanceAgainst); !taken {
			s.roles[side] = StanceAgainst
		}
	}
}

// SetReady records the readiness of userID.
func (s *Session) SetReady(userID string, ready bool) error {
	p := s.Participant(userID)
	if p == nil {
		return ErrUnknownUser
	}
	if p.Bot {
		return nil
	}
	s.readiness[userID] = ready
	return nil
}

func (s *Session) IsReady(userID string) bool { return s.readiness[userID] }

// ReadyCount returns how many present participants are ready.
func (s *Session) ReadyCount() int {
	n := 0
	for _, p := range s.participants {
		if s.readiness[p.UserID] {
			n++
		}
	}
	return n
}

// Advance moves the session to the phase that follows the current one. Any
// other target, including a stale resync to Setup, is out of order and
// leaves the session untouched. The outgoing phase's transcript is sealed.
func (s *Session) Advance(to Phase) error {
	if to == PhaseSetup && s.phase != PhaseSetup {
		return outOfOrderError("stale_resync", "session already left setup")
	}
	next, ok := s.phase.Next()
	if !ok || to != next {
		return outOfOrderError("unexpected_phase", "expected %q after %q, got %q", next, s.phase, to)
	}
	if s.phase == PhaseSetup {
		s.completeRoles()
	} else {
		s.transcripts.Seal(s.phase)
	}
	s.phase = to
	if to == PhaseFinished {
		s.finishedAt = time.Now()
	}
	return nil
}

// MarkJudgmentRequested returns true only the first time it is called.
func (s *Session) MarkJudgmentRequested() bool {
	if s.judgmentRequested {
		return false
	}
	s.judgmentRequested = true
	return true
}

func (s *Session) JudgmentRequested() bool { return s.judgmentRequested }

// SetVerdict records the encoded verdict. It can be set once.
func (s *Session) SetVerdict(v json.RawMessage) error {
	if s.verdict != nil {
		return ErrVerdictSet
	}
	s.verdict = append(json.RawMessage(nil), v...)
	return nil
}

func (s *Session) Verdict() json.RawMessage { return s.verdict }

func (s *Session) HasVerdict() bool { return s.verdict != nil }
