package websocket

import (
	"strings"
	"time"

	"debatehub/internal/debate"
)

// phaseEndTolerance absorbs clock skew between a client's local timer and
// the phase clock.
const phaseEndTolerance = time.Second

var errViewerReadOnly = &debate.Error{Kind: debate.ErrValidation, Code: "viewer_read_only", Message: "viewers cannot change the debate"}

// attach registers a new connection. Debater connections join the session
// right away; a connection the session cannot seat is told why and closed.
func (r *Room) attach(c *Client) {
	if c.viewer {
		r.addConnection(c)
		r.sendTo(c, Outbound{Type: TypeStateSync, UserID: c.userID, Username: c.username})
		return
	}
	if err := r.join(c, c.username); err != nil {
		r.logger.Info("join rejected", "conn", c.id, "user", c.userID, "reason", debate.Code(err))
		r.sendError(c, err)
		c.close()
		if len(r.clients) == 0 && !r.session.Started() {
			r.evict("no connections before start")
		}
	}
}

func (r *Room) addConnection(c *Client) {
	if _, ok := r.clients[c.id]; ok {
		return
	}
	r.clients[c.id] = c
	r.order = append(r.order, c.id)
	r.logger.Info("connection attached", "conn", c.id, "user", c.userID, "viewer", c.viewer, "connections", len(r.clients))
}

// join seats c's user as a participant, or refreshes the display name of a
// participant that is already seated.
func (r *Room) join(c *Client, username string) error {
	if name := strings.TrimSpace(username); name != "" {
		c.username = name
	}
	_, existed, err := r.session.AddParticipant(debate.Participant{
		UserID:      c.userID,
		DisplayName: c.username,
		TeamID:      c.teamID,
		JoinedAt:    r.now(),
	})
	if err != nil {
		return err
	}
	r.addConnection(c)

	snap := r.snapshot()
	r.sendTo(c, Outbound{Type: TypeStateSync, UserID: c.userID, Username: c.username, State: snap})
	r.broadcastExcept(c, Outbound{Type: TypeRoomParticipants, Participants: snap.Participants, State: snap})
	if r.session.Mode == debate.ModeTeam {
		r.sendTo(c, Outbound{Type: TypeTeamMembers, TeamID: c.teamID, Participants: r.teamMembers(c.teamID)})
		r.broadcastTeamStatus()
	}
	if !existed {
		r.announceGate(r.gate.Recheck())
	}
	if r.session.Started() {
		r.sendTurnStatus()
	}
	return nil
}

// detach removes a connection. When it was the user's last one, the
// participant leaves the session too.
func (r *Room) detach(c *Client) {
	if _, ok := r.clients[c.id]; !ok {
		return
	}
	delete(r.clients, c.id)
	for i, id := range r.order {
		if id == c.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	c.close()
	r.logger.Info("connection detached", "conn", c.id, "user", c.userID, "connections", len(r.clients))

	if !c.viewer && len(r.connectionsOf(c.userID)) == 0 && r.session.RemoveParticipant(c.userID) {
		ev := r.gate.Recheck()
		snap := r.snapshot()
		r.broadcast(Outbound{Type: TypeRoomParticipants, Participants: snap.Participants, State: snap})
		if r.session.Mode == debate.ModeTeam {
			r.broadcastTeamStatus()
		}
		r.announceGate(ev)
	}
	if len(r.clients) == 0 && !r.session.Started() {
		r.evict("no connections before start")
	}
}

func (r *Room) dispatch(c *Client, msg inbound) error {
	if c.viewer {
		switch m := msg.(type) {
		case *joinMessage:
			r.sendTo(c, Outbound{Type: TypeStateSync, UserID: c.userID, Username: c.username})
			return nil
		case *signalMessage:
			return r.relaySignal(c, m)
		case *requestOfferMessage:
			return r.relayRequestOffer(c, m)
		}
		return errViewerReadOnly
	}

	switch m := msg.(type) {
	case *joinMessage:
		return r.join(c, m.Username)
	case *topicChangeMessage:
		return r.handleTopicChange(c, m)
	case *roleSelectionMessage:
		return r.handleRoleSelection(c, m)
	case *readyMessage:
		return r.handleReady(c, m)
	case *phaseChangeMessage:
		return r.handlePhaseChange(c, m)
	case *speechTextMessage:
		return r.handleSpeechText(c, m)
	case *liveTranscriptMessage:
		return r.handleLiveTranscript(c, m)
	case *signalMessage:
		return r.relaySignal(c, m)
	case *requestOfferMessage:
		return r.relayRequestOffer(c, m)
	}
	return malformed("unsupported message %q", msg.messageType())
}

func (r *Room) handleTopicChange(c *Client, m *topicChangeMessage) error {
	if err := r.session.SetTopic(m.Topic); err != nil {
		return err
	}
	r.logger.Info("topic changed", "user", c.userID, "topic", r.session.Topic())
	r.broadcast(Outbound{Type: TypeTopicChange, UserID: c.userID, Username: c.username, Topic: r.session.Topic()})
	return nil
}

func (r *Room) handleRoleSelection(c *Client, m *roleSelectionMessage) error {
	if err := r.session.AssignStance(c.userID, m.Role); err != nil {
		return err
	}
	r.broadcast(Outbound{Type: TypeRoleSelection, UserID: c.userID, Username: c.username, TeamID: c.teamID, Role: m.Role})
	if r.session.Mode == debate.ModeTeam {
		r.broadcastTeamStatus()
	}
	return nil
}

func (r *Room) handleReady(c *Client, m *readyMessage) error {
	ready := m.Ready != nil && *m.Ready
	ev, err := r.gate.SetReady(c.userID, ready)
	if err != nil {
		return err
	}
	r.broadcast(Outbound{Type: TypeReady, UserID: c.userID, Username: c.username, TeamID: c.teamID, Ready: boolPtr(ready)})
	if r.session.Mode == debate.ModeTeam {
		r.broadcastTeamStatus()
	}
	r.announceGate(ev)
	return nil
}

// handlePhaseChange treats a client phaseChange as a proposal. Setup is only
// left by the readiness countdown. A speaking phase ends early when the side
// holding the floor yields it, or when its time is within phaseEndTolerance
// of running out; otherwise the phase clock decides.
func (r *Room) handlePhaseChange(c *Client, m *phaseChangeMessage) error {
	phase := r.session.Phase()
	if next, ok := phase.Next(); !ok || m.Phase != next {
		// Rejected as out of order; the session names the reason.
		return r.session.Advance(m.Phase)
	}
	if phase == debate.PhaseSetup {
		return debate.ErrCountdownPending
	}
	stance, _ := r.session.StanceOf(c.userID)
	if !debate.WhoseTurn(phase, stance) && r.clock.Remaining() > phaseEndTolerance {
		return debate.ErrPhaseNotOver
	}
	return r.advanceTo(m.Phase, "client")
}

// handleSpeechText appends a final transcript fragment for the side that
// holds the floor and echoes it to the room.
func (r *Room) handleSpeechText(c *Client, m *speechTextMessage) error {
	phase := r.session.Phase()
	if m.Phase != "" && m.Phase != phase {
		if m.Phase.Before(phase) {
			return debate.ErrTranscriptSealed
		}
		return &debate.Error{Kind: debate.ErrOutOfOrder, Code: "stale_phase", Message: "fragment is for a phase that is not active"}
	}
	stance, ok := r.session.StanceOf(c.userID)
	if !ok || !debate.WhoseTurn(phase, stance) {
		return debate.ErrNotYourTurn
	}
	text := strings.TrimSpace(m.SpeechText)
	if text == "" {
		return nil
	}
	if err := r.session.Transcripts().Append(phase, stance, text); err != nil {
		return err
	}
	r.broadcast(Outbound{Type: TypeSpeechText, UserID: c.userID, Username: c.username, Phase: phase, Role: stance, SpeechText: text})
	return nil
}

// handleLiveTranscript relays interim captions. They never reach the
// transcript.
func (r *Room) handleLiveTranscript(c *Client, m *liveTranscriptMessage) error {
	stance, _ := r.session.StanceOf(c.userID)
	r.broadcastExcept(c, Outbound{
		Type:           TypeLiveTranscript,
		UserID:         c.userID,
		Username:       c.username,
		Phase:          r.session.Phase(),
		Role:           stance,
		LiveTranscript: m.LiveTranscript,
	})
	return nil
}

func (r *Room) announceGate(ev debate.GateEvent) {
	switch ev {
	case debate.GateCountdownStarted:
		r.logger.Info("all participants ready, countdown started")
		r.broadcast(Outbound{Type: TypeCountdownStart, Countdown: int(r.gate.Countdown().Seconds())})
	case debate.GateCountdownCancelled:
		r.logger.Info("countdown cancelled")
		r.broadcast(Outbound{Type: TypeCountdownCancel})
	}
}

func (r *Room) teamMembers(teamID string) []debate.ParticipantView {
	var out []debate.ParticipantView
	for _, p := range r.snapshot().Participants {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) broadcastTeamStatus() {
	r.broadcast(Outbound{Type: TypeTeamStatus})
}
