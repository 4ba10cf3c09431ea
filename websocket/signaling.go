package websocket

import "debatehub/internal/debate"

var errNoSignalTarget = &debate.Error{Kind: debate.ErrValidation, Code: "unknown_target", Message: "no connection matches the signaling target"}

// relaySignal forwards an offer, answer or candidate. The connection id
// wins over the target user; with neither, every other connection gets it.
// The relay reads routing ids only and never looks at the session.
func (r *Room) relaySignal(c *Client, m *signalMessage) error {
	out := Outbound{
		Type:             m.kind,
		UserID:           c.userID,
		Username:         c.username,
		ConnectionID:     m.ConnectionID,
		FromConnectionID: c.id,
		TargetUserID:     m.TargetUserID,
		Offer:            m.Offer,
		Answer:           m.Answer,
		Candidate:        m.Candidate,
	}
	if out.ConnectionID == "" {
		out.ConnectionID = c.id
	}

	targets := r.signalTargets(c, m.ConnectionID, m.TargetUserID)
	if len(targets) == 0 {
		if m.ConnectionID != "" || m.TargetUserID != "" {
			return errNoSignalTarget
		}
		return nil
	}
	for _, t := range targets {
		r.deliver(t, out)
	}
	return nil
}

func (r *Room) signalTargets(sender *Client, connectionID, targetUserID string) []*Client {
	if connectionID != "" && connectionID != sender.id {
		if t, ok := r.clients[connectionID]; ok {
			return []*Client{t}
		}
		if targetUserID == "" {
			return nil
		}
	}
	var out []*Client
	for _, t := range r.connections() {
		if t == sender {
			continue
		}
		if targetUserID == "" || t.userID == targetUserID {
			out = append(out, t)
		}
	}
	return out
}

// relayRequestOffer asks every debater connection to open a dedicated peer
// connection for the requesting viewer.
func (r *Room) relayRequestOffer(c *Client, m *requestOfferMessage) error {
	out := Outbound{
		Type:             TypeRequestOffer,
		UserID:           c.userID,
		Username:         c.username,
		ConnectionID:     c.id,
		FromConnectionID: c.id,
		RequestID:        m.RequestID,
	}
	for _, t := range r.connections() {
		if t == c || t.viewer {
			continue
		}
		r.deliver(t, out)
	}
	return nil
}
