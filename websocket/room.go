package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"debatehub/internal/debate"
	"debatehub/services"
)

// Judgment submits a finished session for judging and polls for the
// verdict when another server instance is the one judging.
type Judgment interface {
	SubmitSession(ctx context.Context, roomID, topic string, bundles map[debate.Stance]map[debate.Phase]string) (services.SubmitResult, error)
	Poll(ctx context.Context, roomID string) (services.SubmitResult, error)
}

// BotSpeaker produces the synthetic opponent's speech for one phase.
type BotSpeaker interface {
	Speak(ctx context.Context, turn services.BotTurn) (string, error)
}

// Publisher mirrors room broadcasts to spectators.
type Publisher interface {
	Publish(debateID, eventType string, payload any)
}

// Room events. Everything that touches a session goes through the room's
// queue and is handled on the room goroutine in arrival order.
type (
	joinEvent struct {
		client *Client
	}
	leaveEvent struct {
		client *Client
	}
	messageEvent struct {
		client *Client
		msg    inbound
	}
	rejectEvent struct {
		client *Client
		err    error
	}
	verdictEvent struct {
		result services.SubmitResult
		err    error
	}
	botSpeechEvent struct {
		phase debate.Phase
		text  string
	}
	statusEvent struct {
		userID string
		reply  chan debate.SessionStatus
	}
)

var errRateLimited = &debate.Error{Kind: debate.ErrValidation, Code: "rate_limited", Message: "too many messages"}

// Room owns one debate session and every connection attached to it.
type Room struct {
	id      string
	session *debate.Session
	gate    *debate.ReadinessGate
	clock   *debate.PhaseClock
	opts    Options
	now     func() time.Time
	logger  *slog.Logger

	judgment  Judgment
	bot       BotSpeaker
	botID     string
	publisher Publisher

	// clients by connection id, in attach order.
	clients map[string]*Client
	order   []string

	lastSync time.Time
	evictAt  time.Time
	onEvict  func(*Room)
	stopped  bool

	ctx    context.Context
	events chan any
	done   chan struct{}
	// postMu orders senders against drain: once closed is set no event can
	// land in the queue.
	postMu sync.RWMutex
	closed bool
}

func newRoom(ctx context.Context, session *debate.Session, opts Options, deps Dependencies, logger *slog.Logger) *Room {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	r := &Room{
		id:        session.ID,
		session:   session,
		gate:      debate.NewReadinessGate(session, opts.Countdown, now),
		clock:     debate.NewPhaseClock(now),
		opts:      opts,
		now:       now,
		logger:    logger.With("room", session.ID),
		judgment:  deps.Judgment,
		bot:       deps.Bot,
		publisher: deps.Publisher,
		clients:   make(map[string]*Client),
		ctx:       ctx,
		events:    make(chan any, 256),
		done:      make(chan struct{}),
	}
	return r
}

// post queues ev for the room goroutine. Events for a stopped room are
// discarded.
func (r *Room) post(ev any) {
	r.tryPost(ev)
}

func (r *Room) tryPost(ev any) bool {
	r.postMu.RLock()
	defer r.postMu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// run is the room goroutine.
func (r *Room) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer r.drain()

	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		case <-ticker.C:
			r.tick()
		case <-r.ctx.Done():
			r.shutdown()
			return
		}
		if r.stopped {
			return
		}
	}
}

func (r *Room) handle(ev any) {
	if q, ok := ev.(statusEvent); ok {
		q.reply <- r.status(q.userID)
		return
	}
	if r.stopped {
		return
	}
	switch ev := ev.(type) {
	case joinEvent:
		r.attach(ev.client)
	case leaveEvent:
		r.detach(ev.client)
	case messageEvent:
		if _, ok := r.clients[ev.client.id]; !ok {
			return
		}
		r.report(ev.client, r.dispatch(ev.client, ev.msg))
	case rejectEvent:
		r.report(ev.client, ev.err)
	case verdictEvent:
		r.onVerdict(ev.result, ev.err)
	case botSpeechEvent:
		r.onBotSpeech(ev.phase, ev.text)
	default:
		r.logger.Error("unknown room event", "event", ev)
	}
}

// report routes a handler error by kind: validation errors go back to the
// sender, out-of-order messages are dropped.
func (r *Room) report(c *Client, err error) {
	switch {
	case err == nil:
	case errors.Is(err, debate.ErrValidation):
		r.sendError(c, err)
	case errors.Is(err, debate.ErrOutOfOrder):
		r.logger.Debug("dropped out of order message", "conn", c.id, "user", c.userID, "reason", debate.Code(err))
	default:
		r.logger.Error("message handling failed", "conn", c.id, "user", c.userID, "error", err)
		r.sendError(c, err)
	}
}

// tick runs once per second: countdown expiry, phase timeouts, timer sync
// and eviction.
func (r *Room) tick() {
	if r.stopped {
		return
	}
	if r.gate.Expire() {
		r.advanceTo(debate.PhaseOpeningFor, "countdown")
	}
	if phase, fired := r.clock.Tick(); fired && phase == r.session.Phase() {
		if next, ok := phase.Next(); ok {
			r.advanceTo(next, "timeout")
		}
	}
	if r.clock.Running() && r.opts.TimerSync > 0 && r.now().Sub(r.lastSync) >= r.opts.TimerSync {
		r.lastSync = r.now()
		state := r.clock.State()
		r.broadcast(Outbound{Type: TypeTimer, Phase: state.Phase, Timer: &state})
	}
	if !r.evictAt.IsZero() && !r.now().Before(r.evictAt) {
		r.evict("grace period elapsed")
	}
}

// advanceTo moves the session forward and performs every side effect of
// entering the new phase. Out-of-order targets leave everything untouched.
func (r *Room) advanceTo(to debate.Phase, cause string) error {
	from := r.session.Phase()
	if err := r.session.Advance(to); err != nil {
		return err
	}
	r.gate.Recheck()
	if to.IsTerminal() {
		r.clock.Cancel()
	} else {
		r.clock.Start(to, r.opts.Durations.For(to))
		r.lastSync = r.now()
	}
	r.logger.Info("phase advanced", "from", from, "to", to, "cause", cause)

	turn, _ := debate.ResolveTurn(to)
	r.broadcast(Outbound{Type: TypePhaseChange, Phase: to, CurrentTurn: turn.Stance, TurnType: turn.Type})
	r.sendTurnStatus()

	if to.IsTerminal() {
		r.requestJudgment()
	} else {
		r.maybeBotSpeak(to)
	}
	return nil
}

// sendTurnStatus tells every debater connection whether it holds the floor.
func (r *Room) sendTurnStatus() {
	phase := r.session.Phase()
	turn, speaking := debate.ResolveTurn(phase)
	for _, c := range r.connections() {
		if c.viewer {
			continue
		}
		stance, ok := r.session.StanceOf(c.userID)
		if !ok {
			continue
		}
		canSpeak := speaking && stance == turn.Stance
		r.sendTo(c, Outbound{
			Type:        TypeTurnStatus,
			UserID:      c.userID,
			Username:    c.username,
			Phase:       phase,
			Role:        stance,
			CurrentTurn: turn.Stance,
			TurnType:    turn.Type,
			CanSpeak:    boolPtr(canSpeak),
			IsMuted:     boolPtr(!canSpeak),
		})
	}
}

func (r *Room) requestJudgment() {
	if !r.session.MarkJudgmentRequested() {
		return
	}
	bundles := map[debate.Stance]map[debate.Phase]string{
		debate.StanceFor:     r.session.Transcripts().Bundle(debate.StanceFor),
		debate.StanceAgainst: r.session.Transcripts().Bundle(debate.StanceAgainst),
	}
	topic := r.session.Topic()
	if r.judgment == nil {
		r.onVerdict(services.SubmitResult{}, errors.New("no judgment service configured"))
		return
	}
	r.logger.Info("requesting judgment")
	go func() {
		res, err := r.awaitVerdict(topic, bundles)
		r.post(verdictEvent{result: res, err: err})
	}()
}

// awaitVerdict submits the session and, if the verdict is not ready yet,
// polls until it is or the judge timeout passes.
func (r *Room) awaitVerdict(topic string, bundles map[debate.Stance]map[debate.Phase]string) (services.SubmitResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.opts.JudgeTimeout)
	defer cancel()

	res, err := r.judgment.SubmitSession(ctx, r.id, topic, bundles)
	ticker := time.NewTicker(r.opts.JudgePollInterval)
	defer ticker.Stop()
	for err == nil && res.Status != services.StatusJudged {
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("waiting for verdict: %w", ctx.Err())
		case <-ticker.C:
		}
		res, err = r.judgment.Poll(ctx, r.id)
	}
	return res, err
}

func (r *Room) onVerdict(res services.SubmitResult, err error) {
	raw := json.RawMessage(res.Result)
	if err != nil || len(raw) == 0 {
		r.logger.Error("judgment failed", "error", err)
		encoded, encErr := services.EncodeVerdict(services.FailedVerdict("judgment could not be completed"))
		if encErr != nil {
			r.logger.Error("failed to encode verdict", "error", encErr)
			return
		}
		raw = json.RawMessage(encoded)
	}
	if err := r.session.SetVerdict(raw); err != nil {
		r.logger.Debug("verdict already delivered")
		return
	}
	r.broadcast(Outbound{Type: TypeJudgment, Result: raw})
	r.evictAt = r.now().Add(r.opts.EvictionGrace)
}

func (r *Room) status(userID string) debate.SessionStatus {
	if r.stopped {
		return debate.SessionStatus{}
	}
	stance, _ := r.session.StanceOf(userID)
	return debate.SessionStatus{Live: true, Phase: r.session.Phase(), Stance: stance}
}

// snapshot returns the current client view of the room.
func (r *Room) snapshot() *debate.Snapshot {
	snap := debate.BuildSnapshot(r.session, r.gate, r.clock)
	return &snap
}

// connections returns attached clients in attach order.
func (r *Room) connections() []*Client {
	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *Room) connectionsOf(userID string) []*Client {
	var out []*Client
	for _, c := range r.connections() {
		if c.userID == userID {
			out = append(out, c)
		}
	}
	return out
}

// sendTo delivers one message with the current state attached.
func (r *Room) sendTo(c *Client, out Outbound) {
	if out.State == nil {
		out.State = r.snapshot()
	}
	r.deliver(c, out)
}

// deliver writes out as is. A client whose buffer is full is dropped.
func (r *Room) deliver(c *Client, out Outbound) {
	frame, err := encode(out)
	if err != nil {
		r.logger.Error("failed to encode message", "type", out.Type, "error", err)
		return
	}
	if !c.enqueue(frame) {
		r.logger.Warn("dropping slow connection", "conn", c.id, "user", c.userID)
		r.detach(c)
	}
}

// broadcast sends out to every connection and mirrors it to spectators.
func (r *Room) broadcast(out Outbound) {
	r.broadcastExcept(nil, out)
}

func (r *Room) broadcastExcept(exclude *Client, out Outbound) {
	if out.State == nil {
		out.State = r.snapshot()
	}
	for _, c := range r.connections() {
		if c == exclude {
			continue
		}
		r.deliver(c, out)
	}
	if r.publisher != nil {
		r.publisher.Publish(r.id, out.Type, out)
	}
}

func (r *Room) sendError(c *Client, err error) {
	var e *debate.Error
	body := &ErrorBody{Code: "internal", Message: "internal error"}
	if errors.As(err, &e) {
		body = &ErrorBody{Code: e.Code, Message: e.Message}
	}
	r.sendTo(c, Outbound{Type: TypeError, Error: body})
}

// evict stops the room and closes every remaining connection.
func (r *Room) evict(reason string) {
	if r.stopped {
		return
	}
	r.stopped = true
	r.logger.Info("evicting room", "reason", reason)
	for _, c := range r.connections() {
		c.close()
	}
	r.clients = make(map[string]*Client)
	r.order = nil
	if r.onEvict != nil {
		r.onEvict(r)
	}
}

// drain marks the room done and settles events queued after the room
// stopped: pending joins are closed and status queries answered.
func (r *Room) drain() {
	close(r.done)
	r.postMu.Lock()
	r.closed = true
	r.postMu.Unlock()
	for {
		select {
		case ev := <-r.events:
			switch ev := ev.(type) {
			case joinEvent:
				ev.client.close()
			case statusEvent:
				ev.reply <- debate.SessionStatus{}
			}
		default:
			return
		}
	}
}

func (r *Room) shutdown() {
	for _, c := range r.connections() {
		c.close()
	}
}
