package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"debatehub/internal/debate"

	"golang.org/x/time/rate"
)

// Options tunes every room the hub creates.
type Options struct {
	Durations         debate.Durations
	Countdown         time.Duration
	TimerSync         time.Duration
	EvictionGrace     time.Duration
	JudgeTimeout      time.Duration
	JudgePollInterval time.Duration
	// Inbound messages per second per connection, and the burst allowed.
	RateLimit rate.Limit
	RateBurst int
	// AllowedOrigins restricts the WebSocket upgrade; empty allows all.
	AllowedOrigins []string
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Durations == nil {
		o.Durations = debate.DefaultDurations()
	}
	if o.Countdown <= 0 {
		o.Countdown = debate.DefaultCountdown
	}
	if o.TimerSync <= 0 {
		o.TimerSync = 5 * time.Second
	}
	if o.EvictionGrace <= 0 {
		o.EvictionGrace = 60 * time.Second
	}
	if o.JudgeTimeout <= 0 {
		o.JudgeTimeout = 2 * time.Minute
	}
	if o.JudgePollInterval <= 0 {
		o.JudgePollInterval = 2 * time.Second
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 20
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 40
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Dependencies are the services rooms call out to. Any may be nil.
type Dependencies struct {
	Judgment  Judgment
	Bot       BotSpeaker
	Publisher Publisher
	Names     NameResolver
}

// NameResolver looks up a profile display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID, email string) (string, error)
}

// RoomSpec selects the kind of room to open.
type RoomSpec struct {
	ID    string
	Mode  debate.Mode
	Teams []string
	Bot   bool
}

// Hub owns the room registry. Sessions live in the store; each has exactly
// one running room.
type Hub struct {
	ctx    context.Context
	opts   Options
	deps   Dependencies
	store  *debate.Store
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
	wg    sync.WaitGroup
}

func NewHub(ctx context.Context, opts Options, deps Dependencies, logger *slog.Logger) *Hub {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		ctx:    ctx,
		opts:   opts,
		deps:   deps,
		store:  debate.NewStore(opts.Now),
		logger: logger,
		rooms:  make(map[string]*Room),
	}
}

// Room returns the running room for spec.ID, opening it first if needed.
// An existing room keeps the mode it was opened with.
func (h *Hub) Room(spec RoomSpec) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[spec.ID]; ok {
		return r, nil
	}
	session, _ := h.store.GetOrCreate(spec.ID, spec.Mode, spec.Teams)
	r := newRoom(h.ctx, session, h.opts, h.deps, h.logger)
	if spec.Bot {
		if err := r.addBot(); err != nil {
			h.store.Evict(spec.ID)
			return nil, err
		}
	}
	r.onEvict = h.remove
	h.rooms[spec.ID] = r
	h.logger.Info("room opened", "room", spec.ID, "mode", session.Mode, "bot", spec.Bot)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		r.run()
	}()
	return r, nil
}

var errRoomClosed = &debate.Error{Kind: debate.ErrTransport, Code: "room_closed", Message: "room closed while joining"}

// Attach queues c's join on the room described by spec.
func (h *Hub) Attach(spec RoomSpec, c *Client) (*Room, error) {
	for attempt := 0; attempt < 3; attempt++ {
		r, err := h.Room(spec)
		if err != nil {
			return nil, err
		}
		if r.tryPost(joinEvent{client: c}) {
			return r, nil
		}
	}
	return nil, errRoomClosed
}

// Status asks the room roomID, if it runs on this instance, for its phase
// and userID's stance.
func (h *Hub) Status(ctx context.Context, roomID, userID string) (debate.SessionStatus, error) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return debate.SessionStatus{}, nil
	}
	reply := make(chan debate.SessionStatus, 1)
	if !r.tryPost(statusEvent{userID: userID, reply: reply}) {
		return debate.SessionStatus{}, nil
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return debate.SessionStatus{}, ctx.Err()
	}
}

// remove runs on the room goroutine when the room evicts itself.
func (h *Hub) remove(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
	h.store.Evict(r.id)
	h.logger.Info("room closed", "room", r.id, "rooms", len(h.rooms))
}

// Len returns the number of open rooms.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Wait blocks until every room goroutine has exited. Rooms exit when the
// hub context is cancelled.
func (h *Hub) Wait() {
	h.wg.Wait()
}
