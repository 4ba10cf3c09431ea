package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"debatehub/internal/debate"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	spectatorWriteWait  = 10 * time.Second
	spectatorPongWait   = 60 * time.Second
	spectatorPingPeriod = (spectatorPongWait * 9) / 10
	spectatorMaxMessage = 4096
	spectatorSendBuffer = 64
	maxReactionLength   = 32
)

// DebateHub fans debate events out to read-only spectators. With Redis
// attached, events travel through the debate stream so spectators on every
// instance see them; without it they are delivered locally.
type DebateHub struct {
	ctx         context.Context
	logger      *slog.Logger
	now         func() time.Time
	checkOrigin func(*http.Request) bool

	consumer  *debate.StreamConsumer
	publisher *debate.StreamPublisher
	limiter   *debate.RateLimiter

	debates map[string]*DebateRoom
	mu      sync.RWMutex
}

// DebateRoom holds the spectators of one debate on this instance.
type DebateRoom struct {
	debateID string
	clients  map[*SpectatorClient]struct{}
	cancel   context.CancelFunc
}

// SpectatorClient is one spectator connection. Frames are queued on send
// and written by writePump, so a slow spectator never holds up the
// broadcaster.
type SpectatorClient struct {
	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	spectatorHash string
	debateID      string
	reactions     *rate.Limiter
}

func NewDebateHub(ctx context.Context, checkOrigin func(*http.Request) bool, logger *slog.Logger) *DebateHub {
	return &DebateHub{
		ctx:         ctx,
		logger:      logger,
		now:         time.Now,
		checkOrigin: checkOrigin,
		debates:     make(map[string]*DebateRoom),
	}
}

// AttachStream routes events through Redis.
func (h *DebateHub) AttachStream(rdb *redis.Client, publisher *debate.StreamPublisher) {
	h.consumer = debate.NewStreamConsumer(rdb, h, h.logger)
	h.publisher = publisher
	h.limiter = debate.NewRateLimiter(rdb, debate.DefaultRateLimitConfig())
}

// Publish mirrors a room broadcast to spectators.
func (h *DebateHub) Publish(debateID, eventType string, payload any) {
	if h.publisher == nil && h.Spectators(debateID) == 0 {
		return
	}
	event, err := debate.NewEvent(eventType, payload, h.now())
	if err != nil {
		h.logger.Error("failed to build spectator event", "debate", debateID, "type", eventType, "error", err)
		return
	}
	h.emit(debateID, event)
}

func (h *DebateHub) emit(debateID string, event *debate.Event) {
	if h.publisher != nil {
		h.publisher.PublishEvent(debateID, event)
		return
	}
	h.BroadcastToDebate(debateID, event)
}

// Register adds a spectator connection, starting the stream consumer for
// the debate's first local spectator.
func (h *DebateHub) Register(debateID string, conn *websocket.Conn, spectatorHash string) *SpectatorClient {
	client := &SpectatorClient{
		conn:          conn,
		send:          make(chan []byte, spectatorSendBuffer),
		done:          make(chan struct{}),
		spectatorHash: spectatorHash,
		debateID:      debateID,
		reactions:     rate.NewLimiter(rate.Every(2*time.Second), 5),
	}

	h.mu.Lock()
	room, exists := h.debates[debateID]
	if !exists {
		room = &DebateRoom{debateID: debateID, clients: make(map[*SpectatorClient]struct{})}
		h.debates[debateID] = room
		if h.consumer != nil {
			ctx, cancel := context.WithCancel(h.ctx)
			room.cancel = cancel
			go func() {
				if err := h.consumer.Consume(ctx, debateID); err != nil {
					h.logger.Error("spectator stream stopped", "debate", debateID, "error", err)
				}
			}()
		}
	}
	room.clients[client] = struct{}{}
	count := len(room.clients)
	h.mu.Unlock()

	h.logger.Info("spectator joined", "debate", debateID, "spectators", count)
	h.broadcastPresence(debateID, count)
	return client
}

// Unregister removes a spectator and stops the consumer once nobody on this
// instance is watching.
func (h *DebateHub) Unregister(client *SpectatorClient) {
	h.mu.Lock()
	room, exists := h.debates[client.debateID]
	if !exists {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client)
	count := len(room.clients)
	if count == 0 {
		delete(h.debates, client.debateID)
		if room.cancel != nil {
			room.cancel()
		}
	}
	h.mu.Unlock()

	h.logger.Info("spectator left", "debate", client.debateID, "spectators", count)
	if count > 0 {
		h.broadcastPresence(client.debateID, count)
	}
}

// Spectators returns the number of local spectators of debateID.
func (h *DebateHub) Spectators(debateID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.debates[debateID]; ok {
		return len(room.clients)
	}
	return 0
}

func (h *DebateHub) clientsOf(debateID string) []*SpectatorClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, exists := h.debates[debateID]
	if !exists {
		return nil
	}
	clients := make([]*SpectatorClient, 0, len(room.clients))
	for client := range room.clients {
		clients = append(clients, client)
	}
	return clients
}

// BroadcastToDebate queues event for every local spectator of debateID.
// A spectator whose queue is full is disconnected.
func (h *DebateHub) BroadcastToDebate(debateID string, event *debate.Event) {
	clients := h.clientsOf(debateID)
	if len(clients) == 0 {
		return
	}
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode spectator event", "debate", debateID, "type", event.Type, "error", err)
		return
	}
	for _, client := range clients {
		if !client.enqueue(frame) {
			h.logger.Warn("dropping slow spectator", "debate", debateID)
			client.close()
			h.Unregister(client)
		}
	}
}

// broadcastPresence reports the local spectator count. Presence is per
// instance and never goes through the stream.
func (h *DebateHub) broadcastPresence(debateID string, count int) {
	event, err := debate.NewEvent(debate.EventPresence, debate.PresencePayload{Connected: count}, h.now())
	if err != nil {
		return
	}
	h.BroadcastToDebate(debateID, event)
}

// enqueue reports false when the client is closed or its queue is full.
func (c *SpectatorClient) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *SpectatorClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump is the only writer of the connection.
func (c *SpectatorClient) writePump() {
	ticker := time.NewTicker(spectatorPingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(spectatorWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(spectatorWriteWait)); err != nil {
				return
			}
		}
	}
}

// spectatorHash derives the anonymous spectator identity. Without a
// spectatorId an ephemeral one is generated.
func spectatorHash(spectatorID string) string {
	if spectatorID == "" {
		spectatorID = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(spectatorID))
	return hex.EncodeToString(sum[:])
}

// ServeSpectator handles GET /ws/spectate/:debateID.
func (h *DebateHub) ServeSpectator(c *gin.Context) {
	debateID := strings.TrimSpace(c.Param("debateID"))
	if debateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debateID is required"})
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("spectator upgrade error", "debate", debateID, "error", err)
		return
	}

	client := h.Register(debateID, conn, spectatorHash(c.Query("spectatorId")))
	defer h.Unregister(client)
	defer client.close()

	go client.writePump()
	h.readPump(client)
}

// readPump handles spectator frames until the connection closes.
func (h *DebateHub) readPump(client *SpectatorClient) {
	conn := client.conn
	conn.SetReadLimit(spectatorMaxMessage)
	conn.SetReadDeadline(time.Now().Add(spectatorPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(spectatorPongWait))
	})

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("spectator read error", "debate", client.debateID, "error", err)
			}
			return
		}

		var clientMsg debate.ClientMessage
		if err := json.Unmarshal(messageBytes, &clientMsg); err != nil {
			h.replyError(client, "malformed_message")
			continue
		}
		switch clientMsg.Type {
		case "join":
		case debate.EventReaction:
			h.handleReaction(client, clientMsg.Payload)
		default:
			h.replyError(client, "unknown_type")
		}
	}
}

func (h *DebateHub) replyError(client *SpectatorClient, code string) {
	event, err := debate.NewEvent("error", gin.H{"code": code}, h.now())
	if err != nil {
		return
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return
	}
	if !client.enqueue(frame) {
		client.close()
	}
}

// handleReaction relays a short reaction to every spectator of the debate.
func (h *DebateHub) handleReaction(client *SpectatorClient, payloadBytes []byte) {
	var payload debate.ReactionPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		h.replyError(client, "malformed_message")
		return
	}
	payload.Reaction = strings.TrimSpace(payload.Reaction)
	if payload.Reaction == "" || utf8.RuneCountInString(payload.Reaction) > maxReactionLength {
		h.replyError(client, "invalid_reaction")
		return
	}
	if !h.allowReaction(client) {
		h.replyError(client, "rate_limited")
		return
	}

	payload.SpectatorHash = client.spectatorHash
	payload.Timestamp = h.now().Unix()
	event, err := debate.NewEvent(debate.EventReaction, payload, h.now())
	if err != nil {
		return
	}
	h.emit(client.debateID, event)
}

func (h *DebateHub) allowReaction(client *SpectatorClient) bool {
	if h.limiter == nil {
		return client.reactions.Allow()
	}
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()
	ok, err := h.limiter.AllowReaction(ctx, client.debateID, client.spectatorHash)
	if err != nil {
		h.logger.Warn("reaction rate check failed", "debate", client.debateID, "error", err)
		return false
	}
	return ok
}
