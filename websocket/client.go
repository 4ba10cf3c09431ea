package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one WebSocket connection. A user may hold several. The send
// channel is owned by the room: only the room closes it.
type Client struct {
	id       string
	userID   string
	email    string
	username string
	teamID   string
	// viewer connections watch the debate without taking part.
	viewer bool

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	closed  bool
}

func newClient(conn *websocket.Conn, userID, email, username string, limiter *rate.Limiter) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		email:    email,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		limiter:  limiter,
	}
}

func (c *Client) ID() string { return c.id }

// enqueue hands a frame to the write pump without blocking. It reports
// false when the client cannot keep up.
func (c *Client) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// allow applies the inbound rate limit.
func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump forwards frames to the room until the connection fails.
func (c *Client) readPump(room *Room, logger *slog.Logger) {
	defer func() {
		room.post(leaveEvent{client: c})
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", "conn", c.id, "user", c.userID, "error", err)
			}
			return
		}
		msg, err := decodeInbound(data)
		if err != nil {
			room.post(rejectEvent{client: c, err: err})
			continue
		}
		if !c.allow() {
			// Live captions are best effort; everything else is told.
			if msg.messageType() != TypeLiveTranscript {
				room.post(rejectEvent{client: c, err: errRateLimited})
			}
			continue
		}
		room.post(messageEvent{client: c, msg: msg})
	}
}

// writePump drains the send channel onto the connection and keeps it
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(out Outbound) ([]byte, error) {
	return json.Marshal(out)
}
