package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"debatehub/internal/debate"
	"debatehub/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     OriginChecker(h.opts.AllowedOrigins),
	}
}

// OriginChecker allows requests without an Origin header and those whose
// origin is listed. An empty list or "*" allows everything.
func OriginChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
				return true
			}
		}
		return false
	}
}

// requestToken reads the JWT from the Authorization header or the token
// query parameter. Browsers cannot set headers on WebSocket requests.
func requestToken(c *gin.Context) string {
	if tok, ok := utils.BearerToken(c.GetHeader("Authorization")); ok {
		return tok
	}
	return c.Query("token")
}

// roomSpecFromQuery builds the room request from the query string.
func roomSpecFromQuery(c *gin.Context) (RoomSpec, error) {
	spec := RoomSpec{
		ID:   strings.TrimSpace(c.Query("room")),
		Mode: debate.Mode(c.DefaultQuery("mode", string(debate.ModeDuel))),
		Bot:  c.Query("opponent") == "bot",
	}
	if spec.ID == "" {
		return spec, &debate.Error{Kind: debate.ErrValidation, Code: "missing_room", Message: "missing room parameter"}
	}
	if !spec.Mode.Valid() {
		return spec, &debate.Error{Kind: debate.ErrValidation, Code: "invalid_mode", Message: "mode must be duel or team"}
	}
	if teams := c.Query("teams"); teams != "" && spec.Mode == debate.ModeTeam {
		for _, t := range strings.Split(teams, ",") {
			if t = strings.TrimSpace(t); t != "" {
				spec.Teams = append(spec.Teams, t)
			}
		}
	}
	return spec, nil
}

func isViewer(c *gin.Context) bool {
	return c.Query("spectator") == "true" || c.Query("role") == "viewer"
}

// ServeDebate upgrades a debater or viewer connection and attaches it to
// its room.
func (h *Hub) ServeDebate(c *gin.Context) {
	id, err := utils.IdentityFromToken(requestToken(c))
	if err != nil {
		h.logger.Info("websocket rejected: invalid token", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	spec, err := roomSpecFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": debate.Code(err)})
		return
	}
	viewer := isViewer(c)
	teamID := strings.TrimSpace(c.Query("teamId"))
	if spec.Mode == debate.ModeTeam && teamID == "" && !viewer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing teamId parameter"})
		return
	}

	username := h.resolveName(c.Request.Context(), id, c.Query("username"))

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "error", err)
		return
	}

	client := newClient(conn, id.UserID, id.Email, username, rate.NewLimiter(h.opts.RateLimit, h.opts.RateBurst))
	client.teamID = teamID
	client.viewer = viewer

	room, err := h.Attach(spec, client)
	if err != nil {
		h.logger.Warn("failed to attach connection", "room", spec.ID, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, debate.Code(err)),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump(room, h.logger)
}

func (h *Hub) resolveName(ctx context.Context, id utils.Identity, requested string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	if h.deps.Names != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		name, err := h.deps.Names.DisplayName(ctx, id.UserID, id.Email)
		if err != nil {
			h.logger.Warn("display name lookup failed", "user", id.UserID, "error", err)
		} else if name != "" {
			return name
		}
	}
	return id.DisplayName()
}
