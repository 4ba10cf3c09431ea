package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"debatehub/internal/debate"
	"debatehub/services"

	"github.com/gin-gonic/gin"
)

// TranscriptJudgment is the part of the judgment service the HTTP routes use.
type TranscriptJudgment interface {
	Submit(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error)
	Poll(ctx context.Context, roomID string) (services.SubmitResult, error)
}

// LiveRooms reports on debates running on this instance. A live room seals
// its own transcripts, so HTTP submissions for it are not stored.
type LiveRooms interface {
	Status(ctx context.Context, roomID, userID string) (debate.SessionStatus, error)
}

type SubmitTranscriptsRequest struct {
	RoomID      string            `json:"roomId" binding:"required"`
	Role        string            `json:"role" binding:"required,oneof=for against"`
	Topic       string            `json:"topic"`
	Transcripts map[string]string `json:"transcripts" binding:"required"`
}

type TranscriptController struct {
	judgment TranscriptJudgment
	rooms    LiveRooms
	logger   *slog.Logger
}

// NewTranscriptController builds the transcript handlers. rooms may be nil.
func NewTranscriptController(judgment TranscriptJudgment, rooms LiveRooms, logger *slog.Logger) *TranscriptController {
	return &TranscriptController{judgment: judgment, rooms: rooms, logger: logger}
}

// SubmitTranscripts handles POST /api/submit-transcripts.
func (tc *TranscriptController) SubmitTranscripts(c *gin.Context) {
	var req SubmitTranscriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	roomID := strings.TrimSpace(req.RoomID)
	userID := c.GetString("userId")
	ctx := c.Request.Context()

	if tc.rooms != nil {
		status, err := tc.rooms.Status(ctx, roomID, userID)
		if err != nil {
			tc.fail(c, roomID, err)
			return
		}
		if status.Live {
			tc.answerLive(c, roomID, debate.Stance(req.Role), status)
			return
		}
	}

	result, err := tc.judgment.Submit(ctx, services.SubmitRequest{
		RoomID:      roomID,
		Stance:      debate.Stance(req.Role),
		UserID:      userID,
		Topic:       req.Topic,
		Transcripts: req.Transcripts,
	})
	if err != nil {
		tc.fail(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// answerLive replies to a submission for a room running here. The room
// submits its own sealed transcripts once it finishes; the caller only
// gets the current judgment status.
func (tc *TranscriptController) answerLive(c *gin.Context, roomID string, role debate.Stance, status debate.SessionStatus) {
	if status.Stance != "" && status.Stance != role {
		tc.fail(c, roomID, debate.ErrRoleMismatch)
		return
	}
	if status.Phase != debate.PhaseFinished {
		tc.fail(c, roomID, debate.ErrDebateInProgress)
		return
	}
	result, err := tc.judgment.Poll(c.Request.Context(), roomID)
	if err != nil {
		tc.fail(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetJudgment handles GET /api/judgment/:roomId.
func (tc *TranscriptController) GetJudgment(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}
	result, err := tc.judgment.Poll(c.Request.Context(), roomID)
	if err != nil {
		tc.fail(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (tc *TranscriptController) fail(c *gin.Context, roomID string, err error) {
	switch {
	case errors.Is(err, debate.ErrDebateInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": debate.Code(err)})
		return
	case errors.Is(err, debate.ErrRoleMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": debate.Code(err)})
		return
	}
	if errors.Is(err, debate.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": debate.Code(err)})
		return
	}
	tc.logger.Error("transcript request failed", "room", roomID, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process transcripts"})
}
