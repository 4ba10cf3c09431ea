package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"debatehub/internal/debate"
	"debatehub/models"

	"golang.org/x/sync/singleflight"
)

// Submission reply messages, as the web client expects them.
const (
	MessageWaiting       = "Waiting for opponent submission"
	MessageJudged        = "Debate judged"
	MessageAlreadyJudged = "Debate already judged"
)

// Submission statuses.
const (
	StatusWaiting = "waiting"
	StatusJudged  = "judged"
)

// JudgmentStore keeps pending submissions and the cached verdict per room.
type JudgmentStore interface {
	SaveSubmission(ctx context.Context, sub models.DebateTranscript) error
	Submissions(ctx context.Context, roomID string) (map[debate.Stance]models.DebateTranscript, error)
	// ClaimJudgment returns true for exactly one caller per room.
	ClaimJudgment(ctx context.Context, roomID string) (bool, error)
	SaveResult(ctx context.Context, res models.DebateResult) error
	// Result returns the judged result, or nil when there is none yet.
	Result(ctx context.Context, roomID string) (*models.DebateResult, error)
	DeleteSubmissions(ctx context.Context, roomID string) error
}

// SubmitRequest is one side's transcript bundle.
type SubmitRequest struct {
	RoomID      string
	Stance      debate.Stance
	UserID      string
	Topic       string
	Transcripts map[string]string
}

// SubmitResult is the reply to a submission or poll. Result is the verdict
// encoded as JSON text.
type SubmitResult struct {
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Result  string          `json:"result,omitempty"`
	Verdict *models.Verdict `json:"-"`
}

// JudgmentService collects both sides' transcripts and runs the judge once
// per room.
type JudgmentService struct {
	store   JudgmentStore
	judge   Judge
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

func NewJudgmentService(store JudgmentStore, judge Judge, timeout time.Duration, logger *slog.Logger) *JudgmentService {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JudgmentService{store: store, judge: judge, timeout: timeout, logger: logger}
}

func validateSubmission(req SubmitRequest) (map[string]string, error) {
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, &debate.Error{Kind: debate.ErrValidation, Code: "missing_room", Message: "roomId is required"}
	}
	if !req.Stance.Valid() {
		return nil, debate.ErrInvalidStance
	}
	clean := make(map[string]string, len(req.Transcripts))
	for key, text := range req.Transcripts {
		phase := debate.Phase(key)
		acting, ok := debate.ActingStance(phase)
		if !ok {
			return nil, &debate.Error{Kind: debate.ErrValidation, Code: "unknown_phase", Message: fmt.Sprintf("%q is not a speaking phase", key)}
		}
		if acting != req.Stance {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			text = debate.NoResponse
		}
		clean[key] = text
	}
	return clean, nil
}

// Submit stores one side's bundle. The first side is told to wait; once
// both sides are in, the judge runs exactly once and every later call gets
// the cached verdict.
func (s *JudgmentService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	transcripts, err := validateSubmission(req)
	if err != nil {
		return SubmitResult{}, err
	}

	if res, err := s.cached(ctx, req.RoomID, MessageAlreadyJudged); err != nil || res != nil {
		if err != nil {
			return SubmitResult{}, err
		}
		return *res, nil
	}

	now := time.Now()
	if err := s.store.SaveSubmission(ctx, models.DebateTranscript{
		RoomID:      req.RoomID,
		Role:        string(req.Stance),
		UserID:      req.UserID,
		Topic:       req.Topic,
		Transcripts: transcripts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to save submission: %w", err)
	}

	subs, err := s.store.Submissions(ctx, req.RoomID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to load submissions: %w", err)
	}
	forSub, haveFor := subs[debate.StanceFor]
	againstSub, haveAgainst := subs[debate.StanceAgainst]
	if !haveFor || !haveAgainst {
		return SubmitResult{Message: MessageWaiting, Status: StatusWaiting}, nil
	}

	v, err, _ := s.group.Do(req.RoomID, func() (any, error) {
		return s.judgeOnce(ctx, req.RoomID, forSub, againstSub)
	})
	if errors.Is(err, errAlreadyClaimed) {
		// Another instance is judging; the verdict shows up on poll.
		if res, cerr := s.cached(ctx, req.RoomID, MessageAlreadyJudged); cerr != nil || res != nil {
			if cerr != nil {
				return SubmitResult{}, cerr
			}
			return *res, nil
		}
		return SubmitResult{Message: MessageWaiting, Status: StatusWaiting}, nil
	}
	if err != nil {
		return SubmitResult{}, err
	}
	return v.(SubmitResult), nil
}

// SubmitSession submits both sides of a finished session on the server's
// behalf and returns the final reply.
func (s *JudgmentService) SubmitSession(ctx context.Context, roomID, topic string, bundles map[debate.Stance]map[debate.Phase]string) (SubmitResult, error) {
	var last SubmitResult
	for _, stance := range []debate.Stance{debate.StanceFor, debate.StanceAgainst} {
		transcripts := make(map[string]string, len(bundles[stance]))
		for phase, text := range bundles[stance] {
			transcripts[string(phase)] = text
		}
		res, err := s.Submit(ctx, SubmitRequest{RoomID: roomID, Stance: stance, Topic: topic, Transcripts: transcripts})
		if err != nil {
			return SubmitResult{}, err
		}
		last = res
	}
	return last, nil
}

// Poll reports the judgment state without side effects.
func (s *JudgmentService) Poll(ctx context.Context, roomID string) (SubmitResult, error) {
	res, err := s.cached(ctx, roomID, MessageJudged)
	if err != nil {
		return SubmitResult{}, err
	}
	if res != nil {
		return *res, nil
	}
	return SubmitResult{Message: MessageWaiting, Status: StatusWaiting}, nil
}

func (s *JudgmentService) cached(ctx context.Context, roomID, message string) (*SubmitResult, error) {
	existing, err := s.store.Result(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing result: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	res := &SubmitResult{Message: message, Status: StatusJudged, Result: existing.Result}
	if v, err := DecodeVerdict(existing.Result); err == nil {
		res.Verdict = v
	}
	return res, nil
}

var errAlreadyClaimed = errors.New("judgment already claimed")

func (s *JudgmentService) judgeOnce(ctx context.Context, roomID string, forSub, againstSub models.DebateTranscript) (SubmitResult, error) {
	claimed, err := s.store.ClaimJudgment(ctx, roomID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to claim judgment: %w", err)
	}
	if !claimed {
		return SubmitResult{}, errAlreadyClaimed
	}

	merged := make(map[debate.Phase]string)
	for _, sub := range []models.DebateTranscript{forSub, againstSub} {
		for phase, text := range sub.Transcripts {
			merged[debate.Phase(phase)] = text
		}
	}
	topic := forSub.Topic
	if topic == "" {
		topic = againstSub.Topic
	}

	// Judging outlives the request that triggered it.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	verdict := s.runJudge(jctx, JudgeRequest{RoomID: roomID, Topic: topic, Transcripts: merged})
	encoded, err := EncodeVerdict(verdict)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.store.SaveResult(jctx, models.DebateResult{
		RoomID:    roomID,
		Status:    models.ResultJudged,
		Result:    encoded,
		Failed:    verdict.Failed,
		CreatedAt: time.Now(),
	}); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to store debate result: %w", err)
	}
	if err := s.store.DeleteSubmissions(jctx, roomID); err != nil {
		s.logger.Warn("failed to clean up submissions", "room", roomID, "error", err)
	}
	s.logger.Info("debate judged", "room", roomID, "winner", verdict.Verdict.Winner, "failed", verdict.Failed)
	return SubmitResult{Message: MessageJudged, Status: StatusJudged, Result: encoded, Verdict: verdict}, nil
}

// runJudge never fails: an unavailable judge or unreadable output becomes a
// failed verdict so the session can still finish.
func (s *JudgmentService) runJudge(ctx context.Context, req JudgeRequest) *models.Verdict {
	if s.judge == nil {
		return FailedVerdict("no judge configured")
	}
	raw, err := s.judge.Judge(ctx, req)
	if err != nil {
		s.logger.Error("judge unavailable", "room", req.RoomID, "error", err)
		return FailedVerdict("judge unavailable")
	}
	v, err := DecodeVerdict(raw)
	if err != nil {
		s.logger.Error("undecodable judge output", "room", req.RoomID, "error", err)
		return FailedVerdict("judge returned an unreadable verdict")
	}
	return v
}
