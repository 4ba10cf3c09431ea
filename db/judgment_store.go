package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"debatehub/internal/debate"
	"debatehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	transcriptsCollection = "debate_transcripts"
	resultsCollection     = "debate_results"
)

// JudgmentStore persists pending submissions and verdicts in MongoDB so
// that several server instances share one judgment per room.
type JudgmentStore struct {
	transcripts *mongo.Collection
	results     *mongo.Collection
	// A "judging" claim older than this is assumed abandoned.
	staleAfter time.Duration
}

func NewJudgmentStore(database *mongo.Database, staleAfter time.Duration) *JudgmentStore {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &JudgmentStore{
		transcripts: database.Collection(transcriptsCollection),
		results:     database.Collection(resultsCollection),
		staleAfter:  staleAfter,
	}
}

// EnsureIndexes creates the unique indexes the claim protocol relies on.
func (s *JudgmentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.results.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", resultsCollection, err)
	}
	_, err = s.transcripts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}, {Key: "role", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", transcriptsCollection, err)
	}
	return nil
}

func (s *JudgmentStore) SaveSubmission(ctx context.Context, sub models.DebateTranscript) error {
	filter := bson.M{"roomId": sub.RoomID, "role": sub.Role}
	update := bson.M{
		"$set": bson.M{
			"transcripts": sub.Transcripts,
			"userId":      sub.UserID,
			"topic":       sub.Topic,
			"updatedAt":   sub.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"roomId":    sub.RoomID,
			"role":      sub.Role,
			"createdAt": sub.CreatedAt,
		},
	}
	if _, err := s.transcripts.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

func (s *JudgmentStore) Submissions(ctx context.Context, roomID string) (map[debate.Stance]models.DebateTranscript, error) {
	cursor, err := s.transcripts.Find(ctx, bson.M{"roomId": roomID})
	if err != nil {
		return nil, err
	}
	var docs []models.DebateTranscript
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[debate.Stance]models.DebateTranscript, len(docs))
	for _, doc := range docs {
		out[debate.Stance(doc.Role)] = doc
	}
	return out, nil
}

// ClaimJudgment inserts a "judging" placeholder. The unique roomId index
// makes exactly one insert win; a stale placeholder can be taken over.
func (s *JudgmentStore) ClaimJudgment(ctx context.Context, roomID string) (bool, error) {
	now := time.Now()
	_, err := s.results.InsertOne(ctx, models.DebateResult{
		RoomID:    roomID,
		Status:    models.ResultJudging,
		ClaimedAt: now,
		CreatedAt: now,
	})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	filter := bson.M{
		"roomId":    roomID,
		"status":    models.ResultJudging,
		"claimedAt": bson.M{"$lt": now.Add(-s.staleAfter)},
	}
	res, err := s.results.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"claimedAt": now}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *JudgmentStore) SaveResult(ctx context.Context, res models.DebateResult) error {
	update := bson.M{
		"$set": bson.M{
			"status":    res.Status,
			"result":    res.Result,
			"failed":    res.Failed,
			"createdAt": res.CreatedAt,
		},
	}
	_, err := s.results.UpdateOne(ctx, bson.M{"roomId": res.RoomID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *JudgmentStore) Result(ctx context.Context, roomID string) (*models.DebateResult, error) {
	var res models.DebateResult
	err := s.results.FindOne(ctx, bson.M{"roomId": roomID, "status": models.ResultJudged}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *JudgmentStore) DeleteSubmissions(ctx context.Context, roomID string) error {
	_, err := s.transcripts.DeleteMany(ctx, bson.M{"roomId": roomID})
	return err
}
