package services

import (
	"context"
	"sync"
	"time"

	"debatehub/internal/debate"
	"debatehub/models"
)

// DefaultResultRetention is how long the memory store keeps a room after
// its last write.
const DefaultResultRetention = time.Hour

// MemoryJudgmentStore keeps submissions and results in process. It backs
// single-instance deployments without MongoDB and the tests. Rooms untouched
// for longer than the retention are forgotten, so a reused room id starts
// fresh.
type MemoryJudgmentStore struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time
	lastPrune time.Time

	subs    map[string]map[debate.Stance]models.DebateTranscript
	claims  map[string]bool
	results map[string]models.DebateResult
	touched map[string]time.Time
}

func NewMemoryJudgmentStore() *MemoryJudgmentStore {
	return NewRetainingJudgmentStore(DefaultResultRetention)
}

// NewRetainingJudgmentStore is NewMemoryJudgmentStore with a custom
// retention.
func NewRetainingJudgmentStore(retention time.Duration) *MemoryJudgmentStore {
	if retention <= 0 {
		retention = DefaultResultRetention
	}
	return &MemoryJudgmentStore{
		retention: retention,
		now:       time.Now,
		subs:      make(map[string]map[debate.Stance]models.DebateTranscript),
		claims:    make(map[string]bool),
		results:   make(map[string]models.DebateResult),
		touched:   make(map[string]time.Time),
	}
}

// touch records a write to roomID and forgets expired rooms. Callers hold mu.
func (m *MemoryJudgmentStore) touch(roomID string) {
	now := m.now()
	m.touched[roomID] = now
	if now.Sub(m.lastPrune) < m.retention/10 {
		return
	}
	m.lastPrune = now
	for id, at := range m.touched {
		if now.Sub(at) <= m.retention {
			continue
		}
		delete(m.subs, id)
		delete(m.claims, id)
		delete(m.results, id)
		delete(m.touched, id)
	}
}

// Len returns the number of rooms the store remembers.
func (m *MemoryJudgmentStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.touched)
}

func (m *MemoryJudgmentStore) SaveSubmission(_ context.Context, sub models.DebateTranscript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(sub.RoomID)
	bySide, ok := m.subs[sub.RoomID]
	if !ok {
		bySide = make(map[debate.Stance]models.DebateTranscript)
		m.subs[sub.RoomID] = bySide
	}
	if prev, ok := bySide[debate.Stance(sub.Role)]; ok {
		sub.CreatedAt = prev.CreatedAt
	}
	bySide[debate.Stance(sub.Role)] = sub
	return nil
}

func (m *MemoryJudgmentStore) Submissions(_ context.Context, roomID string) (map[debate.Stance]models.DebateTranscript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[debate.Stance]models.DebateTranscript, len(m.subs[roomID]))
	for stance, sub := range m.subs[roomID] {
		out[stance] = sub
	}
	return out, nil
}

func (m *MemoryJudgmentStore) ClaimJudgment(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[roomID] {
		return false, nil
	}
	m.touch(roomID)
	m.claims[roomID] = true
	return true, nil
}

func (m *MemoryJudgmentStore) SaveResult(_ context.Context, res models.DebateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(res.RoomID)
	m.results[res.RoomID] = res
	return nil
}

func (m *MemoryJudgmentStore) Result(_ context.Context, roomID string) (*models.DebateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[roomID]
	if !ok || res.Status != models.ResultJudged {
		return nil, nil
	}
	return &res, nil
}

func (m *MemoryJudgmentStore) DeleteSubmissions(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, roomID)
	return nil
}
