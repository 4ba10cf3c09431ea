package debate

import (
	"sort"
	"sync"
	"time"
)

// Store holds one Session per active room id. It guards the index only;
// each Session is owned and mutated by a single room.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{sessions: make(map[string]*Session), now: now}
}

// GetOrCreate returns the session for id, creating it in the given mode when
// absent. The bool reports whether a new session was created. An existing
// session keeps its original mode.
func (st *Store) GetOrCreate(id string, mode Mode, teams []string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s, false
	}
	s := NewSession(id, mode, st.now())
	if mode == ModeTeam && len(teams) > 0 {
		s.Teams = append([]string(nil), teams...)
	}
	st.sessions[id] = s
	return s, true
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Evict removes the session for id. It reports whether one was present.
func (st *Store) Evict(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// IDs returns the ids of all active sessions, sorted.
func (st *Store) IDs() []string {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	st.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
