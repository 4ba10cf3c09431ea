package debate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore(nil)
	s1, created := st.GetOrCreate("r1", ModeTeam, []string{"red", "blue"})
	assert.True(t, created)
	assert.Equal(t, ModeTeam, s1.Mode)
	assert.Equal(t, []string{"red", "blue"}, s1.Teams)

	s2, created := st.GetOrCreate("r1", ModeDuel, nil)
	assert.False(t, created)
	assert.Same(t, s1, s2)
	assert.Equal(t, ModeTeam, s2.Mode)
}

func TestStoreEvict(t *testing.T) {
	st := NewStore(nil)
	st.GetOrCreate("b", ModeDuel, nil)
	st.GetOrCreate("a", ModeDuel, nil)
	assert.Equal(t, []string{"a", "b"}, st.IDs())

	assert.True(t, st.Evict("a"))
	assert.False(t, st.Evict("a"))
	_, ok := st.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, st.Len())
}

func TestStoreConcurrentCreateYieldsOneSession(t *testing.T) {
	st := NewStore(nil)
	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = st.GetOrCreate("same", ModeDuel, nil)
		}(i)
	}
	wg.Wait()
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
}
