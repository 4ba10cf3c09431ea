package websocket

import (
	"testing"

	"debatehub/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalRoutedByConnectionID(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	alice := f.attach(testClient("alice"))
	bob := f.attach(testClient("bob"))
	viewer := testClient("watcher")
	viewer.viewer = true
	f.attach(viewer)
	drain(t, alice)
	drain(t, bob)
	drain(t, viewer)

	f.send(alice, `{"type":"offer","connectionId":"conn-watcher","offer":{"sdp":"v=0"}}`)

	assert.Empty(t, drain(t, bob))
	got := drain(t, viewer)
	require.Len(t, got, 1)
	assert.Equal(t, TypeOffer, got[0].Type)
	assert.Equal(t, "conn-alice", got[0].FromConnectionID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(got[0].Offer))
	assert.Nil(t, got[0].State)
}

func TestSignalRoutedByTargetUser(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	alice := f.attach(testClient("alice"))
	bob := f.attach(testClient("bob"))
	viewer := testClient("watcher")
	viewer.viewer = true
	f.attach(viewer)
	drain(t, bob)
	drain(t, viewer)

	f.send(alice, `{"type":"candidate","targetUserId":"bob","candidate":{"candidate":"a=1"}}`)

	got := drain(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, TypeCandidate, got[0].Type)
	assert.Equal(t, "conn-alice", got[0].ConnectionID)
	assert.Empty(t, drain(t, viewer))
}

func TestSignalWithoutTargetReachesOthers(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	alice := f.attach(testClient("alice"))
	bob := f.attach(testClient("bob"))
	drain(t, alice)
	drain(t, bob)

	f.send(alice, `{"type":"answer","answer":{"sdp":"v=0"}}`)

	assert.Len(t, drain(t, bob), 1)
	assert.Empty(t, drain(t, alice))
}

func TestSignalUnknownConnection(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	alice := f.attach(testClient("alice"))
	bob := f.attach(testClient("bob"))
	drain(t, alice)
	drain(t, bob)

	f.send(alice, `{"type":"offer","connectionId":"gone","offer":{}}`)

	errs := ofType(drain(t, alice), TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "unknown_target", errs[0].Error.Code)
	assert.Empty(t, drain(t, bob))
}

func TestViewerRequestsOffer(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	alice := f.attach(testClient("alice"))
	bob := f.attach(testClient("bob"))
	viewer := testClient("watcher")
	viewer.viewer = true
	f.attach(viewer)
	other := testClient("watcher2")
	other.viewer = true
	f.attach(other)
	drain(t, alice)
	drain(t, bob)
	drain(t, other)
	drain(t, viewer)

	f.send(viewer, `{"type":"requestOffer","requestId":"req-1"}`)

	for _, c := range []*Client{alice, bob} {
		got := drain(t, c)
		require.Len(t, got, 1)
		assert.Equal(t, TypeRequestOffer, got[0].Type)
		assert.Equal(t, "conn-watcher", got[0].ConnectionID)
		assert.Equal(t, "req-1", got[0].RequestID)
	}
	assert.Empty(t, drain(t, other))
	assert.Empty(t, drain(t, viewer))
}
