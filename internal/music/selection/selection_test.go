package selection

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = sources.Requester{ID: "alice", Name: "Alice"}

func candidates() []sources.Candidate {
	return []sources.Candidate{
		{Title: "One", Token: "https://www.youtube.com/watch?v=1"},
		{Title: "Two", Token: "https://www.youtube.com/watch?v=2"},
	}
}

func TestChooseOnlyByRequester(t *testing.T) {
	s := NewStore()
	token := s.Open(candidates(), alice, time.Minute, nil)

	_, err := s.Choose(token, "bob", "https://www.youtube.com/watch?v=2")
	assert.ErrorIs(t, err, ErrNotRequester)

	_, err = s.Choose(token, "alice", "https://elsewhere")
	assert.ErrorIs(t, err, ErrUnknownChoice)

	c, err := s.Choose(token, "alice", "https://www.youtube.com/watch?v=2")
	require.NoError(t, err)
	assert.Equal(t, "Two", c.Title)

	_, err = s.Choose(token, "alice", "https://www.youtube.com/watch?v=2")
	assert.ErrorIs(t, err, ErrSelectionExpired)
	assert.Equal(t, 0, s.Len())
}

func TestCancel(t *testing.T) {
	s := NewStore()
	var expired atomic.Bool
	token := s.Open(candidates(), alice, 20*time.Millisecond, func() { expired.Store(true) })

	assert.ErrorIs(t, s.Cancel(token, "bob"), ErrNotRequester)
	require.NoError(t, s.Cancel(token, "alice"))
	assert.ErrorIs(t, s.Cancel(token, "alice"), ErrSelectionExpired)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, expired.Load(), "cancelled selections never expire")
}

func TestExpiryIsImplicitCancel(t *testing.T) {
	s := NewStore()
	fired := make(chan struct{})
	token := s.Open(candidates(), alice, 20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onExpire not called")
	}
	_, err := s.Choose(token, "alice", "https://www.youtube.com/watch?v=1")
	assert.ErrorIs(t, err, ErrSelectionExpired)
}

func TestOpenCapsCandidates(t *testing.T) {
	s := NewStore()
	var many []sources.Candidate
	for i := 0; i < 15; i++ {
		many = append(many, sources.Candidate{Token: string(rune('a' + i))})
	}
	token := s.Open(many, alice, time.Minute, nil)
	_, err := s.Choose(token, "alice", "o")
	assert.ErrorIs(t, err, ErrUnknownChoice, "the 15th candidate was dropped")
}
