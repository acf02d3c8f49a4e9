package presenter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/sources"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	mu      sync.Mutex
	next    int
	live    map[string]Payload
	edits   int
	deletes []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{live: map[string]Payload{}}
}

func (f *fakeSurface) SendNowPlaying(_ context.Context, _ string, p Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("m%d", f.next)
	f.live[id] = p
	return id, nil
}

func (f *fakeSurface) EditNowPlaying(_ context.Context, _, id string, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	f.live[id] = p
	return nil
}

func (f *fakeSurface) DeleteMessage(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	delete(f.live, id)
	return nil
}

func snapshot(paused bool, elapsed time.Duration, upcoming ...string) player.Snapshot {
	s := player.Snapshot{
		State:   player.StatePlaying,
		Paused:  paused,
		Elapsed: elapsed,
		Volume:  0.5,
		Current: &sources.Media{
			Title:        "Song",
			CanonicalURL: "https://www.youtube.com/watch?v=x",
			Duration:     "0:03:20",
			Requester:    sources.Requester{ID: "1", Name: "alice"},
		},
	}
	for _, u := range upcoming {
		s.Upcoming = append(s.Upcoming, queue.Item{Request: sources.Request{Query: u}})
	}
	s.QueueLen = len(upcoming)
	return s
}

func buttons(p Payload) map[string]bool {
	out := map[string]bool{}
	for _, b := range p.Buttons {
		out[b.ID] = !b.Disabled
	}
	return out
}

func TestRenderButtons(t *testing.T) {
	playing := buttons(Render(snapshot(false, 0)))
	assert.False(t, playing[ButtonPlay])
	assert.True(t, playing[ButtonPause])
	assert.False(t, playing[ButtonNext])
	assert.True(t, playing[ButtonStop])

	paused := buttons(Render(snapshot(true, 0, "next one")))
	assert.True(t, paused[ButtonPlay])
	assert.False(t, paused[ButtonPause])
	assert.True(t, paused[ButtonNext])
	assert.True(t, paused[ButtonStop])
}

func TestRenderFields(t *testing.T) {
	var many []string
	for i := 0; i < 12; i++ {
		many = append(many, fmt.Sprint("t", i))
	}
	p := Render(snapshot(false, 75*time.Second, many...))
	assert.Equal(t, "Song", p.Title)
	assert.Equal(t, "alice", p.Requester)
	assert.Equal(t, "1:15", p.Elapsed)
	assert.Equal(t, 50, p.Volume)
	assert.Len(t, p.Upcoming, player.DefaultPreview)
	assert.Equal(t, "t0", p.Upcoming[0])
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", FormatElapsed(0))
	assert.Equal(t, "3:07", FormatElapsed(187*time.Second))
	assert.Equal(t, "1:02:03", FormatElapsed(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "0:00", FormatElapsed(-time.Second))
}

func TestPublishSupersedesPreviousMessage(t *testing.T) {
	surface := newFakeSurface()
	p := New(surface, "c1", 0, zerolog.Nop())
	ctx := context.Background()

	p.Publish(ctx, snapshot(false, 0))
	first := p.MessageID()
	p.Publish(ctx, snapshot(true, time.Second))

	require.NotEqual(t, first, p.MessageID())
	assert.Equal(t, []string{first}, surface.deletes)
	assert.Len(t, surface.live, 1)

	p.Clear(ctx)
	assert.Empty(t, p.MessageID())
	assert.Empty(t, surface.live)

	p.Clear(ctx)
	assert.Len(t, surface.deletes, 2)
}

func TestRefreshEditsOnlyOnChange(t *testing.T) {
	surface := newFakeSurface()
	p := New(surface, "c1", 0, zerolog.Nop())
	ctx := context.Background()

	p.Refresh(ctx, snapshot(false, time.Second))
	assert.Equal(t, 0, surface.edits, "nothing to edit before publish")

	p.Publish(ctx, snapshot(false, time.Second))
	p.Refresh(ctx, snapshot(false, time.Second+100*time.Millisecond))
	assert.Equal(t, 0, surface.edits, "same rendering")

	p.Refresh(ctx, snapshot(false, 2*time.Second))
	assert.Equal(t, 1, surface.edits)
	assert.Equal(t, "0:02", surface.live[p.MessageID()].Elapsed)
}

func TestRefreshIsThrottled(t *testing.T) {
	surface := newFakeSurface()
	p := New(surface, "c1", time.Hour, zerolog.Nop())
	ctx := context.Background()

	p.Publish(ctx, snapshot(false, 0))
	p.Refresh(ctx, snapshot(false, time.Second))
	p.Refresh(ctx, snapshot(false, 2*time.Second))
	p.Refresh(ctx, snapshot(false, 3*time.Second))
	assert.Equal(t, 1, surface.edits)
}
