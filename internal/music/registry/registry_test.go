package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/sources"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct {
	mu     sync.Mutex
	onDone func(error)
	closed atomic.Bool
}

func (s *nopSink) Play(_ string, _ float64, onDone func(error)) error {
	s.mu.Lock()
	s.onDone = onDone
	s.mu.Unlock()
	return nil
}

func (s *nopSink) Stop() {
	s.mu.Lock()
	cb := s.onDone
	s.onDone = nil
	s.mu.Unlock()
	if cb != nil {
		go cb(nil)
	}
}

func (s *nopSink) Pause()            {}
func (s *nopSink) Resume()           {}
func (s *nopSink) SetVolume(float64) {}
func (s *nopSink) IsPaused() bool    { return false }
func (s *nopSink) IsPlaying() bool   { return false }
func (s *nopSink) Close() error      { s.closed.Store(true); return nil }

type stubResolver struct{}

func (stubResolver) Reresolve(_ context.Context, url string) (sources.Media, error) {
	return sources.Media{Title: url, CanonicalURL: url, StreamingURI: url}, nil
}

type sinkCounter struct {
	mu    sync.Mutex
	sinks []*nopSink
	fail  error
}

func (c *sinkCounter) factory(ctx context.Context, o Origin) (player.Sink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	time.Sleep(5 * time.Millisecond) // voice join takes a while
	s := &nopSink{}
	c.sinks = append(c.sinks, s)
	return s, nil
}

func (c *sinkCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks)
}

func newRegistry(c *sinkCounter, idle time.Duration) *Registry {
	return New(Deps{
		Sinks:    c.factory,
		Resolver: stubResolver{},
		Log:      zerolog.Nop(),
	}, Options{Player: player.Config{IdleTimeout: idle}})
}

var origin = Origin{GuildID: "g1", TextChannelID: "t1", VoiceChannelID: "v1"}

func TestSinglePlayerUnderConcurrency(t *testing.T) {
	c := &sinkCounter{}
	r := newRegistry(c, time.Minute)
	defer r.Shutdown(context.Background())

	var wg sync.WaitGroup
	got := make([]*player.Player, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.GetOrCreate(context.Background(), origin)
			assert.NoError(t, err)
			got[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range got {
		assert.Same(t, got[0], p)
	}
	assert.Equal(t, 1, c.count())
	assert.Equal(t, 1, r.Len())
}

func TestDestroyThenCreateStartsNewLoop(t *testing.T) {
	c := &sinkCounter{}
	r := newRegistry(c, time.Minute)
	defer r.Shutdown(context.Background())
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, origin)
	require.NoError(t, err)
	require.NoError(t, r.Destroy(ctx, origin.GuildID))
	require.NoError(t, r.Destroy(ctx, origin.GuildID), "destroy is idempotent")

	select {
	case <-first.Done():
	default:
		t.Fatal("destroyed player still running")
	}
	_, ok := r.Get(origin.GuildID)
	assert.False(t, ok)
	assert.True(t, c.sinks[0].closed.Load())

	second, err := r.GetOrCreate(ctx, origin)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, c.count())

	_, err = first.Pause(ctx)
	assert.ErrorIs(t, err, player.ErrNotConnected)
}

func TestIdlePlayerIsReleased(t *testing.T) {
	c := &sinkCounter{}
	r := newRegistry(c, 30*time.Millisecond)
	defer r.Shutdown(context.Background())

	p, err := r.GetOrCreate(context.Background(), origin)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := r.Get(origin.GuildID)
		return !ok && r.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, player.ExitIdle, p.ExitReason())
	assert.Eventually(t, c.sinks[0].closed.Load, time.Second, 5*time.Millisecond)
}

type slowNotifier struct{ delay time.Duration }

func (n slowNotifier) Notify(context.Context, string, string) { time.Sleep(n.delay) }
func (n slowNotifier) SetListening(context.Context, string)   {}

func TestClosedPlayerIsReplacedDuringTeardown(t *testing.T) {
	c := &sinkCounter{}
	r := New(Deps{
		Sinks:    c.factory,
		Resolver: stubResolver{},
		Notifier: slowNotifier{delay: 300 * time.Millisecond},
		Log:      zerolog.Nop(),
	}, Options{Player: player.Config{IdleTimeout: 30 * time.Millisecond}})
	defer r.Shutdown(context.Background())
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, origin)
	require.NoError(t, err)
	require.Eventually(t, first.Closed, time.Second, time.Millisecond)

	// the idle notice is still being sent
	select {
	case <-first.Done():
		t.Fatal("teardown finished too early for this test")
	default:
	}
	_, ok := r.Get(origin.GuildID)
	assert.False(t, ok)

	second, err := r.GetOrCreate(ctx, origin)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, c.count())
	assert.True(t, c.sinks[0].closed.Load(), "old voice connection released before the new one")
	assert.False(t, c.sinks[1].closed.Load())
	require.NoError(t, second.Enqueue(queue.Item{Request: sources.Request{Query: "https://t/a"}}))

	// the old watcher must not drop the new entry
	<-first.Done()
	time.Sleep(10 * time.Millisecond)
	got, ok := r.Get(origin.GuildID)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.False(t, c.sinks[1].closed.Load())
}

func TestSinkFailureLeavesNoEntry(t *testing.T) {
	c := &sinkCounter{fail: errors.New("voice join timed out")}
	r := newRegistry(c, time.Minute)
	defer r.Shutdown(context.Background())

	_, err := r.GetOrCreate(context.Background(), origin)
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestShutdownDestroysAll(t *testing.T) {
	c := &sinkCounter{}
	r := newRegistry(c, time.Minute)
	ctx := context.Background()

	for _, g := range []string{"a", "b", "c"} {
		_, err := r.GetOrCreate(ctx, Origin{GuildID: g})
		require.NoError(t, err)
	}
	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, 0, r.Len())
	for _, s := range c.sinks {
		assert.True(t, s.closed.Load())
	}

	_, err := r.GetOrCreate(ctx, Origin{GuildID: "late"})
	assert.ErrorIs(t, err, player.ErrNotConnected)
}
