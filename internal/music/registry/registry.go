// Package registry owns every live guild player: it is the only place that
// creates or destroys them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/pkg/util"

	"github.com/rs/zerolog"
)

// shutdownWorkers bounds how many players are torn down at once.
const shutdownWorkers = 8

// Origin is where a player was asked for.
type Origin struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
}

// SinkFactory connects the audio sink for a new player, typically by joining
// the voice channel.
type SinkFactory func(ctx context.Context, o Origin) (player.Sink, error)

// PresenterFactory builds the now playing presenter for a new player.
type PresenterFactory func(o Origin) player.Presenter

type Deps struct {
	Sinks      SinkFactory
	Presenters PresenterFactory
	Resolver   player.Resolver
	Notifier   player.Notifier
	Metrics    *metrics.Metrics
	Log        zerolog.Logger
}

type Options struct {
	QueueCapacity int
	Player        player.Config
}

type entry struct {
	p    *player.Player
	sink player.Sink
	once sync.Once
}

type Registry struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	players map[string]*entry
	wg      sync.WaitGroup
}

func New(deps Deps, opts Options) *Registry {
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:    deps,
		opts:    opts,
		log:     deps.Log.With().Str("component", "registry").Logger(),
		base:    base,
		cancel:  cancel,
		players: make(map[string]*entry),
	}
}

// GetOrCreate returns the guild's live player or starts exactly one. When the
// sink cannot be connected nothing is registered.
func (r *Registry) GetOrCreate(ctx context.Context, o Origin) (*player.Player, error) {
	if o.GuildID == "" {
		return nil, errors.New("guild id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.players[o.GuildID]; ok {
		if live(e.p) {
			return e.p, nil
		}
		// closed but its watcher has not run yet; free the voice connection
		// before joining again
		r.log.Warn().Str("guild", o.GuildID).Msg("replacing closed player")
		r.releaseLocked(o.GuildID, e)
	}
	if r.base.Err() != nil {
		return nil, player.ErrNotConnected
	}

	sink, err := r.deps.Sinks(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("connect audio sink: %w", err)
	}

	var presenter player.Presenter
	if r.deps.Presenters != nil {
		presenter = r.deps.Presenters(o)
	}

	cfg := r.opts.Player
	cfg.GuildID = o.GuildID
	cfg.TextChannelID = o.TextChannelID
	cfg.VoiceChannelID = o.VoiceChannelID

	p := player.New(cfg, player.Deps{
		Queue:     queue.New(r.opts.QueueCapacity),
		Sink:      sink,
		Resolver:  r.deps.Resolver,
		Presenter: presenter,
		Notifier:  r.deps.Notifier,
		Metrics:   r.deps.Metrics,
		Log:       r.deps.Log,
	})
	e := &entry{p: p, sink: sink}
	r.players[o.GuildID] = e
	r.deps.Metrics.PlayerStarted()

	p.Start(r.base)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		<-p.Done()
		r.release(o.GuildID, e)
	}()

	r.log.Info().Str("guild", o.GuildID).Str("voice_channel", o.VoiceChannelID).Msg("player created")
	return p, nil
}

func (r *Registry) Get(guildID string) (*player.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.players[guildID]
	if !ok || !live(e.p) {
		return nil, false
	}
	return e.p, true
}

// live reports whether p still accepts requests.
func live(p *player.Player) bool {
	select {
	case <-p.Done():
		return false
	default:
		return !p.Closed()
	}
}

// Destroy stops the guild's player, waits for its loop to exit and releases
// the sink. Destroying a guild without a player is a no-op.
func (r *Registry) Destroy(ctx context.Context, guildID string) error {
	r.mu.Lock()
	e, ok := r.players[guildID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := e.p.Stop(ctx); err != nil && !errors.Is(err, player.ErrNotConnected) {
		return fmt.Errorf("stop player: %w", err)
	}
	select {
	case <-e.p.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.release(guildID, e)
	return nil
}

// Shutdown destroys every player and stops accepting new ones.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	err := util.Parallel(ctx, ids, shutdownWorkers, func(ctx context.Context, id string) error {
		if err := r.Destroy(ctx, id); err != nil {
			return fmt.Errorf("guild %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// release runs once per entry, whether the loop was destroyed or left on its
// own.
func (r *Registry) release(guildID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(guildID, e)
}

func (r *Registry) releaseLocked(guildID string, e *entry) {
	e.once.Do(func() {
		if cur, ok := r.players[guildID]; ok && cur == e {
			delete(r.players, guildID)
		}

		if err := e.sink.Close(); err != nil {
			r.log.Warn().Err(err).Str("guild", guildID).Msg("closing sink failed")
		}
		r.deps.Metrics.PlayerDestroyed()
		r.log.Info().Str("guild", guildID).Stringer("reason", e.p.ExitReason()).Msg("player released")
	})
}
