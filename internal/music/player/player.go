// Package player runs the per-guild playback loop. One goroutine owns all
// playback state; everything else talks to it through commands and reads
// it through snapshots.
package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/sources"

	"github.com/rs/zerolog"
)

const (
	DefaultIdleTimeout = 300 * time.Second
	DefaultVolume      = 0.5
	DefaultPreview     = 9

	uiTimeout = 10 * time.Second
)

type Config struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
	IdleTimeout    time.Duration
	Volume         float64
	Preview        int
	// RefreshEvery is the now playing tick while a track runs; 0 disables it.
	RefreshEvery time.Duration
}

type Deps struct {
	Queue     *queue.Queue
	Sink      Sink
	Resolver  Resolver
	Presenter Presenter
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

type cmdKind int

const (
	cmdPause cmdKind = iota
	cmdResume
	cmdSkip
	cmdStop
	cmdVolume
)

type reply struct {
	outcome Outcome
	err     error
}

type command struct {
	kind   cmdKind
	volume float64
	reply  chan reply
}

func (c command) answer(o Outcome, err error) {
	c.reply <- reply{outcome: o, err: err}
}

type trackEvent struct {
	gen uint64
	err error
}

type Player struct {
	cfg       Config
	queue     *queue.Queue
	sink      Sink
	resolver  Resolver
	presenter Presenter
	notifier  Notifier
	metrics   *metrics.Metrics
	log       zerolog.Logger

	cmds      chan command
	trackDone chan trackEvent
	done      chan struct{}
	startOnce sync.Once

	// lifeMu orders enqueues against teardown so no item lands in a dead queue.
	lifeMu sync.RWMutex
	closed bool

	snap atomic.Pointer[Snapshot]
	exit atomic.Int32

	// loop goroutine only
	state     State
	current   *sources.Media
	paused    bool
	skipping  bool
	volume    float64
	elapsed   time.Duration
	resumedAt time.Time
	gen       uint64
	ticker    *time.Ticker
}

func New(cfg Config, d Deps) *Player {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = DefaultVolume
	}
	if cfg.Preview <= 0 {
		cfg.Preview = DefaultPreview
	}
	if d.Queue == nil {
		d.Queue = queue.New(queue.DefaultCapacity)
	}
	if d.Presenter == nil {
		d.Presenter = nopPresenter{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}

	p := &Player{
		cfg:       cfg,
		queue:     d.Queue,
		sink:      d.Sink,
		resolver:  d.Resolver,
		presenter: d.Presenter,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		log:       d.Log.With().Str("component", "player").Str("guild", cfg.GuildID).Logger(),
		cmds:      make(chan command),
		trackDone: make(chan trackEvent, 1),
		done:      make(chan struct{}),
		volume:    cfg.Volume,
	}
	p.storeSnapshot()
	return p
}

// Start launches the loop once. Cancelling ctx destroys the player.
func (p *Player) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

// Done is closed when the loop has exited and released its state.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Closed reports whether the player stopped accepting requests. It turns
// true before Done is closed, while the loop is still tearing down.
func (p *Player) Closed() bool {
	p.lifeMu.RLock()
	defer p.lifeMu.RUnlock()
	return p.closed
}

func (p *Player) ExitReason() ExitReason {
	return ExitReason(p.exit.Load())
}

func (p *Player) GuildID() string {
	return p.cfg.GuildID
}

func (p *Player) TextChannelID() string {
	return p.cfg.TextChannelID
}

func (p *Player) VoiceChannelID() string {
	return p.cfg.VoiceChannelID
}

// Snapshot returns the latest published state with the queue preview and
// elapsed time brought up to date.
func (p *Player) Snapshot() Snapshot {
	s := *p.snap.Load()
	s.QueueLen = p.queue.Len()
	s.Upcoming = p.queue.Peek(p.cfg.Preview)
	return s.at(time.Now())
}

// Enqueue adds a request for the loop. It fails with queue.ErrQueueFull at
// capacity and ErrNotConnected once the player is destroyed.
func (p *Player) Enqueue(item queue.Item) error {
	p.lifeMu.RLock()
	defer p.lifeMu.RUnlock()

	if p.closed {
		return ErrNotConnected
	}
	if err := p.queue.Enqueue(item); err != nil {
		p.metrics.EnqueueRejected()
		return err
	}
	p.log.Debug().Str("query", item.Request.Query).Int("queue_len", p.queue.Len()).Msg("enqueued")
	return nil
}

func (p *Player) Pause(ctx context.Context) (Outcome, error) {
	return p.send(ctx, command{kind: cmdPause})
}

func (p *Player) Resume(ctx context.Context) (Outcome, error) {
	return p.send(ctx, command{kind: cmdResume})
}

// Skip stops the current track; the loop then advances exactly as if the
// track had ended.
func (p *Player) Skip(ctx context.Context) (Outcome, error) {
	return p.send(ctx, command{kind: cmdSkip})
}

// Stop drops the queue, halts playback and ends the loop.
func (p *Player) Stop(ctx context.Context) (Outcome, error) {
	return p.send(ctx, command{kind: cmdStop})
}

// SetVolume applies v to the current track and every later one.
func (p *Player) SetVolume(ctx context.Context, v float64) (Outcome, error) {
	if v <= 0 || v > 1 {
		return NoOp, ErrInvalidVolume
	}
	return p.send(ctx, command{kind: cmdVolume, volume: v})
}

func (p *Player) send(ctx context.Context, c command) (Outcome, error) {
	c.reply = make(chan reply, 1)

	select {
	case p.cmds <- c:
	case <-p.done:
		return NoOp, ErrNotConnected
	case <-ctx.Done():
		return NoOp, ctx.Err()
	}

	select {
	case r := <-c.reply:
		return r.outcome, r.err
	case <-p.done:
		select {
		case r := <-c.reply:
			return r.outcome, r.err
		default:
			return NoOp, ErrNotConnected
		}
	case <-ctx.Done():
		return NoOp, ctx.Err()
	}
}

func (p *Player) run(ctx context.Context) {
	defer p.teardown()
	p.log.Info().Str("voice_channel", p.cfg.VoiceChannelID).Msg("playback loop started")

	for {
		item, ok := p.await(ctx)
		if !ok {
			return
		}
		media, ok, cont := p.resolve(ctx, item)
		if !cont {
			return
		}
		if !ok {
			continue
		}
		if !p.play(ctx, media) {
			return
		}
	}
}

// await waits for the next item. The idle deadline restarts on every entry.
func (p *Player) await(ctx context.Context) (queue.Item, bool) {
	p.state = StateAwaiting
	p.storeSnapshot()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if item, ok := p.queue.TryDequeue(); ok {
			return item, true
		}
		select {
		case <-p.queue.Ready():
		case c := <-p.cmds:
			if p.handle(c) {
				return queue.Item{}, false
			}
		case <-idle.C:
			if p.closeIfIdle() {
				p.exit.Store(int32(ExitIdle))
				p.metrics.IdleTeardown()
				return queue.Item{}, false
			}
		case <-ctx.Done():
			p.exit.Store(int32(ExitCancelled))
			return queue.Item{}, false
		}
	}
}

type resolved struct {
	media sources.Media
	err   error
}

// resolve always fetches a fresh streaming URI. It returns cont=false when
// the loop must exit.
func (p *Player) resolve(ctx context.Context, item queue.Item) (media sources.Media, ok bool, cont bool) {
	target := item.Request.Query
	if item.Media != nil && item.Media.CanonicalURL != "" {
		target = item.Media.CanonicalURL
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan resolved, 1)
	go func() {
		m, err := p.resolver.Reresolve(rctx, target)
		resCh <- resolved{media: m, err: err}
	}()

	for {
		select {
		case r := <-resCh:
			if r.err != nil {
				p.metrics.ResolutionFailed()
				p.log.Warn().Err(r.err).Str("target", target).Msg("resolution failed")
				p.notify(fmt.Sprintf("Could not play **%s**, skipping.", item.Title()))
				return sources.Media{}, false, true
			}
			m := r.media
			m.Requester = item.Request.Requester
			if m.Title == "" {
				m.Title = item.Title()
			}
			return m, true, true
		case c := <-p.cmds:
			if p.handle(c) {
				return sources.Media{}, false, false
			}
		case <-ctx.Done():
			p.exit.Store(int32(ExitCancelled))
			return sources.Media{}, false, false
		}
	}
}

// play runs one track to completion. It returns false when the loop must exit.
func (p *Player) play(ctx context.Context, media sources.Media) bool {
	p.gen++
	gen := p.gen
	onDone := func(err error) {
		select {
		case p.trackDone <- trackEvent{gen: gen, err: err}:
		case <-p.done:
		}
	}

	if err := p.sink.Play(media.StreamingURI, p.volume, onDone); err != nil {
		p.metrics.TrackFinished(metrics.ReasonError)
		p.log.Error().Err(err).Str("title", media.Title).Msg("sink refused track")
		p.notify(fmt.Sprintf("Could not play **%s**, skipping.", media.Title))
		return true
	}

	p.current = &media
	p.paused = false
	p.skipping = false
	p.elapsed = 0
	p.resumedAt = time.Now()
	p.state = StatePlaying
	p.metrics.TrackStarted()
	p.log.Info().Str("title", media.Title).Str("url", media.CanonicalURL).Str("requester", media.Requester.String()).Msg("track started")

	p.render()
	uctx, cancel := uiContext()
	p.notifier.SetListening(uctx, media.Title)
	cancel()

	p.startTicker()
	defer p.stopTicker()

	for {
		select {
		case ev := <-p.trackDone:
			if ev.gen != gen {
				continue
			}
			p.finish(ev.err)
			return true
		case c := <-p.cmds:
			if p.handle(c) {
				p.metrics.TrackFinished(metrics.ReasonStopped)
				return false
			}
		case <-p.tick():
			p.storeSnapshot()
			uctx, cancel := uiContext()
			p.presenter.Refresh(uctx, p.Snapshot())
			cancel()
		case <-ctx.Done():
			p.exit.Store(int32(ExitCancelled))
			p.sink.Stop()
			p.metrics.TrackFinished(metrics.ReasonStopped)
			return false
		}
	}
}

// finish is shared by natural ends, skips and sink errors.
func (p *Player) finish(err error) {
	reason := metrics.ReasonCompleted
	switch {
	case err != nil:
		reason = metrics.ReasonError
		p.log.Warn().Err(err).Str("title", p.current.Title).Msg("playback ended with error")
	case p.skipping:
		reason = metrics.ReasonSkipped
	}
	p.metrics.TrackFinished(reason)
	p.log.Info().Str("title", p.current.Title).Str("reason", reason).Msg("track finished")

	p.current = nil
	p.paused = false
	p.skipping = false
	p.state = StateAwaiting
	p.storeSnapshot()

	uctx, cancel := uiContext()
	p.presenter.Clear(uctx)
	cancel()
}

// handle answers a command from whichever state the loop is in and reports
// whether the loop must exit.
func (p *Player) handle(c command) bool {
	switch c.kind {
	case cmdStop:
		p.exit.Store(int32(ExitStopped))
		if p.current != nil {
			p.sink.Stop()
		}
		c.answer(Changed, nil)
		return true

	case cmdVolume:
		p.volume = c.volume
		if p.current != nil {
			p.sink.SetVolume(c.volume)
			p.render()
		} else {
			p.storeSnapshot()
		}
		c.answer(Changed, nil)

	case cmdPause:
		switch {
		case p.current == nil:
			c.answer(NoOp, ErrInvalidTransportState)
		case p.paused:
			c.answer(NoOp, nil)
		default:
			p.sink.Pause()
			p.paused = true
			p.elapsed += time.Since(p.resumedAt)
			p.stopTicker()
			p.render()
			c.answer(Changed, nil)
		}

	case cmdResume:
		switch {
		case p.current == nil:
			c.answer(NoOp, ErrInvalidTransportState)
		case !p.paused:
			c.answer(NoOp, nil)
		default:
			p.sink.Resume()
			p.paused = false
			p.resumedAt = time.Now()
			p.startTicker()
			p.render()
			c.answer(Changed, nil)
		}

	case cmdSkip:
		switch {
		case p.current == nil:
			c.answer(NoOp, ErrInvalidTransportState)
		case p.skipping:
			c.answer(NoOp, nil)
		default:
			p.skipping = true
			p.sink.Stop()
			c.answer(Changed, nil)
		}
	}
	return false
}

// closeIfIdle closes the player when nothing is queued. Holding lifeMu for
// the check keeps a concurrent Enqueue from landing in a queue about to be
// dropped.
func (p *Player) closeIfIdle() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if !p.queue.IsEmpty() {
		return false
	}
	p.closed = true
	return true
}

func (p *Player) teardown() {
	p.lifeMu.Lock()
	p.closed = true
	dropped := p.queue.Clear()
	p.lifeMu.Unlock()

	p.current = nil
	p.paused = false
	p.state = StateDestroyed
	p.storeSnapshot()

	uctx, cancel := uiContext()
	defer cancel()
	p.presenter.Clear(uctx)
	p.notifier.SetListening(uctx, "")
	if p.ExitReason() == ExitIdle {
		p.notifier.Notify(uctx, p.cfg.TextChannelID, "Nothing left to play, leaving the voice channel.")
	}

	p.log.Info().Stringer("reason", p.ExitReason()).Int("dropped", dropped).Msg("playback loop exited")
	close(p.done)
}

func (p *Player) storeSnapshot() {
	now := time.Now()
	s := &Snapshot{
		GuildID: p.cfg.GuildID,
		State:   p.state,
		Current: p.current,
		Paused:  p.paused,
		Volume:  p.volume,
		TakenAt: now,
	}
	if p.current != nil {
		s.Elapsed = p.elapsed
		if !p.paused {
			s.Elapsed += now.Sub(p.resumedAt)
		}
	}
	p.snap.Store(s)
}

// render publishes a fresh now playing message.
func (p *Player) render() {
	p.storeSnapshot()
	uctx, cancel := uiContext()
	defer cancel()
	p.presenter.Publish(uctx, p.Snapshot())
}

func (p *Player) notify(text string) {
	uctx, cancel := uiContext()
	defer cancel()
	p.notifier.Notify(uctx, p.cfg.TextChannelID, text)
}

func (p *Player) startTicker() {
	if p.cfg.RefreshEvery <= 0 || p.ticker != nil {
		return
	}
	p.ticker = time.NewTicker(p.cfg.RefreshEvery)
}

func (p *Player) stopTicker() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
}

// tick is nil, and so never fires, while no ticker runs.
func (p *Player) tick() <-chan time.Time {
	if p.ticker == nil {
		return nil
	}
	return p.ticker.C
}

func uiContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), uiTimeout)
}
