// Package presenter keeps one now playing message per guild in sync with the
// player.
package presenter

import (
	"context"
	"sync"
	"time"

	"github.com/keshon/rbot/internal/music/player"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Surface is the chat side of the presenter. DeleteMessage on a message that
// is already gone must return nil.
type Surface interface {
	SendNowPlaying(ctx context.Context, channelID string, p Payload) (messageID string, err error)
	EditNowPlaying(ctx context.Context, channelID, messageID string, p Payload) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type Presenter struct {
	surface   Surface
	channelID string
	limiter   *rate.Limiter
	log       zerolog.Logger

	mu        sync.Mutex
	messageID string
	last      Payload
}

// New builds a presenter posting into channelID. Refreshes are limited to
// one per minInterval; Publish and Clear are never limited.
func New(surface Surface, channelID string, minInterval time.Duration, log zerolog.Logger) *Presenter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Presenter{
		surface:   surface,
		channelID: channelID,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log.With().Str("component", "presenter").Str("channel", channelID).Logger(),
	}
}

// Publish replaces the live message with a fresh one.
func (p *Presenter) Publish(ctx context.Context, s player.Snapshot) {
	payload := Render(s)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleteLocked(ctx)

	id, err := p.surface.SendNowPlaying(ctx, p.channelID, payload)
	if err != nil {
		p.log.Warn().Err(err).Msg("send now playing failed")
		return
	}
	p.messageID = id
	p.last = payload
}

// Refresh edits the live message in place when the rendering changed and the
// limiter allows it.
func (p *Presenter) Refresh(ctx context.Context, s player.Snapshot) {
	payload := Render(s)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.messageID == "" || payload.equal(p.last) || !p.limiter.Allow() {
		return
	}
	if err := p.surface.EditNowPlaying(ctx, p.channelID, p.messageID, payload); err != nil {
		p.log.Debug().Err(err).Msg("edit now playing failed")
		return
	}
	p.last = payload
}

// Clear deletes the live message and forgets it.
func (p *Presenter) Clear(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteLocked(ctx)
}

// MessageID is the live message, empty when there is none.
func (p *Presenter) MessageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messageID
}

func (p *Presenter) deleteLocked(ctx context.Context) {
	if p.messageID == "" {
		return
	}
	if err := p.surface.DeleteMessage(ctx, p.channelID, p.messageID); err != nil {
		p.log.Debug().Err(err).Str("message", p.messageID).Msg("delete now playing failed")
	}
	p.messageID = ""
	p.last = Payload{}
}
