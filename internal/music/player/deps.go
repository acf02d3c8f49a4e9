package player

import (
	"context"

	"github.com/keshon/rbot/internal/music/sources"
)

// Sink plays one stream at a time. onDone fires exactly once for every Play
// that returned nil: with nil at the natural end or after Stop, or with the
// playback error.
type Sink interface {
	Play(uri string, volume float64, onDone func(error)) error
	Pause()
	Resume()
	Stop()
	SetVolume(v float64)
	IsPaused() bool
	IsPlaying() bool
	Close() error
}

type Resolver interface {
	Reresolve(ctx context.Context, canonicalURL string) (sources.Media, error)
}

// Presenter keeps the now playing message in sync.
type Presenter interface {
	Publish(ctx context.Context, s Snapshot)
	Refresh(ctx context.Context, s Snapshot)
	Clear(ctx context.Context)
}

// Notifier reaches the guild's text channel and the bot presence.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string)
	SetListening(ctx context.Context, title string)
}

type nopPresenter struct{}

func (nopPresenter) Publish(context.Context, Snapshot) {}
func (nopPresenter) Refresh(context.Context, Snapshot) {}
func (nopPresenter) Clear(context.Context)             {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) {}
func (nopNotifier) SetListening(context.Context, string)   {}
