package player

import (
	"errors"
	"time"

	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/sources"
)

type State int

const (
	StateIdle State = iota
	StateAwaiting
	StatePlaying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StatePlaying:
		return "playing"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Outcome tells a caller whether a transport command changed anything.
// Repeating a pause or resume is a NoOp, not an error.
type Outcome int

const (
	Changed Outcome = iota
	NoOp
)

func (o Outcome) String() string {
	if o == NoOp {
		return "noop"
	}
	return "changed"
}

// ExitReason records why a loop ended.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitIdle
	ExitStopped
	ExitCancelled
)

func (r ExitReason) String() string {
	switch r {
	case ExitIdle:
		return "idle"
	case ExitStopped:
		return "stopped"
	case ExitCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

var (
	ErrInvalidTransportState = errors.New("nothing is playing")
	ErrNotConnected          = errors.New("player is not connected")
	ErrInvalidVolume         = errors.New("volume must be in (0, 1]")
)

// Snapshot is an immutable view of a player, safe to share between
// goroutines.
type Snapshot struct {
	GuildID  string
	State    State
	Current  *sources.Media
	Paused   bool
	Elapsed  time.Duration
	Volume   float64
	QueueLen int
	Upcoming []queue.Item
	TakenAt  time.Time
}

// Playing reports whether a track is loaded, paused or not.
func (s Snapshot) Playing() bool {
	return s.State == StatePlaying && s.Current != nil
}

// at projects Elapsed to now for a running track.
func (s Snapshot) at(now time.Time) Snapshot {
	if s.Playing() && !s.Paused && !s.TakenAt.IsZero() {
		s.Elapsed += now.Sub(s.TakenAt)
		s.TakenAt = now
	}
	return s
}
