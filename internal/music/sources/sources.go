package sources

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	SourceYouTube = "youtube"
	SourceRadio   = "radio"
	SourceYTDLP   = "ytdlp"
)

// MaxCandidates bounds a disambiguation list.
const MaxCandidates = 10

var (
	ErrResolutionFailed = errors.New("resolution failed")
	ErrNoResults        = errors.New("no results")
	// ErrUnsupported means a source matched the input but cannot play it,
	// so the next source may try.
	ErrUnsupported = errors.New("unsupported input")
)

// Requester identifies the user who asked for a track.
type Requester struct {
	ID   string
	Name string
}

func (r Requester) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Request is a play request as typed by a user. It is immutable once queued.
type Request struct {
	Query     string
	Requester Requester
}

// Media is a resolved, playable track. StreamingURI expires server side and
// must never be reused from a stale value; callers re-resolve CanonicalURL.
type Media struct {
	Title           string
	CanonicalURL    string
	Duration        string
	DurationSeconds int
	ThumbnailURL    string
	StreamingURI    string
	SourceName      string
	Requester       Requester
	ResolvedAt      time.Time
}

// Candidate is one entry of a search result offered to the user.
type Candidate struct {
	Title    string
	Duration string
	Summary  string
	Token    string // canonical URL of the candidate
}

// Source extracts media from URLs it recognizes.
type Source interface {
	SourceName() string
	Match(input string) bool
	Extract(ctx context.Context, url string) (Media, error)
}

// Searcher turns free text into candidates.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Failed wraps err so that errors.Is(err, ErrResolutionFailed) holds.
func Failed(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrResolutionFailed, reason)
	}
	return fmt.Errorf("%w: %s: %w", ErrResolutionFailed, reason, err)
}

// FormatDuration renders d as h:mm:ss, the way track lengths are shown in chat.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
