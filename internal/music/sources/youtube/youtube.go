package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

var (
	ErrNoAudioFormat     = errors.New("no audio formats found for video")
	errUnsupportedScheme = errors.New("unsupported proxy scheme")
)

// YouTubeSource extracts YouTube videos with kkdai/youtube and searches with
// ytsearch, falling back to YouTube Music.
type YouTubeSource struct {
	client   *youtube.Client
	searcher *Searcher
	log      zerolog.Logger
}

func New(proxy string, log zerolog.Logger) *YouTubeSource {
	client, _ := NewClient(proxy, log)
	return &YouTubeSource{
		client:   client,
		searcher: NewSearcher(log),
		log:      log.With().Str("source", sources.SourceYouTube).Logger(),
	}
}

func (y *YouTubeSource) SourceName() string {
	return sources.SourceYouTube
}

func (y *YouTubeSource) Match(input string) bool {
	return isYouTubeVideoURL(input)
}

func (y *YouTubeSource) Extract(ctx context.Context, rawURL string) (sources.Media, error) {
	canonical := CleanVideoURL(strings.TrimSpace(rawURL))

	video, err := y.client.GetVideoContext(ctx, canonical)
	if err != nil {
		return sources.Media{}, fmt.Errorf("get video %s: %w", canonical, err)
	}

	format, err := bestAudioFormat(video.Formats)
	if err != nil {
		return sources.Media{}, err
	}

	link, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return sources.Media{}, fmt.Errorf("get stream URL: %w", err)
	}

	media := sources.Media{
		Title:           video.Title,
		CanonicalURL:    canonical,
		Duration:        sources.FormatDuration(video.Duration),
		DurationSeconds: int(video.Duration / time.Second),
		StreamingURI:    link,
		SourceName:      sources.SourceYouTube,
		ResolvedAt:      time.Now(),
	}
	if n := len(video.Thumbnails); n > 0 {
		media.ThumbnailURL = video.Thumbnails[n-1].URL
	}

	y.log.Debug().Str("url", canonical).Str("title", media.Title).Msg("extracted")
	return media, nil
}

func (y *YouTubeSource) Search(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	return y.searcher.Search(ctx, query, limit)
}

// bestAudioFormat prefers audio-only formats with the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, ErrNoAudioFormat
	}

	best := -1
	for i := range withAudio {
		f := &withAudio[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best < 0 || f.Bitrate > withAudio[best].Bitrate {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}
	return &withAudio[best], nil
}
