package radio

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/rs/zerolog"
)

// ErrNotAStream is returned when a URL answers with something that is not an
// audio stream or playlist.
var ErrNotAStream = fmt.Errorf("%w: not an audio stream", sources.ErrUnsupported)

// RadioSource plays direct audio links and internet radio streams. The link
// itself is the streaming URI.
type RadioSource struct {
	prober *Prober
	log    zerolog.Logger
}

func New(log zerolog.Logger) *RadioSource {
	return &RadioSource{
		prober: NewProber(),
		log:    log.With().Str("source", sources.SourceRadio).Logger(),
	}
}

func (r *RadioSource) SourceName() string {
	return sources.SourceRadio
}

// Match accepts any http(s) URL. The content probe in Extract decides.
func (r *RadioSource) Match(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *RadioSource) Extract(ctx context.Context, rawURL string) (sources.Media, error) {
	rawURL = strings.TrimSpace(rawURL)

	probe, err := r.prober.Probe(ctx, rawURL)
	if err != nil {
		return sources.Media{}, err
	}

	title := probe.StationName
	if title == "" {
		title = titleFromURL(probe.FinalURL)
	}

	r.log.Debug().Str("url", rawURL).Str("content_type", probe.ContentType).Msg("stream accepted")
	return sources.Media{
		Title:        title,
		CanonicalURL: rawURL,
		StreamingURI: probe.FinalURL,
		SourceName:   sources.SourceRadio,
		ResolvedAt:   time.Now(),
	}, nil
}

func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return u.Host
	}
	return u.Host + "/" + base
}
