package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/rbot/internal/music/sources"
	"github.com/keshon/rbot/internal/music/sources/radio"
	"github.com/keshon/rbot/internal/music/sources/youtube"
	"github.com/keshon/rbot/internal/music/sources/ytdlp"
	"github.com/keshon/rbot/pkg/retrylimit"

	"github.com/rs/zerolog"
)

// Result holds either a playable Media (direct URL) or a candidate list
// (free text search).
type Result struct {
	Media      *sources.Media
	Candidates []sources.Candidate
}

type Options struct {
	Proxy       string
	MaxAttempts int
	RetryDelay  time.Duration
}

// SourceResolver picks the source for a URL, extracts it with retries and
// runs searches for free text.
type SourceResolver struct {
	sources   []sources.Source
	fallback  sources.Source
	searchers []sources.Searcher
	limiter   *retrylimit.AdaptiveLimiter
	retry     retrylimit.RetryConfig
	log       zerolog.Logger
}

// New wires the production sources: YouTube first, then yt-dlp for the
// hosts it is known to handle, then direct streams, with yt-dlp as the
// catch-all.
func New(opts Options, log zerolog.Logger) *SourceResolver {
	yt := youtube.New(opts.Proxy, log)
	dl := ytdlp.New(opts.Proxy, log)
	return NewWithSources([]sources.Source{yt, dl, radio.New(log)}, dl, []sources.Searcher{yt, dl}, opts, log)
}

func NewWithSources(srcs []sources.Source, fallback sources.Source, searchers []sources.Searcher, opts Options, log zerolog.Logger) *SourceResolver {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	if opts.MaxAttempts > 0 {
		cfg.MaxAttempts = opts.MaxAttempts
	}
	if opts.RetryDelay > 0 {
		cfg.InitialDelay = opts.RetryDelay
	}
	cfg.MaxDelay = 5 * time.Second
	l := log.With().Str("component", "resolver").Logger()
	cfg.Logger = l

	return &SourceResolver{
		sources:   srcs,
		fallback:  fallback,
		searchers: searchers,
		limiter:   retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		retry:     cfg,
		log:       l,
	}
}

// Resolve turns a URL into Media and free text into up to
// sources.MaxCandidates candidates. Errors wrap sources.ErrResolutionFailed.
func (r *SourceResolver) Resolve(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, sources.Failed("empty query", sources.ErrNoResults)
	}

	if isURL(query) {
		m, err := r.Reresolve(ctx, query)
		if err != nil {
			return Result{}, err
		}
		return Result{Media: &m}, nil
	}

	cands, err := r.search(ctx, query)
	if err != nil {
		return Result{}, sources.Failed(fmt.Sprintf("search %q", query), err)
	}
	return Result{Candidates: cands}, nil
}

// Reresolve extracts canonicalURL again, producing a fresh StreamingURI.
func (r *SourceResolver) Reresolve(ctx context.Context, canonicalURL string) (sources.Media, error) {
	canonicalURL = strings.TrimSpace(canonicalURL)

	var media sources.Media
	err := retrylimit.WithRetryConfig(ctx, func() error {
		m, err := r.extract(ctx, canonicalURL)
		if err != nil {
			if isPermanent(err) {
				return retrylimit.Fatal(err)
			}
			return err
		}
		media = m
		return nil
	}, r.limiter, r.retry)
	if err != nil {
		return sources.Media{}, sources.Failed(canonicalURL, err)
	}
	return media, nil
}

func (r *SourceResolver) extract(ctx context.Context, url string) (sources.Media, error) {
	var lastErr error
	for _, src := range r.sources {
		if !src.Match(url) {
			continue
		}
		m, err := src.Extract(ctx, url)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, sources.ErrUnsupported) {
			return sources.Media{}, fmt.Errorf("%s: %w", src.SourceName(), err)
		}
		r.log.Debug().Err(err).Str("source", src.SourceName()).Str("url", url).Msg("source declined")
		lastErr = err
	}

	if r.fallback == nil {
		if lastErr == nil {
			lastErr = sources.ErrUnsupported
		}
		return sources.Media{}, lastErr
	}
	m, err := r.fallback.Extract(ctx, url)
	if err != nil {
		return sources.Media{}, fmt.Errorf("%s: %w", r.fallback.SourceName(), err)
	}
	return m, nil
}

func (r *SourceResolver) search(ctx context.Context, query string) ([]sources.Candidate, error) {
	err := error(sources.ErrNoResults)
	for _, s := range r.searchers {
		cands, serr := s.Search(ctx, query, sources.MaxCandidates)
		if serr == nil && len(cands) > 0 {
			if len(cands) > sources.MaxCandidates {
				cands = cands[:sources.MaxCandidates]
			}
			return cands, nil
		}
		if serr != nil {
			r.log.Warn().Err(serr).Str("query", query).Msg("search failed")
			err = serr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func isPermanent(err error) bool {
	return errors.Is(err, sources.ErrNoResults) ||
		errors.Is(err, sources.ErrUnsupported) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
