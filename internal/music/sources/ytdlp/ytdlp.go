package ytdlp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
)

const printTemplate = "%(url)s\t%(title)s\t%(duration)s\t%(thumbnail)s\t%(webpage_url)s"

var knownHosts = []string{
	"soundcloud.com",
	"bandcamp.com",
	"vimeo.com",
	"twitch.tv",
	"mixcloud.com",
	"dailymotion.com",
}

// YTDLPSource resolves anything yt-dlp understands. It claims a handful of
// well known hosts directly and serves as the last resort for other links.
type YTDLPSource struct {
	proxy string
	log   zerolog.Logger
}

func New(proxy string, log zerolog.Logger) *YTDLPSource {
	return &YTDLPSource{
		proxy: proxy,
		log:   log.With().Str("source", sources.SourceYTDLP).Logger(),
	}
}

func (s *YTDLPSource) SourceName() string {
	return sources.SourceYTDLP
}

func (s *YTDLPSource) Match(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, known := range knownHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

func (s *YTDLPSource) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		IgnoreConfig()
	if s.proxy != "" {
		cmd = cmd.Proxy(s.proxy)
	}
	return cmd
}

func (s *YTDLPSource) Extract(ctx context.Context, rawURL string) (sources.Media, error) {
	rawURL = strings.TrimSpace(rawURL)

	res, err := s.command().
		Print(printTemplate).
		Format("bestaudio/best").
		NoPlaylist().
		Run(ctx, "--skip-download", rawURL)
	if err != nil {
		return sources.Media{}, wrapRunError(res, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		media, ok := parseExtractLine(line)
		if !ok {
			continue
		}
		if media.CanonicalURL == "" {
			media.CanonicalURL = rawURL
		}
		media.ResolvedAt = time.Now()
		s.log.Debug().Str("url", media.CanonicalURL).Str("title", media.Title).Msg("extracted")
		return media, nil
	}
	return sources.Media{}, fmt.Errorf("yt-dlp returned no playable entry for %s", rawURL)
}

func (s *YTDLPSource) Search(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	if limit <= 0 || limit > sources.MaxCandidates {
		limit = sources.MaxCandidates
	}

	res, err := s.command().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, wrapRunError(res, err)
	}

	out := parseSearchOutput(res.Stdout, limit)
	if len(out) == 0 {
		return nil, sources.ErrNoResults
	}
	return out, nil
}

func parseExtractLine(line string) (sources.Media, bool) {
	ps := strings.Split(line, "\t")
	if len(ps) < 5 || ps[0] == "" || ps[0] == "NA" {
		return sources.Media{}, false
	}
	d := parseSeconds(ps[2])
	m := sources.Media{
		StreamingURI:    ps[0],
		Title:           na(ps[1]),
		DurationSeconds: int(d / time.Second),
		ThumbnailURL:    na(ps[3]),
		CanonicalURL:    na(ps[4]),
		SourceName:      sources.SourceYTDLP,
	}
	if d > 0 {
		m.Duration = sources.FormatDuration(d)
	}
	return m, true
}

func parseSearchOutput(stdout string, limit int) []sources.Candidate {
	var out []sources.Candidate
	for _, l := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 || ps[0] == "" {
			continue
		}
		c := sources.Candidate{
			Token:   ps[0],
			Title:   na(ps[1]),
			Summary: na(ps[2]),
		}
		if d := parseSeconds(ps[3]); d > 0 {
			c.Duration = sources.FormatDuration(d)
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// parseSeconds accepts yt-dlp duration output such as "213", "213.0" or "NA".
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func na(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func wrapRunError(res *ytdlp.Result, err error) error {
	if res == nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	stderr := strings.TrimSpace(res.Stderr)
	if strings.Contains(strings.ToLower(stderr), "drm") {
		return fmt.Errorf("yt-dlp: DRM protected: %w", err)
	}
	if stderr == "" {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return fmt.Errorf("yt-dlp: %w: %s", err, lastLine(stderr))
}

func lastLine(s string) string {
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
