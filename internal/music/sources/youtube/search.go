package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/rs/zerolog"
)

// Searcher turns free text into YouTube candidates. ytsearch is tried
// first, YouTube Music fills in when it comes back empty.
type Searcher struct {
	log zerolog.Logger
}

func NewSearcher(log zerolog.Logger) *Searcher {
	return &Searcher{log: log.With().Str("component", "youtube_search").Logger()}
}

func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, sources.ErrNoResults
	}
	if limit <= 0 || limit > sources.MaxCandidates {
		limit = sources.MaxCandidates
	}

	out, err := s.searchVideos(ctx, query, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("video search failed, trying music search")
	}
	if len(out) == 0 {
		out, err = s.searchMusic(query, limit)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
	}
	if len(out) == 0 {
		return nil, sources.ErrNoResults
	}
	return out, nil
}

func (s *Searcher) searchVideos(ctx context.Context, query string, limit int) ([]sources.Candidate, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []sources.Candidate
	for _, r := range res.Results {
		if r.VideoID == "" || seen[r.VideoID] {
			continue
		}
		seen[r.VideoID] = true
		out = append(out, sources.Candidate{
			Title:    r.Title,
			Duration: normalizeClock(r.Duration),
			Summary:  r.Channel,
			Token:    watchURL(r.VideoID),
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Searcher) searchMusic(query string, limit int) ([]sources.Candidate, error) {
	r, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []sources.Candidate
	for _, t := range r.Tracks {
		if t.VideoID == "" || seen[t.VideoID] {
			continue
		}
		seen[t.VideoID] = true

		var artists []string
		for _, a := range t.Artists {
			artists = append(artists, a.Name)
		}
		out = append(out, sources.Candidate{
			Title:   t.Title,
			Summary: strings.Join(artists, ", "),
			Token:   watchURL(t.VideoID),
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// normalizeClock rewrites "3:20" style durations into the H:MM:SS form used
// everywhere else.
func normalizeClock(s string) string {
	d := parseClock(s)
	if d == 0 {
		return ""
	}
	return sources.FormatDuration(d)
}
