package source_resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	prefix  string
	errs    []error
	calls   int
	results []sources.Candidate
}

func (f *fakeSource) SourceName() string { return f.name }

func (f *fakeSource) Match(input string) bool { return strings.HasPrefix(input, f.prefix) }

func (f *fakeSource) Extract(_ context.Context, url string) (sources.Media, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return sources.Media{}, err
		}
	}
	return sources.Media{
		Title:        f.name,
		CanonicalURL: url,
		StreamingURI: url + "#" + time.Now().Format(time.RFC3339Nano),
		SourceName:   f.name,
	}, nil
}

func (f *fakeSource) Search(_ context.Context, _ string, limit int) ([]sources.Candidate, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.results, nil
}

func newResolver(srcs []sources.Source, fallback sources.Source, searchers ...sources.Searcher) *SourceResolver {
	return NewWithSources(srcs, fallback, searchers, Options{MaxAttempts: 3, RetryDelay: time.Millisecond}, zerolog.Nop())
}

func TestResolveURLSkipsDisambiguation(t *testing.T) {
	yt := &fakeSource{name: "yt", prefix: "https://yt/"}
	r := newResolver([]sources.Source{yt}, nil)

	res, err := r.Resolve(context.Background(), "https://yt/abc")
	require.NoError(t, err)
	require.NotNil(t, res.Media)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "https://yt/abc", res.Media.CanonicalURL)
}

func TestResolveTextReturnsCandidates(t *testing.T) {
	var many []sources.Candidate
	for i := 0; i < 15; i++ {
		many = append(many, sources.Candidate{Title: "t", Token: "https://yt/x"})
	}
	empty := &fakeSource{name: "first"}
	second := &fakeSource{name: "second", results: many}
	r := newResolver(nil, nil, empty, second)

	res, err := r.Resolve(context.Background(), "lofi beats")
	require.NoError(t, err)
	assert.Nil(t, res.Media)
	assert.Len(t, res.Candidates, sources.MaxCandidates)
}

func TestResolveNoResults(t *testing.T) {
	r := newResolver(nil, nil, &fakeSource{name: "s"})
	_, err := r.Resolve(context.Background(), "nothing at all")
	assert.ErrorIs(t, err, sources.ErrResolutionFailed)
	assert.ErrorIs(t, err, sources.ErrNoResults)
}

func TestReresolveRetriesTransientFailures(t *testing.T) {
	yt := &fakeSource{name: "yt", prefix: "https://yt/", errs: []error{errors.New("timeout"), nil}}
	r := newResolver([]sources.Source{yt}, nil)

	m, err := r.Reresolve(context.Background(), "https://yt/abc")
	require.NoError(t, err)
	assert.Equal(t, 2, yt.calls)
	assert.NotEmpty(t, m.StreamingURI)
}

func TestReresolveGivesUpAndWraps(t *testing.T) {
	yt := &fakeSource{name: "yt", prefix: "https://yt/", errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	r := newResolver([]sources.Source{yt}, nil)

	_, err := r.Reresolve(context.Background(), "https://yt/abc")
	assert.ErrorIs(t, err, sources.ErrResolutionFailed)
	assert.Equal(t, 3, yt.calls)
}

func TestUnsupportedFallsThroughToFallback(t *testing.T) {
	radio := &fakeSource{name: "radio", prefix: "https://", errs: []error{sources.ErrUnsupported}}
	generic := &fakeSource{name: "generic"}
	r := newResolver([]sources.Source{radio}, generic)

	m, err := r.Reresolve(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "generic", m.SourceName)
	assert.Equal(t, 1, radio.calls)
}

func TestResolveEmptyQuery(t *testing.T) {
	r := newResolver(nil, nil)
	_, err := r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, sources.ErrResolutionFailed)
}
