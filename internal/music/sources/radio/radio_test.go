package radio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAcceptsAudioStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", "Night FM")
	}))
	defer srv.Close()

	src := New(zerolog.Nop())
	require.True(t, src.Match(srv.URL+"/live"))

	media, err := src.Extract(context.Background(), srv.URL+"/live")
	require.NoError(t, err)
	assert.Equal(t, "Night FM", media.Title)
	assert.Equal(t, srv.URL+"/live", media.CanonicalURL)
	assert.Equal(t, srv.URL+"/live", media.StreamingURI)
}

func TestExtractFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/ogg")
	}))
	defer srv.Close()

	media, err := New(zerolog.Nop()).Extract(context.Background(), srv.URL+"/stream.ogg")
	require.NoError(t, err)
	assert.NotEmpty(t, media.Title)
}

func TestExtractRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}))
	defer srv.Close()

	_, err := New(zerolog.Nop()).Extract(context.Background(), srv.URL+"/page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAStream))
}

func TestMatch(t *testing.T) {
	src := New(zerolog.Nop())
	assert.False(t, src.Match("lofi beats"))
	assert.False(t, src.Match("ftp://example.com/a.mp3"))
	assert.True(t, src.Match("https://example.com/a.mp3"))
}
