package youtube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanVideoURL(t *testing.T) {
	cases := map[string]string{
		"https://youtu.be/dQw4w9WgXcQ?t=42":                              "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&index=2": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=abc&feature=share":            "https://www.youtube.com/watch?v=abc",
		"https://www.youtube.com/shorts/xyz":                             "https://www.youtube.com/watch?v=xyz",
		"https://example.com/watch?v=abc":                                "https://example.com/watch?v=abc",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanVideoURL(in), in)
	}
}

func TestIsYouTubeVideoURL(t *testing.T) {
	assert.True(t, isYouTubeVideoURL("https://www.youtube.com/watch?v=abc"))
	assert.True(t, isYouTubeVideoURL("youtu.be/abc"))
	assert.False(t, isYouTubeVideoURL("never gonna give you up"))
	assert.False(t, isYouTubeVideoURL("https://soundcloud.com/a/b"))
}

func TestParseClock(t *testing.T) {
	assert.Equal(t, 200*time.Second, parseClock("3:20"))
	assert.Equal(t, time.Hour+5*time.Minute+20*time.Second, parseClock("1:05:20"))
	assert.Equal(t, time.Duration(0), parseClock("live"))
	assert.Equal(t, "0:03:20", normalizeClock("3:20"))
	assert.Equal(t, "", normalizeClock(""))
}
