package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var videoURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube\.com/(?:watch\?|shorts/|live/)|youtu\.be/)\S+`)

func isYouTubeVideoURL(s string) bool {
	return videoURLPattern.MatchString(strings.TrimSpace(s))
}

// CleanVideoURL strips everything but the video id: playlists, timestamps and
// tracking parameters would otherwise produce different canonical URLs for the
// same track.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	switch u.Hostname() {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return watchURL(vid)

	case "www.youtube.com", "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return watchURL(vid)
			}
		}
		for _, prefix := range []string{"/shorts/", "/live/"} {
			if vid, ok := strings.CutPrefix(u.Path, prefix); ok && vid != "" {
				return watchURL(strings.Trim(vid, "/"))
			}
		}
		return raw

	default:
		return raw
	}
}

func watchURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}

// parseClock parses durations like "3:20" or "1:05:20".
func parseClock(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total int
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
