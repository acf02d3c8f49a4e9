package presenter

import (
	"fmt"
	"time"

	"github.com/keshon/rbot/internal/music/player"
)

// Component IDs of the transport buttons.
const (
	ButtonPlay  = "music:play"
	ButtonPause = "music:pause"
	ButtonNext  = "music:next"
	ButtonStop  = "music:stop"
)

type Button struct {
	ID       string
	Label    string
	Emoji    string
	Disabled bool
}

// Payload is everything a now playing message shows. Equal payloads render
// identical messages.
type Payload struct {
	Title     string
	URL       string
	Duration  string
	Elapsed   string
	Thumbnail string
	Requester string
	Upcoming  []string
	QueueLen  int
	Paused    bool
	Volume    int
	Buttons   []Button
}

// Render derives the payload from a snapshot. It has no side effects.
func Render(s player.Snapshot) Payload {
	p := Payload{
		Paused:   s.Paused,
		Volume:   int(s.Volume*100 + 0.5),
		QueueLen: s.QueueLen,
		Elapsed:  FormatElapsed(s.Elapsed),
	}
	if s.Current != nil {
		p.Title = s.Current.Title
		p.URL = s.Current.CanonicalURL
		p.Duration = s.Current.Duration
		p.Thumbnail = s.Current.ThumbnailURL
		p.Requester = s.Current.Requester.String()
	}

	n := min(len(s.Upcoming), player.DefaultPreview)
	for _, item := range s.Upcoming[:n] {
		p.Upcoming = append(p.Upcoming, item.Title())
	}

	p.Buttons = []Button{
		{ID: ButtonPlay, Label: "Play", Emoji: "▶️", Disabled: !s.Paused},
		{ID: ButtonPause, Label: "Pause", Emoji: "⏸️", Disabled: s.Paused},
		{ID: ButtonNext, Label: "Next", Emoji: "⏭️", Disabled: s.QueueLen == 0},
		{ID: ButtonStop, Label: "Stop", Emoji: "⏹️"},
	}
	return p
}

// FormatElapsed prints m:ss below an hour and h:mm:ss above.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func (p Payload) equal(o Payload) bool {
	if p.Title != o.Title || p.URL != o.URL || p.Duration != o.Duration ||
		p.Elapsed != o.Elapsed || p.Thumbnail != o.Thumbnail || p.Requester != o.Requester ||
		p.QueueLen != o.QueueLen || p.Paused != o.Paused || p.Volume != o.Volume ||
		len(p.Upcoming) != len(o.Upcoming) || len(p.Buttons) != len(o.Buttons) {
		return false
	}
	for i := range p.Upcoming {
		if p.Upcoming[i] != o.Upcoming[i] {
			return false
		}
	}
	for i := range p.Buttons {
		if p.Buttons[i] != o.Buttons[i] {
			return false
		}
	}
	return true
}
