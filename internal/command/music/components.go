package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/music/presenter"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/selection"
	"github.com/keshon/rbot/internal/music/sources"

	"github.com/bwmarrin/discordgo"
)

// Discord caps select option labels, descriptions and values at 100 runes.
const maxOptionLen = 100

// selectable drops candidates whose token cannot be a select value.
func selectable(cands []sources.Candidate) []sources.Candidate {
	out := make([]sources.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Token == "" || len(c.Token) > maxOptionLen {
			continue
		}
		out = append(out, c)
		if len(out) == sources.MaxCandidates {
			break
		}
	}
	return out
}

func selectionComponents(token string, cands []sources.Candidate) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(cands))
	for i, c := range cands {
		label := c.Title
		if label == "" {
			label = c.Token
		}
		desc := c.Summary
		if c.Duration != "" {
			desc = strings.TrimSpace(c.Duration + " " + desc)
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(fmt.Sprintf("%d. %s", i+1, label), maxOptionLen),
			Value:       c.Token,
			Description: truncate(desc, maxOptionLen),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    command.CustomID("music", "select", token),
				Placeholder: "Choose a track",
				Options:     options,
			},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: command.CustomID("music", "cancel", token),
				Label:    "Cancel",
				Style:    discordgo.DangerButton,
			},
		}},
	}
}

// NowPlayingEmbed renders a presenter payload as a Discord embed.
func NowPlayingEmbed(p presenter.Payload) *discordgo.MessageEmbed {
	title := "🎶 Now Playing"
	if p.Paused {
		title = "⏸️ Paused"
	}
	desc := p.Title
	if p.URL != "" {
		desc = fmt.Sprintf("[%s](%s)", p.Title, p.URL)
	}

	progress := p.Elapsed
	if p.Duration != "" {
		progress += " / " + p.Duration
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Requested by", Value: orDash(p.Requester), Inline: true},
		{Name: "Progress", Value: progress, Inline: true},
		{Name: "Volume", Value: fmt.Sprintf("%d%%", p.Volume), Inline: true},
	}
	if len(p.Upcoming) > 0 {
		var b strings.Builder
		for i, t := range p.Upcoming {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t)
		}
		if rest := p.QueueLen - len(p.Upcoming); rest > 0 {
			fmt.Fprintf(&b, "…and %d more", rest)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Up next",
			Value: truncate(strings.TrimSpace(b.String()), 1024),
		})
	}

	e := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       command.EmbedColor,
		Fields:      fields,
	}
	if p.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.Thumbnail}
	}
	return e
}

// NowPlayingButtons renders the transport buttons of a payload.
func NowPlayingButtons(p presenter.Payload) []discordgo.MessageComponent {
	row := make([]discordgo.MessageComponent, 0, len(p.Buttons))
	for _, b := range p.Buttons {
		btn := discordgo.Button{
			CustomID: b.ID,
			Label:    b.Label,
			Style:    discordgo.SecondaryButton,
			Disabled: b.Disabled,
		}
		if b.ID == presenter.ButtonStop {
			btn.Style = discordgo.DangerButton
		}
		if b.Emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
		}
		row = append(row, btn)
	}
	if len(row) == 0 {
		return nil
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: row}}
}

// Component handles the now playing buttons and the search menu.
func (c *MusicCommand) Component(ctx context.Context, cc *command.ComponentInteractionContext) error {
	s, e := cc.Session, cc.Event
	r := newRequest(e)
	data := e.MessageComponentData()

	action, token, _ := strings.Cut(cc.CustomID(), ":")
	switch action {
	case "select":
		value := ""
		if len(data.Values) > 0 {
			value = data.Values[0]
		}
		// the player may need to join voice first
		if err := command.DeferUpdate(s, e); err != nil {
			return fmt.Errorf("failed to acknowledge selection: %w", err)
		}
		rep, done := c.choose(ctx, r, token, value)
		if !done {
			return command.FollowupEmbedEphemeral(s, e, rep.embed())
		}
		embeds := []*discordgo.MessageEmbed{command.EmbedWithColor(rep.embed())}
		components := []discordgo.MessageComponent{}
		_, err := s.InteractionResponseEdit(e.Interaction, &discordgo.WebhookEdit{
			Embeds:     &embeds,
			Components: &components,
		})
		return err

	case "cancel":
		rep, done := c.cancel(r, token)
		if !done {
			return command.RespondEmbedEphemeral(s, e, rep.embed())
		}
		return command.UpdateMessage(s, e, rep.embed(), nil)

	case "play", "pause", "next", "stop":
		if err := command.DeferUpdate(s, e); err != nil {
			return fmt.Errorf("failed to acknowledge button: %w", err)
		}
		if rep := c.button(ctx, r, action); rep.text != "" {
			return command.FollowupEmbedEphemeral(s, e, rep.embed())
		}
		return nil
	}
	return command.RespondText(s, e, "Unknown action.")
}

// choose consumes a selection and queues the chosen track. done reports
// whether the menu message should be replaced by the reply.
func (c *MusicCommand) choose(ctx context.Context, r request, token, value string) (reply, bool) {
	cand, err := c.Selections.Choose(token, r.Requester.ID, value)
	switch {
	case errors.Is(err, selection.ErrNotRequester):
		return notice("Only the person who searched can pick a track."), false
	case errors.Is(err, selection.ErrSelectionExpired):
		return notice("This selection has expired."), false
	case err != nil:
		return notice("That option is not available."), false
	}

	rep := c.enqueue(ctx, r, queue.Item{
		Request: sources.Request{Query: cand.Token, Requester: r.Requester},
		Media: &sources.Media{
			Title:        cand.Title,
			CanonicalURL: cand.Token,
			Duration:     cand.Duration,
			Requester:    r.Requester,
		},
	})
	return rep, true
}

func (c *MusicCommand) cancel(r request, token string) (reply, bool) {
	err := c.Selections.Cancel(token, r.Requester.ID)
	switch {
	case errors.Is(err, selection.ErrNotRequester):
		return notice("Only the person who searched can cancel."), false
	case err != nil:
		return notice("This selection has expired."), false
	}
	return reply{text: "Selection cancelled."}, true
}

// button runs a transport button. An empty reply means the now playing
// message will reflect the change by itself.
func (c *MusicCommand) button(ctx context.Context, r request, action string) reply {
	var rep reply
	switch action {
	case "play":
		rep = c.resume(ctx, r)
	case "pause":
		rep = c.pause(ctx, r)
	case "next":
		rep = c.skip(ctx, r)
	case "stop":
		rep = c.stop(ctx, r)
	}
	if !rep.ephemeral {
		return reply{}
	}
	return rep
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
