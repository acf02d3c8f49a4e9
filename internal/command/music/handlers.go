package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/presenter"
	"github.com/keshon/rbot/internal/music/queue"
	"github.com/keshon/rbot/internal/music/registry"
	"github.com/keshon/rbot/internal/music/sources"

	"github.com/bwmarrin/discordgo"
)

// userError is an error whose text is shown to the user as is.
type userError string

func (e userError) Error() string { return string(e) }

const (
	errNotInVoice  userError = "You are not connected to a voice channel."
	errNotPlaying  userError = "I am not currently playing anything."
	errJoinFailed  userError = "Could not join your voice channel."
	errQueueIsFull userError = "The queue is full, try again once a track has finished."
)

// request is who asked, and from where.
type request struct {
	GuildID   string
	ChannelID string
	Requester sources.Requester
}

func newRequest(e *discordgo.InteractionCreate) request {
	r := request{GuildID: e.GuildID, ChannelID: e.ChannelID}
	if u := command.InteractionUser(e); u != nil {
		r.Requester = sources.Requester{ID: u.ID, Name: command.DisplayName(e)}
	}
	return r
}

// reply is what a handler wants shown; the Discord plumbing happens in the
// callers.
type reply struct {
	title      string
	text       string
	ephemeral  bool
	components []discordgo.MessageComponent
	menu       *menu
	custom     *discordgo.MessageEmbed
}

func (r reply) embed() *discordgo.MessageEmbed {
	if r.custom != nil {
		return r.custom
	}
	return &discordgo.MessageEmbed{Title: r.title, Description: r.text}
}

func notice(text string) reply {
	return reply{text: text, ephemeral: true}
}

func failure(err error) reply {
	return notice(err.Error())
}

// menu ties an open selection to the message showing it.
type menu struct {
	token       string
	requesterID string

	mu      sync.Mutex
	edit    func(*discordgo.MessageEmbed) error
	expired bool
}

func (m *menu) bind(edit func(*discordgo.MessageEmbed) error) {
	m.mu.Lock()
	m.edit = edit
	expired := m.expired
	m.mu.Unlock()
	if expired {
		_ = edit(expiredEmbed())
	}
}

func (m *menu) expire() {
	m.mu.Lock()
	m.expired = true
	edit := m.edit
	m.mu.Unlock()
	if edit != nil {
		_ = edit(expiredEmbed())
	}
}

func expiredEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "Selection timed out, nothing was queued."}
}

// userVoiceChannel is the voice channel the requester sits in.
func (c *MusicCommand) userVoiceChannel(r request) (string, bool) {
	vs, err := c.Voice.FindUserVoiceState(r.GuildID, r.Requester.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// ensureVoice returns the guild player. With create set, a missing player is
// started in the caller's voice channel.
func (c *MusicCommand) ensureVoice(ctx context.Context, r request, create bool) (*player.Player, error) {
	if p, ok := c.Players.Get(r.GuildID); ok {
		return p, nil
	}
	channelID, ok := c.userVoiceChannel(r)
	if !ok {
		return nil, errNotInVoice
	}
	if !create {
		return nil, errNotPlaying
	}
	p, err := c.Players.GetOrCreate(ctx, registry.Origin{
		GuildID:        r.GuildID,
		TextChannelID:  r.ChannelID,
		VoiceChannelID: channelID,
	})
	if err != nil {
		c.Log.Warn().Err(err).Str("guild", r.GuildID).Msg("failed to start player")
		return nil, errJoinFailed
	}
	return p, nil
}

func (c *MusicCommand) play(ctx context.Context, r request, query string) reply {
	query = strings.TrimSpace(query)
	if query == "" {
		return notice("Give me a link or something to search for.")
	}
	if _, ok := c.Players.Get(r.GuildID); !ok {
		if _, inVoice := c.userVoiceChannel(r); !inVoice {
			return failure(errNotInVoice)
		}
	}

	res, err := c.Resolver.Resolve(ctx, query)
	if err != nil {
		c.Log.Info().Err(err).Str("guild", r.GuildID).Str("query", query).Msg("resolve failed")
		if errors.Is(err, sources.ErrNoResults) {
			return notice(fmt.Sprintf("Nothing found for **%s**.", query))
		}
		return notice(fmt.Sprintf("Could not resolve **%s**.", query))
	}

	if res.Media == nil {
		return c.openMenu(r, res.Candidates)
	}
	media := *res.Media
	media.Requester = r.Requester
	return c.enqueue(ctx, r, queue.Item{
		Request: sources.Request{Query: media.CanonicalURL, Requester: r.Requester},
		Media:   &media,
	})
}

func (c *MusicCommand) enqueue(ctx context.Context, r request, item queue.Item) reply {
	p, err := c.ensureVoice(ctx, r, true)
	if err != nil {
		return failure(err)
	}
	if err := p.Enqueue(item); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return failure(errQueueIsFull)
		}
		return failure(errNotPlaying)
	}
	return reply{text: fmt.Sprintf("Added **%s** to the queue.", item.Title())}
}

func (c *MusicCommand) openMenu(r request, cands []sources.Candidate) reply {
	cands = selectable(cands)
	if len(cands) == 0 {
		return notice("Nothing playable found.")
	}
	m := &menu{requesterID: r.Requester.ID}
	m.token = c.Selections.Open(cands, r.Requester, c.SelectionTTL, m.expire)
	return reply{
		title:      "🔎 Pick a track",
		text:       fmt.Sprintf("%d results, choose one below.", len(cands)),
		components: selectionComponents(m.token, cands),
		menu:       m,
	}
}

func (c *MusicCommand) pause(ctx context.Context, r request) reply {
	p, ok := c.Players.Get(r.GuildID)
	if !ok {
		return failure(errNotPlaying)
	}
	out, err := p.Pause(ctx)
	return transportReply(out, err, "Paused ⏸️", "Already paused.")
}

func (c *MusicCommand) resume(ctx context.Context, r request) reply {
	p, err := c.ensureVoice(ctx, r, false)
	if err != nil {
		return failure(err)
	}
	out, err := p.Resume(ctx)
	return transportReply(out, err, "Resuming ⏯️", "Not paused.")
}

func (c *MusicCommand) skip(ctx context.Context, r request) reply {
	p, err := c.ensureVoice(ctx, r, false)
	if err != nil {
		return failure(err)
	}
	out, err := p.Skip(ctx)
	return transportReply(out, err, "Skipped ⏭️", "Already skipping.")
}

func (c *MusicCommand) stop(ctx context.Context, r request) reply {
	if _, err := c.ensureVoice(ctx, r, false); err != nil {
		return failure(err)
	}
	if err := c.Players.Destroy(ctx, r.GuildID); err != nil {
		c.Log.Warn().Err(err).Str("guild", r.GuildID).Msg("stop failed")
		return notice("Could not stop playback.")
	}
	return reply{text: "Stopped ⏹️ Queue cleared, leaving the voice channel."}
}

func (c *MusicCommand) volume(ctx context.Context, r request, percent int64) reply {
	if percent < 1 || percent > 100 {
		return notice("Please enter a value between 1 and 100.")
	}
	p, err := c.ensureVoice(ctx, r, false)
	if err != nil {
		return failure(err)
	}
	if _, err := p.SetVolume(ctx, float64(percent)/100); err != nil {
		return failure(errNotPlaying)
	}
	return reply{text: fmt.Sprintf("Volume set to **%d%%**", percent)}
}

func (c *MusicCommand) queue(r request) reply {
	p, err := c.ensureVoice(context.Background(), r, false)
	if err != nil {
		return failure(err)
	}
	snap := p.Snapshot()
	if len(snap.Upcoming) == 0 {
		return notice("There are currently no more queued songs.")
	}
	var b strings.Builder
	for i, item := range snap.Upcoming {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title())
	}
	if rest := snap.QueueLen - len(snap.Upcoming); rest > 0 {
		fmt.Fprintf(&b, "…and %d more", rest)
	}
	return reply{
		title:     fmt.Sprintf("Upcoming - Next %d", len(snap.Upcoming)),
		text:      strings.TrimSpace(b.String()),
		ephemeral: true,
	}
}

func (c *MusicCommand) now(r request) reply {
	p, err := c.ensureVoice(context.Background(), r, false)
	if err != nil {
		return failure(err)
	}
	snap := p.Snapshot()
	if !snap.Playing() {
		return failure(errNotPlaying)
	}
	return reply{custom: NowPlayingEmbed(presenter.Render(snap)), ephemeral: true}
}

// transportReply maps a transport outcome to a chat reply.
func transportReply(out player.Outcome, err error, changed, noop string) reply {
	switch {
	case errors.Is(err, player.ErrInvalidTransportState):
		return failure(errNotPlaying)
	case err != nil:
		return notice("The player is shutting down.")
	case out == player.NoOp:
		return notice(noop)
	}
	return reply{text: changed}
}
