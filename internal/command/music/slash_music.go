package music

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/registry"
	"github.com/keshon/rbot/internal/music/selection"
	"github.com/keshon/rbot/internal/music/source_resolver"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Players is the part of the guild registry the command drives.
type Players interface {
	GetOrCreate(ctx context.Context, o registry.Origin) (*player.Player, error)
	Get(guildID string) (*player.Player, bool)
	Destroy(ctx context.Context, guildID string) error
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (source_resolver.Result, error)
}

type MusicCommand struct {
	Players      Players
	Resolver     Resolver
	Selections   *selection.Store
	Voice        command.VoiceLocator
	SelectionTTL time.Duration
	Log          zerolog.Logger
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) UserPermissions() []int64 { return nil }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a link or search for a track",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "Link or search query",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback, clear the queue and leave",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show upcoming tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "now",
				Description: "Show the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Change the player volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "percent",
						Description: "Volume between 1 and 100",
						Required:    true,
						MinValue:    &minVolume,
						MaxValue:    100,
					},
				},
			},
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, data any) error {
	sc, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	opts := e.ApplicationCommandData().Options
	if len(opts) == 0 {
		return command.RespondText(s, e, "Missing subcommand.")
	}
	sub := opts[0]
	req := newRequest(e)
	args := command.Options(sub.Options)

	switch sub.Name {
	case "play":
		query := ""
		if o, ok := args["query"]; ok {
			query = o.StringValue()
		}
		if err := command.RespondDeferred(s, e, false); err != nil {
			return fmt.Errorf("failed to defer response: %w", err)
		}
		return c.followup(s, e, c.play(ctx, req, query))

	case "volume":
		var percent int64
		if o, ok := args["percent"]; ok {
			percent = o.IntValue()
		}
		return c.respond(s, e, c.volume(ctx, req, percent))

	case "pause":
		return c.respond(s, e, c.pause(ctx, req))
	case "resume":
		return c.respond(s, e, c.resume(ctx, req))
	case "skip":
		return c.respond(s, e, c.skip(ctx, req))
	case "stop":
		return c.respond(s, e, c.stop(ctx, req))
	case "queue":
		return c.respond(s, e, c.queue(req))
	case "now":
		return c.respond(s, e, c.now(req))
	}
	return command.RespondText(s, e, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
}

// respond answers a control subcommand immediately.
func (c *MusicCommand) respond(s *discordgo.Session, e *discordgo.InteractionCreate, r reply) error {
	embed := r.embed()
	if r.ephemeral {
		return command.RespondEmbedEphemeral(s, e, embed)
	}
	return command.RespondEmbed(s, e, embed)
}

// followup answers a deferred play, binding a selection menu to the sent
// message so its expiry can edit it.
func (c *MusicCommand) followup(s *discordgo.Session, e *discordgo.InteractionCreate, r reply) error {
	if r.menu == nil {
		return command.FollowupEmbed(s, e, r.embed())
	}
	msg, err := command.FollowupComponents(s, e, r.embed(), r.components)
	if err != nil {
		c.Selections.Cancel(r.menu.token, r.menu.requesterID)
		return fmt.Errorf("failed to send selection menu: %w", err)
	}
	r.menu.bind(func(embed *discordgo.MessageEmbed) error {
		return command.EditFollowup(s, e.Interaction, msg.ID, embed)
	})
	return nil
}
