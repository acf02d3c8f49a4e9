// Package discord connects the bot to Discord: gateway events, slash command
// sync, voice connections and the chat surface players render to.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/command/music"
	"github.com/keshon/rbot/internal/command/purge"
	"github.com/keshon/rbot/internal/command/roll"
	"github.com/keshon/rbot/internal/config"
	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/internal/middleware"
	"github.com/keshon/rbot/internal/music/registry"
	"github.com/keshon/rbot/internal/music/selection"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const (
	activationMessage = "Rbot activated.. 🚀"
	shutdownTimeout   = 10 * time.Second
)

// Services are what the commands drive.
type Services struct {
	Players    *registry.Registry
	Resolver   music.Resolver
	Selections *selection.Store
	Metrics    *metrics.Metrics
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	log      zerolog.Logger
	surface  *Surface
	commands *cmd.Registry
	players  *registry.Registry

	ctx       context.Context
	announced sync.Once
}

// NewBot prepares the session without connecting.
func NewBot(cfg *config.Config, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates

	log = log.With().Str("component", "discord").Logger()
	return &Bot{
		dg:       dg,
		cfg:      cfg,
		log:      log,
		surface:  NewSurface(dg, log),
		commands: cmd.NewRegistry(),
		ctx:      context.Background(),
	}, nil
}

// Surface is where players publish notices and now playing messages.
func (b *Bot) Surface() *Surface {
	return b.surface
}

// RegisterCommands builds every command with its middleware chain.
func (b *Bot) RegisterCommands(svc Services) error {
	b.players = svc.Players

	common := func(extra ...cmd.Middleware) []cmd.Middleware {
		return append([]cmd.Middleware{
			middleware.WithCommandLogger(b.log, svc.Metrics),
			middleware.WithGuildOnly(),
			middleware.WithUserPermissionCheck(b.cfg.DeveloperID),
		}, extra...)
	}

	musicCmd := &music.MusicCommand{
		Players:      svc.Players,
		Resolver:     svc.Resolver,
		Selections:   svc.Selections,
		Voice:        b,
		SelectionTTL: b.cfg.SelectionTimeout,
		Log:          b.log.With().Str("command", "music").Logger(),
	}
	return errors.Join(
		command.RegisterCommand(b.commands, musicCmd, common(middleware.WithMusicChannel(b.cfg.MusicChannel))...),
		command.RegisterCommand(b.commands, &roll.RollCommand{}, common()...),
		command.RegisterCommand(b.commands, &purge.ClearCommand{}, common()...),
	)
}

// Run connects and blocks until ctx is done, then tears every player down.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")

	if b.players == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.players.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown players: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := s.UpdateGameStatus(0, ""); err != nil {
		b.log.Debug().Err(err).Msg("failed to reset presence")
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

// onGuildCreate fires for every guild at startup and when the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log := b.log.With().Str("guild", g.ID).Str("guild_name", g.Name).Logger()

	if b.cfg.IsBlacklisted(g.ID) {
		log.Info().Msg("leaving blacklisted guild")
		b.removeAllCommands(g.ID)
		if err := s.GuildLeave(g.ID); err != nil {
			log.Error().Err(err).Msg("failed to leave guild")
		}
		return
	}

	if b.cfg.InitSlashCommands {
		if err := b.registerCommands(g.ID); err != nil {
			log.Error().Err(err).Msg("error registering slash commands")
		}
	} else {
		log.Debug().Msg("registering slash commands skipped")
	}

	if b.cfg.DiscordServer != "" && g.Name == b.cfg.DiscordServer {
		b.announced.Do(func() { b.announce(s, g.Guild) })
	}
}

// announce posts the activation message to the status channel.
func (b *Bot) announce(s *discordgo.Session, g *discordgo.Guild) {
	ch := findTextChannel(g.Channels, b.cfg.StatusChannel)
	if ch == nil {
		b.log.Warn().Str("channel", b.cfg.StatusChannel).Msg("status channel not found")
		return
	}
	if _, err := s.ChannelMessageSend(ch.ID, activationMessage); err != nil {
		b.log.Warn().Err(err).Msg("failed to announce activation")
	}
}

func findTextChannel(channels []*discordgo.Channel, name string) *discordgo.Channel {
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
			return ch
		}
	}
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	c, data, ok := b.route(s, i)
	if !ok {
		return
	}
	err := c.Run(b.ctx, &cmd.Invocation{Data: data})
	if err == nil || errors.Is(err, middleware.ErrRejected) {
		return
	}
	b.log.Error().Err(err).Str("command", c.Name()).Str("guild", i.GuildID).Msg("error running command")
	_ = command.RespondText(s, i, "Something went wrong, please try again.")
}

// route finds the command an interaction belongs to and the context it runs
// with. Components are routed by the command prefix of their custom id.
func (b *Bot) route(s *discordgo.Session, i *discordgo.InteractionCreate) (cmd.Command, any, bool) {
	log := b.log.With().Str("guild", i.GuildID).Logger()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		c, ok := b.commands.Get(name)
		if !ok {
			log.Warn().Str("command", name).Msg("unknown command")
			return nil, nil, false
		}
		return c, &command.SlashInteractionContext{Session: s, Event: i, Log: log}, true

	case discordgo.InteractionMessageComponent:
		id := i.MessageComponentData().CustomID
		name, _ := command.SplitCustomID(id)
		c, ok := b.commands.Get(name)
		if !ok {
			log.Warn().Str("custom_id", id).Msg("no command for component")
			return nil, nil, false
		}
		return c, &command.ComponentInteractionContext{Session: s, Event: i, Log: log}, true
	}

	log.Debug().Int("type", int(i.Type)).Msg("unhandled interaction type")
	return nil, nil, false
}

// onVoiceStateUpdate destroys the guild player once the bot itself is no
// longer in a voice channel, whoever disconnected it.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if b.players == nil || s.State == nil || s.State.User == nil {
		return
	}
	if !leftVoice(v, s.State.User.ID) {
		return
	}
	if _, ok := b.players.Get(v.GuildID); !ok {
		return
	}
	// a replacement player may have joined again since this event was sent
	if inVoice(s.State, v.GuildID, s.State.User.ID) {
		return
	}
	b.log.Info().Str("guild", v.GuildID).Msg("voice connection lost, destroying player")
	ctx, cancel := context.WithTimeout(b.ctx, shutdownTimeout)
	defer cancel()
	if err := b.players.Destroy(ctx, v.GuildID); err != nil {
		b.log.Warn().Err(err).Str("guild", v.GuildID).Msg("failed to destroy player")
	}
}

func leftVoice(v *discordgo.VoiceStateUpdate, botID string) bool {
	return v.VoiceState != nil && v.UserID == botID && v.ChannelID == ""
}

// inVoice reports whether the state cache has userID in a voice channel.
func inVoice(st *discordgo.State, guildID, userID string) bool {
	vs, err := st.VoiceState(guildID, userID)
	return err == nil && vs.ChannelID != ""
}
