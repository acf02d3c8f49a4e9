package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Discord contexts, passed as cmd.Invocation.Data.

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Log     zerolog.Logger
}

type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Log     zerolog.Logger
}

// CustomID is the component's custom id without the command prefix.
func (c *ComponentInteractionContext) CustomID() string {
	_, rest := SplitCustomID(c.Event.MessageComponentData().CustomID)
	return rest
}

// Interaction extracts the session and event from any interaction context.
func Interaction(data any) (*discordgo.Session, *discordgo.InteractionCreate, bool) {
	switch v := data.(type) {
	case *SlashInteractionContext:
		return v.Session, v.Event, v.Event != nil
	case *ComponentInteractionContext:
		return v.Session, v.Event, v.Event != nil
	}
	return nil, nil, false
}

// Providers, how a command is exposed to Discord.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

type ComponentInteractionHandler interface {
	Component(ctx context.Context, c *ComponentInteractionContext) error
}

// DiscordMeta is what middleware may read from a command without knowing
// its concrete type.
type DiscordMeta interface {
	Group() string
	UserPermissions() []int64
}

// DiscordCommand is implemented by each Discord command.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	UserPermissions() []int64
	Run(ctx context.Context, data any) error
}

// DiscordAdapter turns a DiscordCommand into a cmd.Command. Component
// interactions go through Run as well so middleware applies to them.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	if c, ok := inv.Data.(*ComponentInteractionContext); ok {
		h, ok := a.Cmd.(ComponentInteractionHandler)
		if !ok {
			return fmt.Errorf("command %s has no component handler", a.Cmd.Name())
		}
		return h.Component(ctx, c)
	}
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand wraps c with mws and adds it to reg.
func RegisterCommand(reg *cmd.Registry, c DiscordCommand, mws ...cmd.Middleware) error {
	return reg.Register(cmd.Apply(&DiscordAdapter{Cmd: c}, mws...))
}

// Definition returns the application command behind c, looking through
// middleware wrappers.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// CustomID builds a component id routed to the named command.
func CustomID(command string, parts ...string) string {
	return strings.Join(append([]string{command}, parts...), ":")
}

// SplitCustomID returns the command a component id belongs to and the rest.
func SplitCustomID(id string) (command, rest string) {
	command, rest, _ = strings.Cut(id, ":")
	return command, rest
}
