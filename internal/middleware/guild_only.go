package middleware

import (
	"context"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// respond is how middleware turns a rejection into a reply.
var respond = command.RespondText

// WithGuildOnly rejects interactions that do not come from a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, ok := command.Interaction(inv.Data)
			if ok && e.GuildID == "" {
				return reject(s, e, "This command only works in a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}

func reject(s *discordgo.Session, e *discordgo.InteractionCreate, msg string) error {
	if err := respond(s, e, msg); err != nil {
		return err
	}
	return ErrRejected
}
