package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// channelName looks a channel up in the state cache first.
var channelName = func(s *discordgo.Session, channelID string) (string, error) {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

// WithMusicChannel only lets a command run in the text channel called name.
// An empty name or "*" disables the check.
func WithMusicChannel(name string) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		if name == "" || name == "*" {
			return c
		}
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, ok := command.Interaction(inv.Data)
			if !ok || e.GuildID == "" {
				return c.Run(ctx, inv)
			}
			got, err := channelName(s, e.ChannelID)
			if err != nil {
				return fmt.Errorf("failed to resolve channel: %w", err)
			}
			if !strings.EqualFold(got, name) {
				return reject(s, e, fmt.Sprintf("Music commands are only available in **#%s**.", name))
			}
			return c.Run(ctx, inv)
		})
	}
}
