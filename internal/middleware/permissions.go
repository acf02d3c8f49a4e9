package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:      "Administrator",
	discordgo.PermissionManageGuild:        "Manage Server",
	discordgo.PermissionManageChannels:     "Manage Channels",
	discordgo.PermissionManageMessages:     "Manage Messages",
	discordgo.PermissionReadMessageHistory: "Read Message History",
	discordgo.PermissionSendMessages:       "Send Messages",
	discordgo.PermissionViewChannel:        "View Channel",
	discordgo.PermissionVoiceConnect:       "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:         "Speak",
	discordgo.PermissionVoiceMoveMembers:   "Move Members",
	discordgo.PermissionModerateMembers:    "Moderate Members",
}

// memberPermissions resolves the caller's effective permissions in a channel.
var memberPermissions = func(s *discordgo.Session, userID, channelID string) (int64, error) {
	return s.UserChannelPermissions(userID, channelID)
}

// WithUserPermissionCheck requires the caller to hold at least one of the
// command's UserPermissions. Administrators and developerID always pass.
func WithUserPermissionCheck(developerID string) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			meta, ok := cmd.Root(c).(command.DiscordMeta)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			s, e, ok := command.Interaction(inv.Data)
			if !ok || e.GuildID == "" {
				return c.Run(ctx, inv)
			}
			u := command.InteractionUser(e)
			if u == nil {
				return c.Run(ctx, inv)
			}
			if developerID != "" && u.ID == developerID {
				return c.Run(ctx, inv)
			}

			perms, err := memberPermissions(s, u.ID, e.ChannelID)
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if missing := missingPermissions(perms, meta.UserPermissions()); len(missing) > 0 {
				return reject(s, e, fmt.Sprintf(
					"You need at least one of the following permissions to run this command:\n`%s`",
					strings.Join(missing, "`, `"),
				))
			}
			return c.Run(ctx, inv)
		})
	}
}

// missingPermissions returns the names of required when perms holds none of
// them, and nil otherwise.
func missingPermissions(perms int64, required []int64) []string {
	if perms&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	for _, p := range required {
		if perms&p != 0 {
			return nil
		}
	}
	names := make([]string, 0, len(required))
	for _, p := range required {
		name := PermissionNames[p]
		if name == "" {
			name = fmt.Sprintf("0x%x", p)
		}
		names = append(names, name)
	}
	return names
}
