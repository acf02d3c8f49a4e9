package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/rbot/internal/command"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultCount = 10
	maxCount     = 100

	// Discord refuses to bulk delete messages older than two weeks.
	bulkDeleteMaxAge = 14 * 24 * time.Hour
)

type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Delete the last messages of this channel" }
func (c *ClearCommand) Group() string       { return "moderation" }
func (c *ClearCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageMessages}
}

func (c *ClearCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minCount := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: fmt.Sprintf("How many messages, %d by default", defaultCount),
				MinValue:    &minCount,
				MaxValue:    maxCount,
			},
		},
	}
}

func (c *ClearCommand) Run(_ context.Context, data any) error {
	sc, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	count := defaultCount
	if o, ok := command.Options(e.ApplicationCommandData().Options)["count"]; ok {
		count = clamp(int(o.IntValue()))
	}

	if err := command.RespondDeferred(s, e, true); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	msgs, err := s.ChannelMessages(e.ChannelID, count, "", "", "")
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	bulk, single := partition(msgs, time.Now())
	deleted := 0
	if len(bulk) == 1 {
		single = append(single, bulk...)
		bulk = nil
	}
	if len(bulk) > 0 {
		if err := s.ChannelMessagesBulkDelete(e.ChannelID, bulk); err != nil {
			sc.Log.Warn().Err(err).Str("channel", e.ChannelID).Msg("bulk delete failed")
		} else {
			deleted += len(bulk)
		}
	}
	for _, id := range single {
		if err := s.ChannelMessageDelete(e.ChannelID, id); err != nil {
			sc.Log.Debug().Err(err).Str("message", id).Msg("delete failed")
			continue
		}
		deleted++
	}

	return command.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🧹 Deleted %d message(s).", deleted),
	})
}

func clamp(n int) int {
	switch {
	case n < 1:
		return defaultCount
	case n > maxCount:
		return maxCount
	}
	return n
}

// partition splits messages into those Discord can bulk delete and those
// that have to go one by one.
func partition(msgs []*discordgo.Message, now time.Time) (bulk, single []string) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if now.Sub(m.Timestamp) < bulkDeleteMaxAge {
			bulk = append(bulk, m.ID)
		} else {
			single = append(single, m.ID)
		}
	}
	return bulk, single
}
