package command

import (
	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0xb01e66

// --- Interaction responses ---

// RespondEmbed sends a public embed response to an interaction.
func RespondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{EmbedWithColor(embed)}},
	})
}

// RespondEmbedEphemeral sends an embed only the caller can see.
func RespondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{EmbedWithColor(embed)},
		},
	})
}

// RespondText sends a short ephemeral notice.
func RespondText(s *discordgo.Session, i *discordgo.InteractionCreate, text string) error {
	return RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{Description: text})
}

// RespondDeferred acknowledges an interaction; the answer follows as a followup.
func RespondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

// DeferUpdate acknowledges a component interaction without changing its message.
func DeferUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// UpdateMessage replaces the message a component is attached to.
func UpdateMessage(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{EmbedWithColor(embed)},
			Components: components,
		},
	})
}

// --- Followup messages ---

// FollowupEmbed sends a public embed followup message.
func FollowupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{EmbedWithColor(embed)},
	})
	return err
}

// FollowupEmbedEphemeral sends an ephemeral embed followup message.
func FollowupEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{EmbedWithColor(embed)},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	return err
}

// FollowupComponents sends a followup carrying components and returns the
// created message.
func FollowupComponents(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) (*discordgo.Message, error) {
	return s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{EmbedWithColor(embed)},
		Components: components,
	})
}

// EditFollowup rewrites a followup message and drops its components.
func EditFollowup(s *discordgo.Session, i *discordgo.Interaction, messageID string, embed *discordgo.MessageEmbed) error {
	embeds := []*discordgo.MessageEmbed{EmbedWithColor(embed)}
	components := []discordgo.MessageComponent{}
	_, err := s.FollowupMessageEdit(i, messageID, &discordgo.WebhookEdit{
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

// --- Event helpers ---

// InteractionUser returns the user behind an interaction, guild or DM.
func InteractionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e == nil {
		return nil
	}
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	return e.User
}

// DisplayName prefers the guild nickname.
func DisplayName(e *discordgo.InteractionCreate) string {
	if e != nil && e.Member != nil && e.Member.Nick != "" {
		return e.Member.Nick
	}
	if u := InteractionUser(e); u != nil {
		if u.GlobalName != "" {
			return u.GlobalName
		}
		return u.Username
	}
	return "unknown"
}

// Options indexes interaction options by name.
func Options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

// EmbedWithColor gives embed the bot color unless it has one.
func EmbedWithColor(embed *discordgo.MessageEmbed) *discordgo.MessageEmbed {
	if embed.Color == 0 {
		embed.Color = EmbedColor
	}
	return embed
}
