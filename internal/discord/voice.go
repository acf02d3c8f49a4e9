package discord

import (
	"context"
	"fmt"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/registry"
	"github.com/keshon/rbot/internal/music/stream"
)

// FindUserVoiceState looks the user up in the guild's cached voice states.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*command.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &command.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, command.ErrNotInVoice
}

// SinkFactory joins the origin's voice channel and wraps the connection in
// an audio sink.
func (b *Bot) SinkFactory(ffmpegPath string) registry.SinkFactory {
	return func(ctx context.Context, o registry.Origin) (player.Sink, error) {
		if o.VoiceChannelID == "" {
			return nil, fmt.Errorf("voice channel ID is not set")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vc, err := b.dg.ChannelVoiceJoin(o.GuildID, o.VoiceChannelID, false, true)
		if err != nil {
			return nil, fmt.Errorf("failed to join voice channel: %w", err)
		}
		b.log.Info().Str("guild", o.GuildID).Str("voice_channel", o.VoiceChannelID).Msg("joined voice channel")
		return stream.NewVoiceSink(vc, ffmpegPath, b.log), nil
	}
}
