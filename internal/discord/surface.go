package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/command/music"
	"github.com/keshon/rbot/internal/music/presenter"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// chatAPI is the part of *discordgo.Session the surface needs.
type chatAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UpdateListeningStatus(name string) error
	UpdateGameStatus(idle int, name string) error
}

// Surface renders player output into Discord: text notices, presence and the
// now playing message.
type Surface struct {
	api chatAPI
	log zerolog.Logger
}

func NewSurface(api chatAPI, log zerolog.Logger) *Surface {
	return &Surface{api: api, log: log.With().Str("component", "surface").Logger()}
}

func (s *Surface) Notify(ctx context.Context, channelID, text string) {
	if channelID == "" {
		return
	}
	_, err := s.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{command.EmbedWithColor(&discordgo.MessageEmbed{Description: text})},
	}, discordgo.WithContext(ctx))
	if err != nil {
		s.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send notice")
	}
}

// SetListening shows title as the bot's presence, or clears it.
func (s *Surface) SetListening(_ context.Context, title string) {
	var err error
	if title == "" {
		err = s.api.UpdateGameStatus(0, "")
	} else {
		err = s.api.UpdateListeningStatus(title)
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("failed to update presence")
	}
}

func (s *Surface) SendNowPlaying(ctx context.Context, channelID string, p presenter.Payload) (string, error) {
	msg, err := s.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{music.NowPlayingEmbed(p)},
		Components: music.NowPlayingButtons(p),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send now playing: %w", err)
	}
	return msg.ID, nil
}

func (s *Surface) EditNowPlaying(ctx context.Context, channelID, messageID string, p presenter.Payload) error {
	embeds := []*discordgo.MessageEmbed{music.NowPlayingEmbed(p)}
	components := music.NowPlayingButtons(p)
	_, err := s.api.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit now playing: %w", err)
	}
	return nil
}

// DeleteMessage removes a message; one that is already gone is not an error.
func (s *Surface) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := s.api.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil || isUnknownMessage(err) {
		return nil
	}
	return fmt.Errorf("delete message: %w", err)
}

func isUnknownMessage(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
