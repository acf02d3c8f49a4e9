package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/keshon/rbot/internal/music/presenter"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	sent      []*discordgo.MessageSend
	edits     []*discordgo.MessageEdit
	deleted   []string
	deleteErr error
	listening []string
	idle      int
}

func (f *fakeChat) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "m1"}, nil
}

func (f *fakeChat) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID}, nil
}

func (f *fakeChat) ChannelMessageDelete(_, id string, _ ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeChat) UpdateListeningStatus(name string) error {
	f.listening = append(f.listening, name)
	return nil
}

func (f *fakeChat) UpdateGameStatus(int, string) error {
	f.idle++
	return nil
}

func TestSurfaceNowPlaying(t *testing.T) {
	chat := &fakeChat{}
	s := NewSurface(chat, zerolog.Nop())
	p := presenter.Payload{
		Title:   "Song",
		URL:     "https://youtu.be/x",
		Elapsed: "0:10",
		Buttons: []presenter.Button{{ID: presenter.ButtonStop, Label: "Stop"}},
	}

	id, err := s.SendNowPlaying(context.Background(), "c1", p)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	require.Len(t, chat.sent, 1)
	assert.Equal(t, "[Song](https://youtu.be/x)", chat.sent[0].Embeds[0].Description)
	require.Len(t, chat.sent[0].Components, 1)

	require.NoError(t, s.EditNowPlaying(context.Background(), "c1", id, p))
	require.Len(t, chat.edits, 1)
	assert.Equal(t, "m1", chat.edits[0].ID)
	assert.Equal(t, "c1", chat.edits[0].Channel)
}

func TestSurfaceDeleteSwallowsMissingMessage(t *testing.T) {
	chat := &fakeChat{deleteErr: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}}
	s := NewSurface(chat, zerolog.Nop())
	assert.NoError(t, s.DeleteMessage(context.Background(), "c1", "gone"))

	chat.deleteErr = &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage},
	}
	assert.NoError(t, s.DeleteMessage(context.Background(), "c1", "gone"))

	chat.deleteErr = errors.New("boom")
	assert.Error(t, s.DeleteMessage(context.Background(), "c1", "m1"))
	assert.Equal(t, []string{"gone", "gone", "m1"}, chat.deleted)
}

func TestSurfacePresenceAndNotify(t *testing.T) {
	chat := &fakeChat{}
	s := NewSurface(chat, zerolog.Nop())

	s.SetListening(context.Background(), "Song")
	s.SetListening(context.Background(), "")
	assert.Equal(t, []string{"Song"}, chat.listening)
	assert.Equal(t, 1, chat.idle)

	s.Notify(context.Background(), "", "ignored")
	s.Notify(context.Background(), "c1", "hello")
	require.Len(t, chat.sent, 1)
	assert.Equal(t, "hello", chat.sent[0].Embeds[0].Description)
}
