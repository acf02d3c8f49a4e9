package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCommand struct {
	perms []int64
	err   error
	runs  int
}

func (t *testCommand) Name() string             { return "music" }
func (t *testCommand) Description() string      { return "" }
func (t *testCommand) Group() string            { return "music" }
func (t *testCommand) UserPermissions() []int64 { return t.perms }
func (t *testCommand) Run(context.Context, any) error {
	t.runs++
	return t.err
}

// captureReplies swaps the reply function for the duration of a test.
func captureReplies(t *testing.T) *[]string {
	t.Helper()
	var got []string
	prev := respond
	respond = func(_ *discordgo.Session, _ *discordgo.InteractionCreate, text string) error {
		got = append(got, text)
		return nil
	}
	t.Cleanup(func() { respond = prev })
	return &got
}

func slash(guildID, channelID, userID string) *cmd.Invocation {
	return &cmd.Invocation{Data: &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			GuildID:   guildID,
			ChannelID: channelID,
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user" + userID}},
		}},
	}}
}

func TestGuildOnly(t *testing.T) {
	replies := captureReplies(t)
	inner := &testCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithGuildOnly())

	err := c.Run(context.Background(), slash("", "c1", "u1"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, inner.runs)
	assert.Len(t, *replies, 1)

	require.NoError(t, c.Run(context.Background(), slash("g1", "c1", "u1")))
	assert.Equal(t, 1, inner.runs)
}

func TestMusicChannel(t *testing.T) {
	replies := captureReplies(t)
	prev := channelName
	channelName = func(_ *discordgo.Session, id string) (string, error) {
		if id == "music-id" {
			return "Music", nil
		}
		return "general", nil
	}
	t.Cleanup(func() { channelName = prev })

	inner := &testCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithMusicChannel("music"))

	require.ErrorIs(t, c.Run(context.Background(), slash("g1", "other", "u1")), ErrRejected)
	require.NoError(t, c.Run(context.Background(), slash("g1", "music-id", "u1")))
	assert.Equal(t, 1, inner.runs)
	assert.Contains(t, (*replies)[0], "#music")

	disabled := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithMusicChannel("*"))
	require.NoError(t, disabled.Run(context.Background(), slash("g1", "other", "u1")))
	assert.Equal(t, 2, inner.runs)
}

func TestUserPermissionCheck(t *testing.T) {
	replies := captureReplies(t)
	prev := memberPermissions
	memberPermissions = func(_ *discordgo.Session, userID, _ string) (int64, error) {
		switch userID {
		case "mod":
			return discordgo.PermissionManageMessages, nil
		case "admin":
			return discordgo.PermissionAdministrator, nil
		}
		return discordgo.PermissionSendMessages, nil
	}
	t.Cleanup(func() { memberPermissions = prev })

	inner := &testCommand{perms: []int64{discordgo.PermissionManageMessages}}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: inner}, WithUserPermissionCheck("dev"))

	require.ErrorIs(t, c.Run(context.Background(), slash("g1", "c1", "pleb")), ErrRejected)
	assert.Contains(t, (*replies)[0], "Manage Messages")

	for _, u := range []string{"mod", "admin", "dev"} {
		require.NoError(t, c.Run(context.Background(), slash("g1", "c1", u)), u)
	}
	assert.Equal(t, 3, inner.runs)
}

func TestMissingPermissions(t *testing.T) {
	assert.Nil(t, missingPermissions(discordgo.PermissionAdministrator, []int64{discordgo.PermissionManageMessages}))
	assert.Equal(t, []string{"Manage Messages", "0x1"},
		missingPermissions(0, []int64{discordgo.PermissionManageMessages, 1}))
}

func TestCommandLoggerCounts(t *testing.T) {
	captureReplies(t)
	m := metrics.New()
	failing := &testCommand{err: errors.New("boom")}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: failing}, WithCommandLogger(zerolog.Nop(), m), WithGuildOnly())

	assert.Error(t, c.Run(context.Background(), slash("g1", "c1", "u1")))
	assert.NoError(t, c.Run(context.Background(), slash("", "c1", "u1")))

	ok := cmd.Apply(&command.DiscordAdapter{Cmd: &testCommand{}}, WithCommandLogger(zerolog.Nop(), m))
	assert.NoError(t, ok.Run(context.Background(), slash("g1", "c1", "u1")))

	expected := `
# HELP rbot_commands_total Commands executed, by name and result
# TYPE rbot_commands_total counter
rbot_commands_total{command="music",result="error"} 1
rbot_commands_total{command="music",result="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "rbot_commands_total"))
}
