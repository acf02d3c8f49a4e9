package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(vars map[string]string) (*Config, error) {
	return Parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(map[string]string{"RBOT_DISCORD_TOKEN": "tok"})
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.DiscordToken)
	assert.Equal(t, "général", cfg.StatusChannel)
	assert.Equal(t, "music", cfg.MusicChannel)
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, 300*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 0.5, cfg.DefaultVolume)
	assert.Equal(t, 60*time.Second, cfg.SelectionTimeout)
	assert.True(t, cfg.InitSlashCommands)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestTokenRequired(t *testing.T) {
	_, err := parse(map[string]string{})
	assert.Error(t, err)
}

func TestOverridesAndDebug(t *testing.T) {
	cfg, err := parse(map[string]string{
		"RBOT_DISCORD_TOKEN":   "tok",
		"RBOT_DEBUG":           "true",
		"RBOT_IDLE_TIMEOUT":    "2m",
		"RBOT_GUILD_BLACKLIST": "1,2",
		"RBOT_MUSIC_CHAN":      "*",
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)
	assert.True(t, cfg.IsBlacklisted("2"))
	assert.False(t, cfg.IsBlacklisted("3"))
	assert.False(t, cfg.MusicChannelRequired())
}

func TestValidate(t *testing.T) {
	_, err := parse(map[string]string{"RBOT_DISCORD_TOKEN": "tok", "RBOT_DEFAULT_VOLUME": "1.5"})
	assert.ErrorContains(t, err, "DEFAULT_VOLUME")

	_, err = parse(map[string]string{"RBOT_DISCORD_TOKEN": "tok", "RBOT_QUEUE_CAPACITY": "0"})
	assert.ErrorContains(t, err, "QUEUE_CAPACITY")
}
