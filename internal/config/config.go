// Package config loads bot settings from the environment, after an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvPrefix = "RBOT_"

type Config struct {
	DiscordToken      string   `env:"DISCORD_TOKEN,required"`
	DiscordServer     string   `env:"DISCORD_SERVER"`
	StatusChannel     string   `env:"STATUS_CHAN" envDefault:"général"`
	MusicChannel      string   `env:"MUSIC_CHAN" envDefault:"music"`
	DeveloperID       string   `env:"DEVELOPER_ID"`
	GuildBlacklist    []string `env:"GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	DataDir           string   `env:"DATA_DIR" envDefault:"data"`

	Debug     bool   `env:"DEBUG"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"LOG_FILE"`

	QueueCapacity     int           `env:"QUEUE_CAPACITY" envDefault:"10"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"300s"`
	DefaultVolume     float64       `env:"DEFAULT_VOLUME" envDefault:"0.5"`
	NowPlayingRefresh time.Duration `env:"NOW_PLAYING_REFRESH" envDefault:"1s"`
	SelectionTimeout  time.Duration `env:"SELECTION_TIMEOUT" envDefault:"60s"`
	FFmpegPath        string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	YouTubeProxy      string        `env:"YOUTUBE_PROXY"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads .env if present, then the RBOT_ prefixed environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse(env.Options{Prefix: EnvPrefix})
}

// Parse reads the configuration with explicit options, for tests mostly.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DefaultVolume <= 0 || c.DefaultVolume > 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_VOLUME must be in (0, 1], got %v", c.DefaultVolume))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("QUEUE_CAPACITY must be at least 1, got %d", c.QueueCapacity))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout))
	}
	if c.SelectionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SELECTION_TIMEOUT must be positive, got %s", c.SelectionTimeout))
	}
	if c.NowPlayingRefresh < 0 {
		errs = append(errs, fmt.Errorf("NOW_PLAYING_REFRESH must not be negative, got %s", c.NowPlayingRefresh))
	}
	return errors.Join(errs...)
}

// MusicChannelRequired is false when MUSIC_CHAN is "*".
func (c *Config) MusicChannelRequired() bool {
	return c.MusicChannel != "" && c.MusicChannel != "*"
}

// IsBlacklisted reports whether the bot must leave guildID.
func (c *Config) IsBlacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if id == guildID {
			return true
		}
	}
	return false
}
