// cmd/discord/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/rbot/internal/config"
	"github.com/keshon/rbot/internal/discord"
	"github.com/keshon/rbot/internal/logger"
	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/internal/music/player"
	"github.com/keshon/rbot/internal/music/presenter"
	"github.com/keshon/rbot/internal/music/registry"
	"github.com/keshon/rbot/internal/music/selection"
	"github.com/keshon/rbot/internal/music/source_resolver"
)

const appName = "rbot"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.NewWithFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().Str("app", appName).Msg("starting bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, m, log); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	bot, err := discord.NewBot(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	resolver := source_resolver.New(source_resolver.Options{Proxy: cfg.YouTubeProxy}, log)
	surface := bot.Surface()
	players := registry.New(registry.Deps{
		Sinks: bot.SinkFactory(cfg.FFmpegPath),
		Presenters: func(o registry.Origin) player.Presenter {
			return presenter.New(surface, o.TextChannelID, cfg.NowPlayingRefresh, log)
		},
		Resolver: resolver,
		Notifier: surface,
		Metrics:  m,
		Log:      log,
	}, registry.Options{
		QueueCapacity: cfg.QueueCapacity,
		Player: player.Config{
			IdleTimeout:  cfg.IdleTimeout,
			Volume:       cfg.DefaultVolume,
			RefreshEvery: cfg.NowPlayingRefresh,
		},
	})

	if err := bot.RegisterCommands(discord.Services{
		Players:    players,
		Resolver:   resolver,
		Selections: selection.NewStore(),
		Metrics:    m,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to register commands")
	}

	if err := bot.Run(ctx); err != nil {
		log.Error().Err(err).Msg("discord bot error")
		os.Exit(1)
	}
	log.Info().Msg("bot stopped")
}
