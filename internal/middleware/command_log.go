package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/keshon/rbot/internal/command"
	"github.com/keshon/rbot/internal/metrics"
	"github.com/keshon/rbot/pkg/cmd"

	"github.com/rs/zerolog"
)

// ErrRejected marks an invocation a middleware refused and already answered.
var ErrRejected = errors.New("command rejected")

// WithCommandLogger logs every invocation and counts it in m.
func WithCommandLogger(log zerolog.Logger, m *metrics.Metrics) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			ev := log.Info()
			switch {
			case errors.Is(err, ErrRejected):
				ev = log.Debug()
			case err != nil:
				ev = log.Warn().Err(err)
			}
			if _, e, ok := command.Interaction(inv.Data); ok {
				ev = ev.Str("guild", e.GuildID).Str("channel", e.ChannelID)
				if u := command.InteractionUser(e); u != nil {
					ev = ev.Str("user", u.Username).Str("user_id", u.ID)
				}
			}
			if _, ok := inv.Data.(*command.ComponentInteractionContext); ok {
				ev = ev.Str("kind", "component")
			}
			ev.Str("command", c.Name()).Dur("took", time.Since(start)).Msg("command executed")

			if errors.Is(err, ErrRejected) {
				m.CommandExecuted(c.Name(), nil)
				return nil
			}
			m.CommandExecuted(c.Name(), err)
			return err
		})
	}
}
