package push

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDispatcher logs notifications instead of sending them. Used when no
// Firebase credentials are configured.
type LogDispatcher struct {
	log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With().Str("component", "push_log").Logger()}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) (Report, error) {
	if len(n.Tokens) == 0 {
		return Report{}, ErrNoTokens
	}
	d.log.Info().
		Str("user_id", n.UserID).
		Int("tokens", len(n.Tokens)).
		Str("title", n.Title).
		Str("body", n.Body).
		Interface("data", n.Data).
		Msg("Push notification")
	return Report{Sent: len(n.Tokens)}, nil
}
