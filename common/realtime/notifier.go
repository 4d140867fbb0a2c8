package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Notifier pushes channel events to connected frontends through Redis
// pub/sub. Channel names are namespaced by environment prefix, e.g.
// "dev:sellers:42". Publication is best-effort: errors are logged, never
// surfaced, and callers must not depend on delivery.
type Notifier struct {
	rdb       *redis.Client
	envPrefix string
	logger    *slog.Logger
}

func NewNotifier(rdb *redis.Client, envPrefix string, logger *slog.Logger) *Notifier {
	return &Notifier{
		rdb:       rdb,
		envPrefix: envPrefix,
		logger:    logger,
	}
}

type message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Publish sends eventName (with optional payload) to the namespaced channel.
func (n *Notifier) Publish(ctx context.Context, channel, eventName string, payload any) {
	if n == nil || n.rdb == nil {
		return
	}

	body, err := json.Marshal(message{Event: eventName, Payload: payload})
	if err != nil {
		n.logger.Error("failed to serialize realtime event",
			slog.String("event", eventName),
			slog.Any("error", err),
		)
		return
	}

	full := n.envPrefix + ":" + channel
	if err := n.rdb.Publish(ctx, full, body).Err(); err != nil {
		n.logger.Warn("failed to publish realtime event",
			slog.String("channel", full),
			slog.String("event", eventName),
			slog.Any("error", err),
		)
		return
	}

	n.logger.Debug("realtime event published",
		slog.String("channel", full),
		slog.String("event", eventName),
	)
}
