package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// progressChannel is the pub/sub channel progress updates flow through.
const progressChannel = "poolpilot:progress"

// ProgressBus fans pipeline progress out over Redis pub/sub so every server
// instance can feed its WebSocket clients, not just the one running the
// pipeline.
type ProgressBus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewProgressBus creates a ProgressBus backed by the given Client.
func NewProgressBus(c *Client, logger *slog.Logger) *ProgressBus {
	return &ProgressBus{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "progress_bus")),
	}
}

// Publish implements domain.ProgressSink. Failures are logged and dropped;
// progress delivery must never stall the pipeline.
func (b *ProgressBus) Publish(p domain.Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		b.logger.Error("marshal progress", slog.String("error", err.Error()))
		return
	}
	if err := b.rdb.Publish(context.Background(), progressChannel, payload).Err(); err != nil {
		b.logger.Warn("publish progress", slog.String("error", err.Error()))
	}
}

// Compile-time interface check.
var _ domain.ProgressSink = (*ProgressBus)(nil)

// Subscribe delivers progress updates to the handler until ctx is cancelled.
// Malformed payloads are skipped.
func (b *ProgressBus) Subscribe(ctx context.Context, handler func(domain.Progress)) error {
	sub := b.rdb.Subscribe(ctx, progressChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var p domain.Progress
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				b.logger.Warn("decode progress message", slog.String("error", err.Error()))
				continue
			}
			handler(p)
		}
	}
}
