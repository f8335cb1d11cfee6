package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/friperie/api/internal/services"
)

// RedisBroadcaster fans events out through a Redis channel so that every API instance delivers
// to its own subscribers.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisBroadcaster publishes on channel and relays received events to hub.
func NewRedisBroadcaster(client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) (*RedisBroadcaster, error) {
	if client == nil || hub == nil {
		return nil, errors.New("realtime: redis client and hub are required")
	}
	if channel == "" {
		return nil, errors.New("realtime: redis channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, channel: channel, hub: hub, logger: logger.Named("realtime.redis")}, nil
}

// Broadcast publishes event; delivery happens in Run on every instance, this one included.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, event services.MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Run relays channel messages to the hub until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", b.channel, err)
	}
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event services.MessageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("discarding malformed event", zap.Error(err))
				continue
			}
			b.hub.deliver(event.Recipients, []byte(msg.Payload))
		}
	}
}
