package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis Pub/Sub. Redis delivers a published
// message to every connected subscriber, the publishing connection's
// subscriptions included, which gives the self-delivery the settlement flow
// depends on. Messages published while a subscriber is disconnected are
// lost, matching the bus's at-most-once contract.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRedisBus wraps an existing Redis client. Ping before handing the client
// in; the bus assumes a reachable server.
func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

// Publish marshals the envelope and publishes it on the Redis channel named
// by topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("realtime.RedisBus.Publish: marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("realtime.RedisBus.Publish: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on topic and decodes incoming
// messages into envelopes. Undecodable messages are logged and skipped. The
// subscription and the returned channel close when ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Envelope, error) {
	pubsub := b.rdb.Subscribe(ctx, topic)

	// Wait for the subscription confirmation before returning, so a caller
	// that publishes right after Subscribe cannot race its own delivery.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("realtime.RedisBus.Subscribe: subscribe %s: %w", topic, err)
	}

	out := make(chan Envelope, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("realtime: dropping undecodable message",
						"topic", topic, "error", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ Bus = (*RedisBus)(nil)
