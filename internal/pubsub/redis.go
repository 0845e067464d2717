// Package pubsub bridges room broadcasts across processes over Redis.
// Each process publishes its room events and subscribes to the rooms it
// currently holds connections for; presence itself stays process-local.
package pubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "orgchat:"

// RedisBridge implements core.Bridge on Redis pub/sub.
type RedisBridge struct {
	client *redis.Client
	log    *zerolog.Logger
}

// New connects a Redis client and verifies connectivity.
func New(ctx context.Context, addr, password string, db int, logger *zerolog.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info().Str("addr", addr).Msg("redis bridge connected")
	return &RedisBridge{client: client, log: logger}, nil
}

// Close releases the underlying client.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

// Publish sends a payload to the room's Redis channel.
func (b *RedisBridge) Publish(ctx context.Context, room string, payload []byte) error {
	return b.client.Publish(ctx, channelPrefix+room, payload).Err()
}

// Subscribe listens on a room's Redis channel and calls handler for each
// message. Returns a cancel function that stops the subscription.
func (b *RedisBridge) Subscribe(room string, handler func(payload []byte)) (func(), error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	sub := b.client.Subscribe(ctx, channelPrefix+room)
	if _, err := sub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", room, err)
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return cancelCtx, nil
}
