package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus is the production Bus, backed by Redis Pub/Sub channels
// named after the event subject (e.g. "library.entity.registered").
// Subscribe patterns use Redis's glob syntax, so a caller listening for
// "library.swap.*" receives every swap subject.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to addr (host:port) and verifies the connection
// with a PING, mirroring the teacher's connect-then-ping pattern used
// for its other storage adapters.
func NewRedisBus(ctx context.Context, addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis bus: %w", err)
	}
	return &RedisBus{client: client}, nil
}

// NewRedisBusFromClient wraps an already-constructed client, used by
// tests against miniredis.
func NewRedisBusFromClient(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.client.Publish(ctx, subject, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", pattern, err)
	}

	out := make(chan Message, 64)
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
				select {
				case out <- Message{Subject: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
