package notification

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Broadcaster fans in-app notifications out to live SSE streams.
type Broadcaster interface {
	Publish(ctx context.Context, userID string, payload []byte) error
	Subscribe(ctx context.Context, userID string) (<-chan string, func(), error)
}

// RedisBroadcaster uses one pub/sub channel per user.
type RedisBroadcaster struct {
	client redis.UniversalClient
}

func NewRedisBroadcaster(client redis.UniversalClient) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func userChannel(userID string) string {
	return "notifications:user:" + userID
}

func (b *RedisBroadcaster) Publish(ctx context.Context, userID string, payload []byte) error {
	return b.client.Publish(ctx, userChannel(userID), payload).Err()
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, userID string) (<-chan string, func(), error) {
	sub := b.client.Subscribe(ctx, userChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}
