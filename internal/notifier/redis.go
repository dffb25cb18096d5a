package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "avl-events"

// Publisher is the part of a Redis client the notifier uses
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes one JSON message per inserted event
type RedisNotifier struct {
	pub     Publisher
	channel string
	client  *redis.Client
}

// NewRedisNotifier connects to the Redis server at url (redis://host:port/db)
func NewRedisNotifier(ctx context.Context, url, channel string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	n := NewRedisNotifierWithPublisher(client, channel)
	n.client = client
	return n, nil
}

// NewRedisNotifierWithPublisher wraps an existing client
func NewRedisNotifierWithPublisher(pub Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{pub: pub, channel: channel}
}

// Channel returns the channel messages are published on
func (n *RedisNotifier) Channel() string {
	return n.channel
}

// Notify publishes every event; it stops at the first failure
func (n *RedisNotifier) Notify(ctx context.Context, venue *event.Venue, events []*event.Event) error {
	for _, evt := range events {
		payload, err := json.Marshal(NewMessage(venue, evt))
		if err != nil {
			return fmt.Errorf("encoding event %d: %w", evt.ID, err)
		}

		if err := n.pub.Publish(ctx, n.channel, string(payload)).Err(); err != nil {
			return fmt.Errorf("publishing event %d to %s: %w", evt.ID, n.channel, err)
		}
	}
	return nil
}

// Close closes the client opened by NewRedisNotifier
func (n *RedisNotifier) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}
