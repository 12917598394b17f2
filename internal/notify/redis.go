package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	URL    string
	Stream string
	MaxLen int64
}

// streamAdder is the part of the go-redis client the publisher uses.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends events to a Redis stream with XADD.
type RedisPublisher struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisClient parses the URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client streamAdder, cfg RedisConfig) *RedisPublisher {
	stream := cfg.Stream
	if stream == "" {
		stream = "dmphub:changes"
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: cfg.MaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":      event.EventID,
			"action":        string(event.Action),
			"partition_key": event.PartitionKey,
			"payload":       string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
