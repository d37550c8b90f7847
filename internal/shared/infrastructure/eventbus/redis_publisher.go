package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannelPrefix prefixes every pub/sub channel name.
const DefaultRedisChannelPrefix = "cadence:"

// RedisPublisher publishes messages over Redis pub/sub, one channel per
// routing key. Subscribers connected at publish time receive the message.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisPublisher connects to the Redis server at url and verifies it
// answers.
func NewRedisPublisher(ctx context.Context, url string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisPublisherFromClient(client, logger), nil
}

// NewRedisPublisherFromClient wraps an existing client.
func NewRedisPublisherFromClient(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, prefix: DefaultRedisChannelPrefix, logger: logger}
}

// Channel returns the pub/sub channel used for routingKey.
func (p *RedisPublisher) Channel(routingKey string) string {
	return p.prefix + routingKey
}

// Publish sends payload to the routing key's channel.
func (p *RedisPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	receivers, err := p.client.Publish(ctx, p.Channel(routingKey), payload).Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish message",
			"routing_key", routingKey,
			"error", err,
		)
		return err
	}

	p.logger.DebugContext(ctx, "message published",
		"routing_key", routingKey,
		"receivers", receivers,
		"size", len(payload),
	)
	return nil
}

// Ping checks the server connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
