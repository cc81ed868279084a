package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	webhookKeyPrefix = "itc:webhook:"
	webhookCacheTTL  = 72 * time.Hour
)

// RedisWebhookEventCache remembers processed webhook event ids for a short time.
// The processor_webhook_events table stays authoritative; the cache only skips
// the database round trip for redeliveries.
type RedisWebhookEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWebhookEventCache creates a cache on an existing client
func NewRedisWebhookEventCache(client *redis.Client) *RedisWebhookEventCache {
	return &RedisWebhookEventCache{client: client, ttl: webhookCacheTTL}
}

// ConnectRedis parses a redis:// URL and verifies the server responds
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return client, nil
}

// IsProcessed reports whether the event id was marked within the TTL
func (c *RedisWebhookEventCache) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.client.Exists(ctx, webhookKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event %s in cache: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkProcessed records the event id
func (c *RedisWebhookEventCache) MarkProcessed(ctx context.Context, eventID string) error {
	if err := c.client.Set(ctx, webhookKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark webhook event %s in cache: %w", eventID, err)
	}
	return nil
}
