// Package publisher pushes finished session results to the external result
// cache. The core never reads the cache back; ownership of cached state is
// the cache layer's.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luke0708/stock-analysis/internal/models"
)

// ResultPublisher publishes finished session results.
type ResultPublisher interface {
	Publish(ctx context.Context, result *models.SessionResult) error
}

// RedisPublisher stores session results in Redis KV with a TTL, keyed by
// (security, date, window width, data source).
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisPublisher connects to Redis and returns a publisher.
func NewRedisPublisher(redisURL, redisPassword string, ttl time.Duration, logger *slog.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if redisPassword != "" {
		opt.Password = redisPassword
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisPublisher{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "redis_publisher"),
	}, nil
}

// CacheKey builds the cache key for a session result.
func CacheKey(r *models.SessionResult) string {
	return fmt.Sprintf("flow:%s:%s:%dm:%s", r.Symbol, r.Date, r.WindowMin, r.Source)
}

// Publish stores one session result with TTL.
func (p *RedisPublisher) Publish(ctx context.Context, result *models.SessionResult) error {
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	key := CacheKey(result)
	if err := p.client.Set(ctx, key, jsonBytes, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	p.logger.Info("result_cached",
		"cache_key", key,
		"ttl_sec", p.ttl.Seconds(),
		"size_bytes", len(jsonBytes),
	)
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
