// internal/ipintel/cache.go
package ipintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "threatscope:ipintel:"

// RedisCache memoizes another provider's answers in Redis. Cache errors
// degrade to a direct lookup.
type RedisCache struct {
	client *redis.Client
	inner  Provider
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps inner with a Redis-backed cache.
func NewRedisCache(client *redis.Client, inner Provider, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, inner: inner, ttl: ttl, logger: logger}
}

// DialRedis parses a redis:// URL and verifies the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Lookup(ctx context.Context, ip string) Info {
	key := keyPrefix + ip

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var info Info
		if err := json.Unmarshal(raw, &info); err == nil {
			return info
		}
		c.logger.Debug("discarding corrupt intel cache entry", zap.String("ip", ip))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Debug("intel cache read failed", zap.String("ip", ip), zap.Error(err))
		return c.inner.Lookup(ctx, ip)
	}

	info := c.inner.Lookup(ctx, ip)
	if data, err := json.Marshal(info); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("intel cache write failed", zap.String("ip", ip), zap.Error(err))
		}
	}
	return info
}
