package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"ytconvert/internal/media"
)

const metadataKeyPrefix = "metadata:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache keeps metadata lookups in Redis with an expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis dials Redis and pings it. Callers treat an error as "run
// without a cache".
func ConnectRedis(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis not available at %s: %w", opts.Addr, err)
	}
	return NewRedisCache(client, opts.TTL), nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, url string) (*media.Metadata, error) {
	val, err := c.client.Get(ctx, metadataKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var m media.Metadata
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, m media.Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, metadataKey(url), data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func metadataKey(url string) string {
	return metadataKeyPrefix + url
}
