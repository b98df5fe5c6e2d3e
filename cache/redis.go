package cache

import (
	"context"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisCache implements CodeCache on a shared redis connection.
type RedisCache struct {
	client *redis.Client
}

// NewRedisClient connects to redis using REDIS_ADDR and REDIS_PASSWORD and
// verifies the connection with a ping.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}
	return client, nil
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) SetCode(ctx context.Context, key, code string, ttl time.Duration) error {
	return c.client.Set(ctx, key, code, ttl).Err()
}

func (c *RedisCache) GetCode(ctx context.Context, key string) (string, error) {
	code, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

func (c *RedisCache) DeleteCode(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Denylist(ctx context.Context, tokenId string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired, nothing to revoke.
		return nil
	}
	return c.client.Set(ctx, denylistKey(tokenId), "1", ttl).Err()
}

func (c *RedisCache) IsDenylisted(ctx context.Context, tokenId string) (bool, error) {
	n, err := c.client.Exists(ctx, denylistKey(tokenId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
