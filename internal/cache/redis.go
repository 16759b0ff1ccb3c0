package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wibonela/boma/config"
)

// RedisCache holds short-lived booking holds. A hold is taken per property
// before the availability transaction runs; it keeps concurrent guests from
// hammering the same property row, while the database transaction remains
// the source of truth for availability.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

// NewRedisCacheWithClient wires an existing client, used by tests.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) AcquireBookingHold(ctx context.Context, propertyID uuid.UUID, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, holdKey(propertyID), "held", ttl).Result()
}

func (c *RedisCache) ReleaseBookingHold(ctx context.Context, propertyID uuid.UUID) error {
	return c.client.Del(ctx, holdKey(propertyID)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func holdKey(propertyID uuid.UUID) string {
	return fmt.Sprintf("hold:property:%s", propertyID)
}
