package param

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey — hash, в котором хранятся параметры.
const DefaultRedisKey = "launchpad:parameters"

// Redis читает параметры из hash Redis (поле = имя параметра).
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis создаёт Redis-источник. Пустой key заменяется на DefaultRedisKey.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Resolve читает поле hash.
func (r *Redis) Resolve(ctx context.Context, name string) (string, error) {
	v, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("hget %s: %w", name, err)
	}
	return v, nil
}

// Put сохраняет параметр.
func (r *Redis) Put(ctx context.Context, name, value string) error {
	if err := r.client.HSet(ctx, r.key, name, value).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", name, err)
	}
	return nil
}
