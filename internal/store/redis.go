package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"studio/internal/domain"
)

// Redis implements Store on top of a Redis instance, keyed
// "studio:<user>:<key>". Records have no TTL; lifecycle is managed by the
// managers above the store.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed store.
func NewRedis(addr, password string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewRedisFromClient wraps an existing client, used in tests.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, userID, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, redisKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get %s/%s: %w", userID, key, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, userID, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(userID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s/%s: %w", userID, key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, userID, key string) error {
	if err := r.client.Del(ctx, redisKey(userID, key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("store: redis del %s/%s: %w", userID, key, err)
	}
	return nil
}

func redisKey(userID, key string) string {
	return "studio:" + userID + ":" + key
}

var _ Store = (*Redis)(nil)
