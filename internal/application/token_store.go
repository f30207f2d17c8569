package application

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore holds short-lived opaque-token state: two-factor challenges,
// password-reset tokens and one-shot checkout flags.
type TokenStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
}

// RedisTokenStore is the production TokenStore.
type RedisTokenStore struct {
	RDB *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{RDB: rdb}
}

func (s *RedisTokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.RDB.Set(ctx, key, value, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisTokenStore) Del(ctx context.Context, key string) error {
	return s.RDB.Del(ctx, key).Err()
}
