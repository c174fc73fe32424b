package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps listings in Redis so several CLI processes share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. Entries expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key Key, out any) bool {
	val, err := r.client.Get(ctx, key.String()).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (r *RedisStore) Set(ctx context.Context, key Key, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key.String(), data, r.ttl).Err()
}

func (r *RedisStore) Invalidate(ctx context.Context, key Key) error {
	return r.client.Del(ctx, key.String()).Err()
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
