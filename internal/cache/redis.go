package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Redis is a JSON-encoded TTL cache shared between analyzer instances.
// Keys are namespaced by prefix so EvictAll only touches this cache.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. prefix should end with ':'.
func NewRedis[V any](client *redis.Client, prefix string, ttl time.Duration) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis[V]) key(k string) string {
	return r.prefix + k
}

// Get returns the stored value. A miss is (zero, false, nil).
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores value with the cache TTL.
func (r *Redis[V]) Put(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

// Evict deletes key.
func (r *Redis[V]) Evict(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// EvictAll deletes every key under the prefix.
func (r *Redis[V]) EvictAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s*: %w", r.prefix, err)
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}
