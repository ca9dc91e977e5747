package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server, for deployments where the
// client state lives alongside other server-side session data. Durability
// is whatever the Redis instance is configured for (AOF recommended).
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client. The caller owns connection
// configuration; Close closes the underlying client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("kvstore: reading %s: %w", key, err)
	}

	return value, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore: writing %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore: deleting %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kvstore: scanning %s*: %w", prefix, err)
	}

	// SCAN order is unspecified; callers rely on lexicographic order.
	sort.Strings(keys)

	return keys, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
