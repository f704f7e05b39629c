package jobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis connection. All entries are
// written with DefaultTTL so abandoned jobs cannot leak keys.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStore{rdb: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, key, value, DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern scans for matching keys and deletes them in batches.
// SCAN is used instead of KEYS so the sweep does not block Redis.
func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("failed to delete batch: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("failed to delete batch: %w", err)
	}

	return deleted, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
