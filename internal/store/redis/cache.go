package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheUserID stores a login -> user id lookup
func (s *Store) CacheUserID(ctx context.Context, login, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, UserIDKey(login), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache user id: %w", err)
	}
	return nil
}

// GetCachedUserID retrieves a cached user id. A miss returns "" and no error.
func (s *Store) GetCachedUserID(ctx context.Context, login string) (string, error) {
	id, err := s.client.Get(ctx, UserIDKey(login)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get cached user id: %w", err)
	}
	return id, nil
}

// FlushCache removes all cached lookups
func (s *Store) FlushCache(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixUserID+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
