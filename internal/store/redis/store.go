package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxRetries bounds optimistic transaction retries in Update
const DefaultMaxRetries = 8

// Store persists channel stores in Redis, one JSON document per channel
type Store struct {
	client     *redis.Client
	maxRetries int
}

// NewStore creates a new Redis store. maxRetries <= 0 uses DefaultMaxRetries.
func NewStore(client *redis.Client, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Store{
		client:     client,
		maxRetries: maxRetries,
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readChannel(ctx context.Context, g getter, key string) (domain.Channel, error) {
	data, err := g.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Channel{}, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	ch := domain.Channel{}
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}
	return ch, nil
}

// Load retrieves a channel (empty when unknown)
func (s *Store) Load(ctx context.Context, channel string) (domain.Channel, error) {
	return readChannel(ctx, s.client, ChannelKey(channel))
}

// Update runs fn inside a WATCH/MULTI transaction on the channel key.
// The channel is re-read on every attempt; after maxRetries lost races
// it returns timestamps.ErrConflict.
func (s *Store) Update(ctx context.Context, channel string, fn func(domain.Channel) error) (domain.Channel, error) {
	key := ChannelKey(channel)
	var result domain.Channel

	txf := func(tx *redis.Tx) error {
		current, err := readChannel(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}

		var data []byte
		if !current.IsEmpty() {
			if data, err = json.Marshal(current); err != nil {
				return fmt.Errorf("failed to marshal channel: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if data == nil {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, AllChannelsKey(), channel)
				return nil
			}
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, AllChannelsKey(), channel)
			return nil
		})
		if err != nil {
			return err
		}

		result = current
		return nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", timestamps.ErrConflict, channel, s.maxRetries)
}

// Remove deletes a channel and drops it from the channel set
func (s *Store) Remove(ctx context.Context, channel string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, ChannelKey(channel))
	pipe.SRem(ctx, AllChannelsKey(), channel)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove channel: %w", err)
	}
	return nil
}

// ListChannels returns all channel names, sorted
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, AllChannelsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Reindex adds channel documents missing from the channel set, as left by
// a partial restore. It returns how many names were added.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	var names []any
	iter := s.client.Scan(ctx, 0, KeyPrefixChannel+"*", 0).Iterator()
	for iter.Next(ctx) {
		name, err := ExtractChannel(iter.Val())
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan channel keys: %w", err)
	}
	if len(names) == 0 {
		return 0, nil
	}

	added, err := s.client.SAdd(ctx, AllChannelsKey(), names...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to index channels: %w", err)
	}
	return int(added), nil
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
