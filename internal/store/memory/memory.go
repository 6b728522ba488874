package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

// Store keeps channel stores in process memory.
// Used when no durable backend is configured, and in tests.
type Store struct {
	mu         sync.RWMutex
	channels   map[string]domain.Channel // channel name -> buckets
	lastUpdate time.Time                 // Timestamp of last mutation
}

// NewStore creates an empty memory store
func NewStore() *Store {
	return &Store{
		channels: make(map[string]domain.Channel),
	}
}

// Load returns a copy of the channel (empty when unknown)
func (s *Store) Load(_ context.Context, channel string) (domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.channels[channel].Clone(), nil
}

// Update applies fn to the current channel under the write lock
func (s *Store) Update(_ context.Context, channel string, fn func(domain.Channel) error) (domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.channels[channel].Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	if working.IsEmpty() {
		delete(s.channels, channel)
	} else {
		s.channels[channel] = working
	}
	s.lastUpdate = time.Now()

	return working.Clone(), nil
}

// Remove deletes the channel entry
func (s *Store) Remove(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.channels, channel)
	s.lastUpdate = time.Now()
	return nil
}

// ListChannels returns the stored channel names, sorted
func (s *Store) ListChannels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Ping always succeeds
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// LastUpdate returns the time of the last mutation, zero before any
func (s *Store) LastUpdate(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastUpdate, nil
}

// Put replaces a channel wholesale. Intended for seeding tests.
func (s *Store) Put(channel string, c domain.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel] = c.Clone()
}
