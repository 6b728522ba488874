package timestamps

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

var (
	// ErrUnresolved is returned when a mutation targets a context whose
	// channel or archived video is not known (yet).
	ErrUnresolved = errors.New("stream context is not resolved")

	// ErrConflict is returned by a backend when the channel kept changing
	// under a read-modify-write and every retry lost the race.
	ErrConflict = errors.New("channel modified concurrently, giving up")
)

// Backend persists channel stores.
//
// Update must re-read the persisted channel immediately before calling fn,
// and write fn's result back (removing the entry when it is empty). fn may
// be called more than once when the backend retries after a conflict, so it
// must not have side effects outside the channel it receives.
type Backend interface {
	Load(ctx context.Context, channel string) (domain.Channel, error)
	Update(ctx context.Context, channel string, fn func(domain.Channel) error) (domain.Channel, error)
	Remove(ctx context.Context, channel string) error
	ListChannels(ctx context.Context) ([]string, error)
}

// Recorder receives store events. Implemented by the metrics package.
type Recorder interface {
	TimestampInserted()
	TimestampDuplicate()
	TimestampDeleted()
}

// Key addresses one archived video of one channel.
type Key struct {
	Channel string
	VideoID string
}

// KeyOf returns the store key of a resolved stream context.
func KeyOf(c domain.StreamContext) Key {
	return Key{Channel: c.ChannelName, VideoID: c.VideoID}
}

// Resolved reports whether both parts of the key are known.
func (k Key) Resolved() bool {
	return k.Channel != "" && k.VideoID != ""
}

// Service implements the timestamp store operations on top of a Backend.
type Service struct {
	backend  Backend
	recorder Recorder
}

// NewService creates a timestamp service. recorder may be nil.
func NewService(backend Backend, recorder Recorder) *Service {
	return &Service{
		backend:  backend,
		recorder: recorder,
	}
}

// Insert adds a bookmark and returns the video's list after insertion.
// A bookmark at an identical offset is rejected with domain.ErrDuplicateOffset
// and the store is left unchanged.
func (s *Service) Insert(ctx context.Context, key Key, title string, offset float64, note string) ([]domain.Timestamp, error) {
	if !key.Resolved() {
		return nil, ErrUnresolved
	}
	ts, err := domain.NewTimestamp(offset, note)
	if err != nil {
		return nil, err
	}

	ch, err := s.backend.Update(ctx, key.Channel, func(c domain.Channel) error {
		return c.Insert(key.VideoID, title, ts)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOffset) && s.recorder != nil {
			s.recorder.TimestampDuplicate()
		}
		return nil, fmt.Errorf("insert timestamp: %w", err)
	}

	if s.recorder != nil {
		s.recorder.TimestampInserted()
	}
	return ch.Bucket(key.VideoID).List(), nil
}

// Delete removes the bookmark at offset, if present, and returns the
// remaining list. Emptied buckets and channels are removed.
func (s *Service) Delete(ctx context.Context, key Key, offset float64) ([]domain.Timestamp, error) {
	if !key.Resolved() {
		return nil, ErrUnresolved
	}

	removed := false
	ch, err := s.backend.Update(ctx, key.Channel, func(c domain.Channel) error {
		removed = c.Delete(key.VideoID, offset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete timestamp: %w", err)
	}

	if removed && s.recorder != nil {
		s.recorder.TimestampDeleted()
	}
	return ch.Bucket(key.VideoID).List(), nil
}

// DeleteVideo removes the whole bucket of videoID and returns the channel
// store that remains.
func (s *Service) DeleteVideo(ctx context.Context, channel, videoID string) (domain.Channel, error) {
	if channel == "" || videoID == "" {
		return nil, ErrUnresolved
	}

	ch, err := s.backend.Update(ctx, channel, func(c domain.Channel) error {
		c.DeleteVideo(videoID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete video %s: %w", videoID, err)
	}
	return ch, nil
}

// DeleteChannel removes every bookmark of the channel.
func (s *Service) DeleteChannel(ctx context.Context, channel string) error {
	if channel == "" {
		return ErrUnresolved
	}
	if err := s.backend.Remove(ctx, channel); err != nil {
		return fmt.Errorf("delete channel %s: %w", channel, err)
	}
	return nil
}

// List returns the ordered bookmarks of the video. An unresolved key or a
// video without bookmarks yields an empty list.
func (s *Service) List(ctx context.Context, key Key) ([]domain.Timestamp, error) {
	if !key.Resolved() {
		return []domain.Timestamp{}, nil
	}
	ch, err := s.backend.Load(ctx, key.Channel)
	if err != nil {
		return nil, fmt.Errorf("list timestamps: %w", err)
	}
	return ch.Bucket(key.VideoID).List(), nil
}

// Channel returns the channel's video buckets (empty when none).
func (s *Service) Channel(ctx context.Context, channel string) (domain.Channel, error) {
	if channel == "" {
		return domain.Channel{}, nil
	}
	ch, err := s.backend.Load(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", channel, err)
	}
	return ch, nil
}

// Channels returns every stored channel store keyed by channel name.
func (s *Service) Channels(ctx context.Context) (map[string]domain.Channel, error) {
	names, err := s.backend.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	out := make(map[string]domain.Channel, len(names))
	for _, name := range names {
		ch, err := s.backend.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load channel %s: %w", name, err)
		}
		if ch.IsEmpty() {
			continue
		}
		out[name] = ch
	}
	return out, nil
}

// FindNext returns the first bookmark after current.
func (s *Service) FindNext(ctx context.Context, key Key, current float64) (domain.Timestamp, bool, error) {
	b, err := s.bucket(ctx, key)
	if err != nil || b == nil {
		return domain.Timestamp{}, false, err
	}
	ts, ok := b.FindNext(current)
	return ts, ok, nil
}

// FindPrevious returns the bookmark to jump back to from current,
// using domain.GuardWindow.
func (s *Service) FindPrevious(ctx context.Context, key Key, current float64) (domain.Timestamp, bool, error) {
	b, err := s.bucket(ctx, key)
	if err != nil || b == nil {
		return domain.Timestamp{}, false, err
	}
	ts, ok := b.FindPrevious(current, domain.GuardWindow)
	return ts, ok, nil
}

// Repair rewrites a channel whose persisted data breaks the ordering
// invariants. It reports whether the channel was changed.
func (s *Service) Repair(ctx context.Context, channel string) (bool, error) {
	changed := false
	_, err := s.backend.Update(ctx, channel, func(c domain.Channel) error {
		changed = c.Repair()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("repair channel %s: %w", channel, err)
	}
	return changed, nil
}

func (s *Service) bucket(ctx context.Context, key Key) (*domain.VideoBucket, error) {
	if !key.Resolved() {
		return nil, nil
	}
	ch, err := s.backend.Load(ctx, key.Channel)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", key.Channel, err)
	}
	return ch.Bucket(key.VideoID), nil
}
