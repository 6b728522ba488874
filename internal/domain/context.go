package domain

import (
	"errors"
	"time"
)

// ErrNotBookmarkable is returned when the current context has no archived
// video to attach a bookmark to (home page, or live without an archive yet).
var ErrNotBookmarkable = errors.New("no archived video available for this stream yet")

// Kind classifies what a tab is currently showing.
type Kind int

const (
	// KindNone covers the home page, unknown pages and failed resolutions.
	KindNone Kind = iota
	// KindArchived is an on-demand replay of a past broadcast.
	KindArchived
	// KindLive is a live broadcast whose archive already exists.
	KindLive
	// KindLivePending is a live broadcast whose archive is not published yet.
	KindLivePending
)

func (k Kind) String() string {
	switch k {
	case KindArchived:
		return "archived"
	case KindLive:
		return "live"
	case KindLivePending:
		return "live_pending"
	default:
		return "none"
	}
}

// StreamContext is the immutable result of one resolution.
// Empty strings and a zero LiveStartedAt stand for "unknown".
type StreamContext struct {
	// Generation is the navigation generation this context was resolved for.
	Generation uint64

	ChannelName   string
	VideoID       string
	StreamTitle   string
	LiveStartedAt time.Time
}

// IsLive reports whether a live broadcast is in progress.
func (c StreamContext) IsLive() bool {
	return !c.LiveStartedAt.IsZero()
}

// Kind classifies the context.
func (c StreamContext) Kind() Kind {
	switch {
	case c.IsLive() && c.VideoID == "":
		return KindLivePending
	case c.IsLive():
		return KindLive
	case c.VideoID != "":
		return KindArchived
	default:
		return KindNone
	}
}

// CanBookmark reports whether the context can be used as a store key.
func (c StreamContext) CanBookmark() bool {
	return c.ChannelName != "" && c.VideoID != ""
}

// Equal compares two contexts, ignoring the generation tag.
func (c StreamContext) Equal(o StreamContext) bool {
	return c.ChannelName == o.ChannelName &&
		c.VideoID == o.VideoID &&
		c.StreamTitle == o.StreamTitle &&
		c.LiveStartedAt.Equal(o.LiveStartedAt)
}

// WithGeneration returns a copy tagged with gen.
func (c StreamContext) WithGeneration(gen uint64) StreamContext {
	c.Generation = gen
	return c
}
