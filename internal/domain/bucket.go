package domain

import (
	"cmp"
	"slices"
	"sort"
)

// VideoBucket holds the bookmarks of one archived video.
//
// Invariant: Timestamps is sorted by Offset in strictly ascending order,
// which also means offsets are unique. Every mutation goes through the
// methods below so callers never have to maintain the order themselves.
type VideoBucket struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// VideoID is the archived video identifier on the platform.
	VideoID string `json:"videoId"`

	// StreamTitle is the first title seen for this video.
	// It is never overwritten once set.
	StreamTitle string `json:"streamTitle,omitempty"`

	// ─────────────────────────────
	// Bookmarks
	// ─────────────────────────────

	Timestamps []Timestamp `json:"timestamps"`
}

// NewVideoBucket creates an empty bucket.
func NewVideoBucket(videoID, title string) *VideoBucket {
	return &VideoBucket{
		VideoID:     videoID,
		StreamTitle: title,
		Timestamps:  []Timestamp{},
	}
}

func compareOffset(t Timestamp, offset float64) int {
	return cmp.Compare(t.Offset, offset)
}

// Index returns the position where offset is (or would be) stored,
// and whether a bookmark already exists at exactly that offset.
func (b *VideoBucket) Index(offset float64) (int, bool) {
	return slices.BinarySearchFunc(b.Timestamps, offset, compareOffset)
}

// Insert splices ts at its sorted position.
// An identical offset is rejected with ErrDuplicateOffset, never overwritten.
func (b *VideoBucket) Insert(ts Timestamp) error {
	ts, err := NewTimestamp(ts.Offset, ts.Note)
	if err != nil {
		return err
	}

	i, found := b.Index(ts.Offset)
	if found {
		return ErrDuplicateOffset
	}
	b.Timestamps = slices.Insert(b.Timestamps, i, ts)
	return nil
}

// Delete removes the bookmark at offset. It reports whether one was removed.
func (b *VideoBucket) Delete(offset float64) bool {
	i, found := b.Index(offset)
	if !found {
		return false
	}
	b.Timestamps = slices.Delete(b.Timestamps, i, i+1)
	return true
}

// Len returns the number of bookmarks.
func (b *VideoBucket) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Timestamps)
}

// IsEmpty reports whether the bucket holds no bookmark.
func (b *VideoBucket) IsEmpty() bool {
	return b.Len() == 0
}

// List returns a copy of the ordered bookmarks. Never nil.
func (b *VideoBucket) List() []Timestamp {
	if b == nil {
		return []Timestamp{}
	}
	out := make([]Timestamp, len(b.Timestamps))
	copy(out, b.Timestamps)
	return out
}

// Clone returns a deep copy of the bucket.
func (b *VideoBucket) Clone() *VideoBucket {
	if b == nil {
		return nil
	}
	return &VideoBucket{
		VideoID:     b.VideoID,
		StreamTitle: b.StreamTitle,
		Timestamps:  b.List(),
	}
}

// FindNext returns the first bookmark strictly after current.
func (b *VideoBucket) FindNext(current float64) (Timestamp, bool) {
	i := sort.Search(len(b.Timestamps), func(i int) bool {
		return b.Timestamps[i].Offset > current
	})
	if i == len(b.Timestamps) {
		return Timestamp{}, false
	}
	return b.Timestamps[i], true
}

// FindPrevious returns the bookmark to jump back to from current.
//
// When at least two bookmarks precede current and the nearest one is
// closer than guard seconds, the second-nearest is returned instead so
// repeated "previous" presses keep moving backwards. A single prior
// bookmark is always returned regardless of distance.
func (b *VideoBucket) FindPrevious(current, guard float64) (Timestamp, bool) {
	// number of bookmarks strictly before current
	n := sort.Search(len(b.Timestamps), func(i int) bool {
		return b.Timestamps[i].Offset >= current
	})
	switch {
	case n == 0:
		return Timestamp{}, false
	case n >= 2 && current-b.Timestamps[n-1].Offset < guard:
		return b.Timestamps[n-2], true
	default:
		return b.Timestamps[n-1], true
	}
}

// Repair drops invalid offsets, sorts, and removes duplicate offsets
// (keeping the first note seen). It reports whether anything changed.
func (b *VideoBucket) Repair() bool {
	changed := false
	kept := make([]Timestamp, 0, len(b.Timestamps))
	for _, ts := range b.Timestamps {
		if ValidateOffset(ts.Offset) != nil {
			changed = true
			continue
		}
		kept = append(kept, ts)
	}

	if !slices.IsSortedFunc(kept, func(a, c Timestamp) int { return cmp.Compare(a.Offset, c.Offset) }) {
		slices.SortStableFunc(kept, func(a, c Timestamp) int { return cmp.Compare(a.Offset, c.Offset) })
		changed = true
	}

	deduped := slices.CompactFunc(kept, func(a, c Timestamp) bool {
		return a.Offset == c.Offset
	})
	if len(deduped) != len(kept) {
		changed = true
	}

	b.Timestamps = deduped
	return changed
}
