package domain

// Channel maps archived video IDs to their bookmark buckets for one channel.
// It is the value persisted under the channel name.
type Channel map[string]*VideoBucket

// Bucket returns the bucket for videoID, or nil.
func (c Channel) Bucket(videoID string) *VideoBucket {
	if c == nil {
		return nil
	}
	return c[videoID]
}

// Insert adds ts to the video's bucket, creating the bucket on first use.
// A new bucket takes title; an existing bucket keeps its first-seen title.
// A nil bucket counts as missing.
func (c Channel) Insert(videoID, title string, ts Timestamp) error {
	b := c[videoID]
	if b == nil {
		b = NewVideoBucket(videoID, title)
	}
	if b.StreamTitle == "" {
		b.StreamTitle = title
	}
	if err := b.Insert(ts); err != nil {
		return err
	}
	c[videoID] = b
	return nil
}

// Delete removes the bookmark at offset and drops the bucket once empty.
func (c Channel) Delete(videoID string, offset float64) bool {
	b, ok := c[videoID]
	if !ok {
		return false
	}
	if b == nil {
		delete(c, videoID)
		return false
	}
	removed := b.Delete(offset)
	if b.IsEmpty() {
		delete(c, videoID)
	}
	return removed
}

// DeleteVideo removes the whole bucket. It reports whether one existed.
func (c Channel) DeleteVideo(videoID string) bool {
	b, ok := c[videoID]
	if !ok {
		return false
	}
	delete(c, videoID)
	return b != nil
}

// IsEmpty reports whether the channel holds no bucket.
func (c Channel) IsEmpty() bool {
	return len(c) == 0
}

// Count returns the total number of bookmarks across all buckets.
func (c Channel) Count() int {
	n := 0
	for _, b := range c {
		n += b.Len()
	}
	return n
}

// Clone returns a deep copy. Never nil.
func (c Channel) Clone() Channel {
	out := make(Channel, len(c))
	for id, b := range c {
		out[id] = b.Clone()
	}
	return out
}

// Repair restores the bucket invariants on data written by older clients:
// nil or empty buckets are dropped, keys are aligned with VideoID, and
// every list is re-sorted without invalid or duplicate offsets.
func (c Channel) Repair() bool {
	changed := false
	for id, b := range c {
		if b == nil {
			delete(c, id)
			changed = true
			continue
		}
		if b.VideoID == "" {
			b.VideoID = id
			changed = true
		}
		if b.Repair() {
			changed = true
		}
		if b.IsEmpty() {
			delete(c, id)
			changed = true
		}
	}
	return changed
}
