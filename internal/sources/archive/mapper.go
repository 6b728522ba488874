package archive

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

// Record is a single flattened bookmark ready to be inserted.
type Record struct {
	Channel string
	VideoID string
	Title   string
	Offset  float64
	Note    string
}

// Records flattens f. Channel names are lowercased. Entries with an
// unparsable offset or an empty video id are reported, not skipped.
func (f File) Records() ([]Record, error) {
	var records []Record

	channels := make([]string, 0, len(f.Channels))
	for name := range f.Channels {
		channels = append(channels, name)
	}
	sort.Strings(channels)

	for _, name := range channels {
		channel := strings.ToLower(strings.TrimSpace(name))
		if channel == "" {
			return nil, fmt.Errorf("archive: empty channel name")
		}
		for _, v := range f.Channels[name] {
			if v.ID == "" {
				return nil, fmt.Errorf("archive: channel %s: video without id", channel)
			}
			for _, e := range v.Timestamps {
				offset, err := domain.ParseOffset(e.At)
				if err != nil {
					return nil, fmt.Errorf("archive: %s/%s: %w", channel, v.ID, err)
				}
				records = append(records, Record{
					Channel: channel,
					VideoID: v.ID,
					Title:   v.Title,
					Offset:  offset,
					Note:    e.Note,
				})
			}
		}
	}
	return records, nil
}

// FromChannels builds a File from the stored channel maps. Videos are
// ordered by id so repeated exports of the same data are identical.
func FromChannels(channels map[string]domain.Channel) File {
	f := File{
		Version:  CurrentVersion,
		Channels: make(map[string][]Video, len(channels)),
	}

	for name, ch := range channels {
		ids := make([]string, 0, len(ch))
		for id, b := range ch {
			if b != nil && !b.IsEmpty() {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)

		videos := make([]Video, 0, len(ids))
		for _, id := range ids {
			b := ch[id]
			entries := make([]Entry, 0, b.Len())
			for _, ts := range b.List() {
				entries = append(entries, Entry{At: formatAt(ts.Offset), Note: ts.Note})
			}
			videos = append(videos, Video{ID: id, Title: b.StreamTitle, Timestamps: entries})
		}
		f.Channels[name] = videos
	}
	return f
}

// formatAt keeps whole seconds readable and fractional ones exact.
func formatAt(offset float64) string {
	if offset == math.Trunc(offset) {
		return domain.FormatOffset(offset)
	}
	return strconv.FormatFloat(offset, 'f', -1, 64)
}
