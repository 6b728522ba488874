package protocol

import (
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

// StreamData answers GET_STREAM_DATA. Unknown parts are null.
type StreamData struct {
	VideoID                *string    `json:"videoId"`
	ChannelName            *string    `json:"channelName"`
	LiveBroadcastStartTime *time.Time `json:"liveBroadcastStartTime"`
}

// NewStreamData renders a context for the wire.
func NewStreamData(sc domain.StreamContext) StreamData {
	d := StreamData{
		VideoID:     nullable(sc.VideoID),
		ChannelName: nullable(sc.ChannelName),
	}
	if sc.IsLive() {
		t := sc.LiveStartedAt.UTC()
		d.LiveBroadcastStartTime = &t
	}
	return d
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TimePayload carries an offset in seconds (SEEK_VIDEO, DELETE_TIMESTAMP).
type TimePayload struct {
	Time float64 `json:"time"`
}

type DeleteVideoPayload struct {
	VideoID string `json:"videoId,omitempty"`
}

type AddTimestampPayload struct {
	Note string `json:"note"`
}

type NavigatedPayload struct {
	URL string `json:"url"`
}

type PlayerStatePayload struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	HasControls bool    `json:"hasControls"`
}

// ContextPayload is the context part of CONTEXT_CHANGED.
type ContextPayload struct {
	StreamData
	Generation  uint64 `json:"generation"`
	StreamTitle string `json:"streamTitle,omitempty"`
	Kind        string `json:"kind"`
}

type ContextChangedPayload struct {
	Context     ContextPayload     `json:"context"`
	Timestamps  []domain.Timestamp `json:"timestamps"`
	CanBookmark bool               `json:"canBookmark"`
}

// NewContextChanged builds the CONTEXT_CHANGED payload. ts may be nil.
func NewContextChanged(sc domain.StreamContext, ts []domain.Timestamp) ContextChangedPayload {
	if ts == nil {
		ts = []domain.Timestamp{}
	}
	return ContextChangedPayload{
		Context: ContextPayload{
			StreamData:  NewStreamData(sc),
			Generation:  sc.Generation,
			StreamTitle: sc.StreamTitle,
			Kind:        sc.Kind().String(),
		},
		Timestamps:  ts,
		CanBookmark: sc.CanBookmark(),
	}
}

type NoticePayload struct {
	Message string `json:"message"`
}
