package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when decoding a message type outside the protocol.
	ErrUnknownKind = errors.New("unknown message type")
	// ErrWrongDirection is returned when a service-only message is received.
	ErrWrongDirection = errors.New("message type cannot be sent to the service")
	// ErrBadPayload is returned when a payload is missing or malformed.
	ErrBadPayload = errors.New("invalid message payload")
)

// Kind is a message type. The set is closed.
type Kind string

const (
	GetStreamData    Kind = "GET_STREAM_DATA"
	OpenNoteField    Kind = "OPEN_NOTE_FIELD"
	SeekVideo        Kind = "SEEK_VIDEO"
	DeleteTimestamp  Kind = "DELETE_TIMESTAMP"
	DeleteVideo      Kind = "DELETE_VIDEO"
	ClearChannelInfo Kind = "CLEAR_CHANNEL_INFO"

	AddTimestamp   Kind = "ADD_TIMESTAMP"
	ListTimestamps Kind = "LIST_TIMESTAMPS"
	ListChannel    Kind = "LIST_CHANNEL"
	SeekNext       Kind = "SEEK_NEXT"
	SeekPrevious   Kind = "SEEK_PREVIOUS"
	Navigated      Kind = "NAVIGATED"
	PlayerState    Kind = "PLAYER_STATE"

	ContextChanged Kind = "CONTEXT_CHANGED"
	Notice         Kind = "NOTICE"
)

type direction uint8

const (
	inbound  direction = 1 << iota // popup or page -> service
	outbound                       // service -> page
)

var kinds = map[Kind]direction{
	GetStreamData:    inbound,
	OpenNoteField:    inbound | outbound,
	SeekVideo:        inbound | outbound,
	DeleteTimestamp:  inbound,
	DeleteVideo:      inbound,
	ClearChannelInfo: inbound,
	AddTimestamp:     inbound,
	ListTimestamps:   inbound,
	ListChannel:      inbound,
	SeekNext:         inbound,
	SeekPrevious:     inbound,
	Navigated:        inbound,
	PlayerState:      inbound,
	ContextChanged:   outbound,
	Notice:           outbound,
}

// Valid reports whether k belongs to the protocol.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Inbound reports whether k may be sent to the service.
func (k Kind) Inbound() bool {
	return kinds[k]&inbound != 0
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownKind, data)
	}
	kind := Kind(s)
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	*k = kind
	return nil
}

// Kinds returns every protocol message type.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	return out
}
