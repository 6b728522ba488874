package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNoteLength is the maximum number of runes accepted in a note.
	MaxNoteLength = 500

	// GuardWindow is the distance (seconds) under which "previous" skips
	// the nearest prior bookmark and jumps to the one before it.
	GuardWindow = 3.0
)

var (
	// ErrDuplicateOffset is returned when a bookmark already exists at the exact same offset.
	ErrDuplicateOffset = errors.New("timestamp already saved at this time")

	// ErrInvalidOffset is returned for negative, NaN or infinite offsets.
	ErrInvalidOffset = errors.New("offset must be a finite, non-negative number of seconds")

	// ErrNoteTooLong is returned when a note exceeds MaxNoteLength runes.
	ErrNoteTooLong = fmt.Errorf("note exceeds %d characters", MaxNoteLength)

	// ErrInvalidNote is returned when a note is not valid UTF-8.
	ErrInvalidNote = errors.New("note is not valid UTF-8")
)

// Timestamp is a single bookmark inside an archived video.
type Timestamp struct {
	// Offset is the position in the archived video, in seconds.
	Offset float64 `json:"timestamp"`

	// Note is the free-form text attached by the viewer (may be empty).
	Note string `json:"note"`
}

// ValidateOffset checks that offset can be stored.
func ValidateOffset(offset float64) error {
	if math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidOffset, offset)
	}
	return nil
}

// NormalizeNote trims surrounding whitespace and enforces the length limit.
func NormalizeNote(note string) (string, error) {
	if !utf8.ValidString(note) {
		return "", ErrInvalidNote
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return "", ErrNoteTooLong
	}
	return note, nil
}

// NewTimestamp validates both fields and returns a storable Timestamp.
func NewTimestamp(offset float64, note string) (Timestamp, error) {
	if err := ValidateOffset(offset); err != nil {
		return Timestamp{}, err
	}
	n, err := NormalizeNote(note)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Offset: offset, Note: n}, nil
}
