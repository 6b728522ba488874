package domain

import (
	"errors"
	"math"
	"testing"
)

func offsets(ts []Timestamp) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t.Offset
	}
	return out
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newBucket(t *testing.T, values ...float64) *VideoBucket {
	t.Helper()
	b := NewVideoBucket("v1", "title")
	for _, v := range values {
		if err := b.Insert(Timestamp{Offset: v}); err != nil {
			t.Fatalf("Insert(%v) error = %v", v, err)
		}
	}
	return b
}

func TestVideoBucketInsertKeepsOrder(t *testing.T) {
	tests := []struct {
		name  string
		input []float64
		want  []float64
	}{
		{name: "ascending", input: []float64{1, 2, 3}, want: []float64{1, 2, 3}},
		{name: "descending", input: []float64{30, 20, 10}, want: []float64{10, 20, 30}},
		{name: "interleaved", input: []float64{50, 10, 100, 75, 0, 12.5}, want: []float64{0, 10, 12.5, 50, 75, 100}},
		{name: "single", input: []float64{42}, want: []float64{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBucket(t, tt.input...)
			if got := offsets(b.Timestamps); !floatsEqual(got, tt.want) {
				t.Errorf("offsets = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoBucketInsertRejectsDuplicate(t *testing.T) {
	b := newBucket(t, 10, 50, 100)
	b.Timestamps[1].Note = "original"

	err := b.Insert(Timestamp{Offset: 50, Note: "replacement"})
	if !errors.Is(err, ErrDuplicateOffset) {
		t.Fatalf("Insert duplicate error = %v, want ErrDuplicateOffset", err)
	}
	if got := offsets(b.Timestamps); !floatsEqual(got, []float64{10, 50, 100}) {
		t.Errorf("offsets after duplicate = %v", got)
	}
	if b.Timestamps[1].Note != "original" {
		t.Errorf("note was overwritten: %q", b.Timestamps[1].Note)
	}
}

func TestVideoBucketInsertValidation(t *testing.T) {
	tests := []struct {
		name string
		ts   Timestamp
		want error
	}{
		{name: "negative", ts: Timestamp{Offset: -1}, want: ErrInvalidOffset},
		{name: "nan", ts: Timestamp{Offset: math.NaN()}, want: ErrInvalidOffset},
		{name: "inf", ts: Timestamp{Offset: math.Inf(1)}, want: ErrInvalidOffset},
		{name: "too long note", ts: Timestamp{Offset: 1, Note: string(make([]rune, MaxNoteLength+1))}, want: ErrNoteTooLong},
		{name: "invalid utf8", ts: Timestamp{Offset: 1, Note: "\xff\xfe"}, want: ErrInvalidNote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewVideoBucket("v", "")
			if err := b.Insert(tt.ts); !errors.Is(err, tt.want) {
				t.Errorf("Insert() error = %v, want %v", err, tt.want)
			}
			if !b.IsEmpty() {
				t.Error("bucket should stay empty after rejected insert")
			}
		})
	}
}

func TestVideoBucketInsertTrimsNote(t *testing.T) {
	b := NewVideoBucket("v", "")
	if err := b.Insert(Timestamp{Offset: 3, Note: "  clutch play \n"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if b.Timestamps[0].Note != "clutch play" {
		t.Errorf("note = %q, want trimmed", b.Timestamps[0].Note)
	}
}

func TestVideoBucketDelete(t *testing.T) {
	b := newBucket(t, 10, 50, 100)

	if b.Delete(60) {
		t.Error("Delete(60) reported removal of a missing offset")
	}
	if !b.Delete(50) {
		t.Fatal("Delete(50) = false, want true")
	}
	if got := offsets(b.Timestamps); !floatsEqual(got, []float64{10, 100}) {
		t.Errorf("offsets = %v, want [10 100]", got)
	}
}

func TestVideoBucketFindNext(t *testing.T) {
	b := newBucket(t, 10, 50, 100)

	tests := []struct {
		current float64
		want    float64
		found   bool
	}{
		{current: 60, want: 100, found: true},
		{current: 150, found: false},
		{current: 0, want: 10, found: true},
		{current: 50, want: 100, found: true},
	}

	for _, tt := range tests {
		got, ok := b.FindNext(tt.current)
		if ok != tt.found {
			t.Errorf("FindNext(%v) found = %v, want %v", tt.current, ok, tt.found)
			continue
		}
		if ok && got.Offset != tt.want {
			t.Errorf("FindNext(%v) = %v, want %v", tt.current, got.Offset, tt.want)
		}
	}
}

func TestVideoBucketFindPrevious(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		current float64
		want    float64
		found   bool
	}{
		{name: "inside guard skips back", values: []float64{10, 50, 100}, current: 52, want: 10, found: true},
		{name: "far from nearest", values: []float64{10, 50, 100}, current: 200, want: 100, found: true},
		{name: "exactly guard distance", values: []float64{10, 50, 100}, current: 53, want: 50, found: true},
		{name: "single prior inside guard", values: []float64{10, 50, 100}, current: 11, want: 10, found: true},
		{name: "single prior far", values: []float64{10}, current: 500, want: 10, found: true},
		{name: "nothing before", values: []float64{10, 50}, current: 5, found: false},
		{name: "empty", values: nil, current: 5, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBucket(t, tt.values...)
			got, ok := b.FindPrevious(tt.current, GuardWindow)
			if ok != tt.found {
				t.Fatalf("FindPrevious(%v) found = %v, want %v", tt.current, ok, tt.found)
			}
			if ok && got.Offset != tt.want {
				t.Errorf("FindPrevious(%v) = %v, want %v", tt.current, got.Offset, tt.want)
			}
		})
	}
}

func TestVideoBucketListIsCopy(t *testing.T) {
	b := newBucket(t, 1, 2)
	list := b.List()
	list[0].Offset = 99

	if b.Timestamps[0].Offset != 1 {
		t.Error("List() leaked internal slice")
	}

	var nilBucket *VideoBucket
	if got := nilBucket.List(); got == nil || len(got) != 0 {
		t.Errorf("nil bucket List() = %v, want empty non-nil", got)
	}
}

func TestVideoBucketRepair(t *testing.T) {
	b := &VideoBucket{
		VideoID: "v",
		Timestamps: []Timestamp{
			{Offset: 30, Note: "c"},
			{Offset: -4},
			{Offset: 10, Note: "a"},
			{Offset: 30, Note: "dup"},
			{Offset: math.NaN()},
		},
	}

	if !b.Repair() {
		t.Fatal("Repair() = false, want true")
	}
	if got := offsets(b.Timestamps); !floatsEqual(got, []float64{10, 30}) {
		t.Errorf("offsets = %v, want [10 30]", got)
	}
	if b.Timestamps[1].Note != "c" {
		t.Errorf("kept note = %q, want first seen", b.Timestamps[1].Note)
	}
	if b.Repair() {
		t.Error("second Repair() should be a no-op")
	}
}
