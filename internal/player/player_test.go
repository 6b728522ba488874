package player

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

func TestSeek(t *testing.T) {
	tests := []struct {
		name   string
		state  *State
		offset float64
		ok     bool
	}{
		{name: "within duration", state: &State{Duration: 3600}, offset: 120, ok: true},
		{name: "at duration", state: &State{Duration: 3600}, offset: 3600, ok: true},
		{name: "past duration", state: &State{Duration: 3600}, offset: 3601, ok: false},
		{name: "unknown duration", state: &State{}, offset: 99999, ok: true},
		{name: "no state", offset: 10, ok: true},
		{name: "negative", state: &State{Duration: 3600}, offset: -1, ok: false},
		{name: "nan", offset: math.NaN(), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			if tt.state != nil {
				p.Update(*tt.state)
			}
			before, _ := p.State()

			got, ok := p.Seek(tt.offset)
			if ok != tt.ok {
				t.Fatalf("Seek(%v) ok = %v, want %v", tt.offset, ok, tt.ok)
			}
			after, _ := p.State()
			if ok && (got != tt.offset || after.CurrentTime != tt.offset) {
				t.Errorf("Seek(%v) = %v, position %v", tt.offset, got, after.CurrentTime)
			}
			if !ok && after.CurrentTime != before.CurrentTime {
				t.Error("rejected seek moved the position")
			}
		})
	}
}

func TestLiveOffset(t *testing.T) {
	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	if got := LiveOffset(start, start.Add(90*time.Minute)); got != 5400 {
		t.Errorf("LiveOffset() = %v, want 5400", got)
	}
	if got := LiveOffset(start, start.Add(-time.Second)); got != 0 {
		t.Errorf("clock skew: LiveOffset() = %v, want 0", got)
	}
	if got := LiveOffset(time.Time{}, start); got != 0 {
		t.Errorf("zero start: LiveOffset() = %v, want 0", got)
	}
}

func TestBookmarkOffset(t *testing.T) {
	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Minute)

	p := New()
	live := domain.StreamContext{ChannelName: "c", VideoID: "1", LiveStartedAt: start}
	if got, err := p.BookmarkOffset(live, now); err != nil || got != 600 {
		t.Errorf("live BookmarkOffset() = %v, %v; want 600", got, err)
	}

	archived := domain.StreamContext{ChannelName: "c", VideoID: "1"}
	if _, err := p.BookmarkOffset(archived, now); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("no state: error = %v, want ErrNoPlayer", err)
	}

	p.Update(State{CurrentTime: 42.5, Duration: 100, HasControls: true})
	if got, err := p.BookmarkOffset(archived, now); err != nil || got != 42.5 {
		t.Errorf("archived BookmarkOffset() = %v, %v; want 42.5", got, err)
	}

	p.Reset()
	if _, ok := p.State(); ok {
		t.Error("Reset() kept the state")
	}
}

func TestUpdateSanitizes(t *testing.T) {
	p := New()
	p.Update(State{CurrentTime: math.Inf(1), Duration: math.NaN()})
	s, _ := p.State()
	if s.CurrentTime != 0 || s.Duration != 0 {
		t.Errorf("State() = %+v, want zeros", s)
	}
}
