package player

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
)

// ErrNoPlayer is returned when the page has not reported a usable player.
var ErrNoPlayer = errors.New("no video player on the page")

// State is what the page reports about its video element.
type State struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"` // 0 when unknown (live)
	HasControls bool    `json:"hasControls"`
}

// Player mirrors the page's video element.
type Player struct {
	mu    sync.Mutex
	state State
	known bool
}

func New() *Player {
	return &Player{}
}

// Update stores the latest reported state. Non-finite or negative values are
// treated as unknown.
func (p *Player) Update(s State) {
	if !finite(s.CurrentTime) || s.CurrentTime < 0 {
		s.CurrentTime = 0
	}
	if !finite(s.Duration) || s.Duration < 0 {
		s.Duration = 0
	}

	p.mu.Lock()
	p.state = s
	p.known = true
	p.mu.Unlock()
}

// Reset forgets the reported state, e.g. after navigating away.
func (p *Player) Reset() {
	p.mu.Lock()
	p.state = State{}
	p.known = false
	p.mu.Unlock()
}

// State returns the last reported state and whether any was reported.
func (p *Player) State() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.known
}

// Seek validates a seek target. It reports false, leaving the position
// unchanged, when offset is negative or past a known duration.
func (p *Player) Seek(offset float64) (float64, bool) {
	if !finite(offset) || offset < 0 {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Duration > 0 && offset > p.state.Duration {
		return 0, false
	}
	p.state.CurrentTime = offset
	return offset, true
}

// BookmarkOffset returns the offset a new bookmark gets: elapsed broadcast
// time while live, the player position otherwise.
func (p *Player) BookmarkOffset(sc domain.StreamContext, now time.Time) (float64, error) {
	if sc.IsLive() {
		return LiveOffset(sc.LiveStartedAt, now), nil
	}

	s, ok := p.State()
	if !ok || !s.HasControls {
		return 0, ErrNoPlayer
	}
	return s.CurrentTime, nil
}

// LiveOffset is the elapsed broadcast time in seconds, never negative.
func LiveOffset(startedAt, now time.Time) float64 {
	if startedAt.IsZero() || now.Before(startedAt) {
		return 0
	}
	return now.Sub(startedAt).Seconds()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
