package scheduler

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

type fakeEvicter struct {
	mu      sync.Mutex
	calls   int
	maxIdle time.Duration
	idle    []string
}

func (f *fakeEvicter) EvictIdle(now time.Time, maxIdle time.Duration) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxIdle = maxIdle
	out := f.idle
	f.idle = nil
	return out
}

func (f *fakeEvicter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestGarbageCollector_Collect(t *testing.T) {
	log := logger.New("error", false)
	evicter := &fakeEvicter{idle: []string{"tab-1", "tab-2"}}

	gc := NewGarbageCollector(evicter, log, time.Hour, 0)

	dropped := gc.Collect()
	if !slices.Equal(dropped, []string{"tab-1", "tab-2"}) {
		t.Errorf("Collect() = %v, want [tab-1 tab-2]", dropped)
	}
	if evicter.maxIdle != DefaultSessionIdleTTL {
		t.Errorf("threshold = %v, want default %v", evicter.maxIdle, DefaultSessionIdleTTL)
	}

	if dropped := gc.Collect(); len(dropped) != 0 {
		t.Errorf("second Collect() = %v, want nothing", dropped)
	}
}

func TestGarbageCollector_StartStop(t *testing.T) {
	evicter := &fakeEvicter{}
	gc := NewGarbageCollector(evicter, logger.Nop(), 5*time.Millisecond, time.Minute)

	if err := gc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for evicter.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("collector never ticked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	gc.Stop()
}
