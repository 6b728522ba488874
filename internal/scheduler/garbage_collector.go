package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

const (
	// DefaultSessionIdleTTL is the idle time after which a tab session
	// without a connected page is dropped.
	DefaultSessionIdleTTL = 6 * time.Hour
)

// SessionEvicter is implemented by session.Manager.
type SessionEvicter interface {
	EvictIdle(now time.Time, maxIdle time.Duration) []string
}

// GarbageCollector drops tab sessions that have been idle too long.
type GarbageCollector struct {
	job
	sessions  SessionEvicter
	threshold time.Duration
	now       func() time.Time
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	sessions SessionEvicter,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultSessionIdleTTL
	}

	gc := &GarbageCollector{
		sessions:  sessions,
		threshold: threshold,
		now:       time.Now,
	}
	gc.job = job{
		name:     "session garbage collection",
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      log,
		run: func(context.Context) error {
			gc.Collect()
			return nil
		},
	}
	return gc
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	go gc.loop(ctx, nil)
	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect drops idle sessions and returns their tab ids.
func (gc *GarbageCollector) Collect() []string {
	dropped := gc.sessions.EvictIdle(gc.now(), gc.threshold)
	if len(dropped) > 0 {
		gc.log.Info("garbage collected idle sessions",
			logger.Int("count", len(dropped)),
			logger.Strings("tabs", dropped))
	} else {
		gc.log.Debug("no idle sessions to collect")
	}
	return dropped
}
