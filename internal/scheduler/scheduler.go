package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// job is one periodic task.
type job struct {
	name          string
	interval      time.Duration
	manualTrigger <-chan struct{}
	stopCh        chan struct{}
	run           func(ctx context.Context) error
	log           logger.Logger
}

// loop runs j.run on every tick and manual trigger until ctx is done or
// stopCh is closed. Failures are logged, never fatal.
func (j *job) loop(ctx context.Context, extra <-chan struct{}) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.runOnce(ctx)
		case <-j.manualTrigger:
			j.log.Info("manual " + j.name + " triggered")
			j.runOnce(ctx)
		case <-extra:
			j.runOnce(ctx)
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *job) runOnce(ctx context.Context) {
	if err := j.run(ctx); err != nil {
		j.log.Error(j.name+" failed", logger.Error(err))
	}
}

// Trigger requests a run without blocking. Returns false when a run is
// already pending.
func Trigger(ch chan<- struct{}) bool {
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}
