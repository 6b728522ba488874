package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

// RepairRecorder is implemented by the metrics package.
type RepairRecorder interface {
	ChannelRepaired()
}

// ChannelLister lists stored channel names.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]string, error)
}

// Reindexer is implemented by stores whose channel index can drift from
// the stored documents.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// Sweeper repairs persisted channels: empty buckets go away, invalid
// offsets are dropped and lists are re-sorted.
type Sweeper struct {
	job
	svc      *timestamps.Service
	lister   ChannelLister
	recorder RepairRecorder
}

// NewSweeper creates a sweeper. recorder may be nil.
func NewSweeper(
	svc *timestamps.Service,
	lister ChannelLister,
	recorder RepairRecorder,
	log logger.Logger,
	interval time.Duration,
) *Sweeper {
	sw := &Sweeper{svc: svc, lister: lister, recorder: recorder}
	sw.job = job{
		name:     "store sweep",
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      log,
		run: func(ctx context.Context) error {
			_, err := sw.Sweep(ctx)
			return err
		},
	}
	return sw
}

// Start sweeps once, then periodically.
func (sw *Sweeper) Start(ctx context.Context) error {
	if _, err := sw.Sweep(ctx); err != nil {
		sw.log.Warn("initial store sweep failed", logger.Error(err))
	}
	go sw.loop(ctx, nil)
	return nil
}

// Stop stops the sweeper
func (sw *Sweeper) Stop() {
	close(sw.stopCh)
}

// Sweep repairs every channel and returns how many were rewritten.
// One failing channel does not stop the sweep.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	if ri, ok := sw.lister.(Reindexer); ok {
		if added, err := ri.Reindex(ctx); err != nil {
			sw.log.Warn("channel reindex failed", logger.Error(err))
		} else if added > 0 {
			sw.log.Info("unindexed channels recovered", logger.Int("channels", added))
		}
	}

	names, err := sw.lister.ListChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list channels: %w", err)
	}

	repaired := 0
	var firstErr error
	for _, name := range names {
		changed, err := sw.svc.Repair(ctx, name)
		if err != nil {
			sw.log.Warn("channel repair failed",
				logger.String("channel", name),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !changed {
			continue
		}
		repaired++
		if sw.recorder != nil {
			sw.recorder.ChannelRepaired()
		}
		sw.log.Info("channel repaired", logger.String("channel", name))
	}

	if repaired > 0 {
		sw.log.Info("store sweep completed",
			logger.Int("channels", len(names)),
			logger.Int("repaired", repaired))
	} else {
		sw.log.Debug("store sweep found nothing to repair")
	}

	return repaired, firstErr
}
