package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/sources/archive"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

// Exporter writes a YAML snapshot of every channel to disk.
type Exporter struct {
	job
	path string
	svc  *timestamps.Service
}

// NewExporter creates an exporter. A send on manualTrigger forces an
// export (see POST /api/export).
func NewExporter(
	exportFile string,
	svc *timestamps.Service,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Exporter {
	ex := &Exporter{path: exportFile, svc: svc}
	ex.job = job{
		name:          "archive export",
		interval:      interval,
		manualTrigger: manualTrigger,
		stopCh:        make(chan struct{}),
		log:           log,
		run: func(ctx context.Context) error {
			_, err := ex.Export(ctx)
			return err
		},
	}
	return ex
}

// Start exports once, then on every tick and manual trigger.
func (ex *Exporter) Start(ctx context.Context) error {
	if _, err := ex.Export(ctx); err != nil {
		return fmt.Errorf("initial archive export failed: %w", err)
	}
	go ex.loop(ctx, nil)
	return nil
}

// Stop stops the exporter
func (ex *Exporter) Stop() {
	close(ex.stopCh)
}

// Export writes the snapshot and returns the number of channels written.
func (ex *Exporter) Export(ctx context.Context) (int, error) {
	channels, err := ex.svc.Channels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read channels: %w", err)
	}

	file := archive.FromChannels(channels)
	if err := archive.WriteFile(ex.path, file); err != nil {
		return 0, err
	}

	ex.log.Info("archive exported",
		logger.String("file", ex.path),
		logger.Int("channels", len(file.Channels)))

	return len(file.Channels), nil
}
