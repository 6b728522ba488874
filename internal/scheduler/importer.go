package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/sources/archive"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

// DefaultFileDebounce coalesces the bursts of events editors emit on save.
const DefaultFileDebounce = 250 * time.Millisecond

// ImportRecorder is implemented by the metrics package.
type ImportRecorder interface {
	AddImported(n int)
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Inserted   int
	Duplicates int
	Rejected   int
}

// Importer merges an archive file into the store. Existing bookmarks are
// never overwritten: entries at an offset already saved are skipped.
type Importer struct {
	job
	loader   *archive.Loader
	svc      *timestamps.Service
	recorder ImportRecorder
	debounce time.Duration

	mu sync.Mutex // one import at a time
}

// NewImporter creates an importer. recorder may be nil.
func NewImporter(
	importFile string,
	svc *timestamps.Service,
	recorder ImportRecorder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Importer {
	im := &Importer{
		loader:   archive.NewLoader(importFile),
		svc:      svc,
		recorder: recorder,
		debounce: DefaultFileDebounce,
	}
	im.job = job{
		name:          "archive import",
		interval:      interval,
		manualTrigger: manualTrigger,
		stopCh:        make(chan struct{}),
		log:           log,
		run: func(ctx context.Context) error {
			_, err := im.Import(ctx)
			return err
		},
	}
	return im
}

// Start imports once, then keeps importing on every tick, manual trigger
// and change of the file on disk.
func (im *Importer) Start(ctx context.Context) error {
	if _, err := im.Import(ctx); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("initial archive import failed: %w", err)
		}
		im.log.Warn("archive file not found, waiting for it",
			logger.String("file", im.loader.Path()))
	}

	changed, err := im.watch(ctx)
	if err != nil {
		return err
	}

	go im.loop(ctx, changed)
	return nil
}

// Stop stops the importer
func (im *Importer) Stop() {
	close(im.stopCh)
}

// watch follows the directory holding the archive file so replacements by
// rename are seen too. The returned channel fires once per debounced burst.
func (im *Importer) watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	target := filepath.Clean(im.loader.Path())
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(im.debounce, func() { Trigger(changed) })
				} else {
					timer.Reset(im.debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				im.log.Warn("archive file watcher error", logger.Error(err))
			case <-im.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return changed, nil
}

// Import loads the archive file and inserts every entry that is not
// already stored. Malformed entries are counted as rejected.
func (im *Importer) Import(ctx context.Context) (ImportResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var res ImportResult

	file, err := im.loader.Load()
	if err != nil {
		return res, err
	}
	records, err := file.Records()
	if err != nil {
		return res, fmt.Errorf("failed to map archive: %w", err)
	}

	for _, r := range records {
		key := timestamps.Key{Channel: r.Channel, VideoID: r.VideoID}
		_, err := im.svc.Insert(ctx, key, r.Title, r.Offset, r.Note)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, domain.ErrDuplicateOffset):
			res.Duplicates++
		case errors.Is(err, domain.ErrInvalidOffset),
			errors.Is(err, domain.ErrNoteTooLong),
			errors.Is(err, domain.ErrInvalidNote):
			res.Rejected++
			im.log.Warn("archive entry rejected",
				logger.String("channel", r.Channel),
				logger.String("video_id", r.VideoID),
				logger.Error(err))
		default:
			return res, fmt.Errorf("failed to import %s/%s: %w", r.Channel, r.VideoID, err)
		}
	}

	if im.recorder != nil && res.Inserted > 0 {
		im.recorder.AddImported(res.Inserted)
	}

	im.log.Info("archive imported",
		logger.String("file", im.loader.Path()),
		logger.Int("inserted", res.Inserted),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("rejected", res.Rejected))

	return res, nil
}
