package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// DefaultDebounce coalesces navigation bursts (redirect chains, history
// replaces) into one resolution.
const DefaultDebounce = 150 * time.Millisecond

// ResolveFunc computes the context of an address. It must not fail.
type ResolveFunc func(ctx context.Context, url string) domain.StreamContext

// Recorder counts discarded resolutions. Implemented by metrics.
type Recorder interface {
	StaleResolutionDiscarded()
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration // <= 0 uses DefaultDebounce
	Recorder Recorder      // optional
}

// Watcher turns navigation events into stream contexts. Each resolution is
// tagged with a generation; a result whose generation is no longer the
// latest is dropped, and a result equal to the last delivered context is
// not delivered again.
type Watcher struct {
	source   Source
	resolve  ResolveFunc
	listener func(domain.StreamContext)
	debounce time.Duration
	recorder Recorder
	log      logger.Logger

	mu        sync.Mutex
	pending   string
	gen       uint64
	cancelRes context.CancelFunc

	deliverMu sync.Mutex
	last      domain.StreamContext
	delivered bool

	kick        chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a watcher that calls listener with every new context.
// listener runs on a resolution goroutine and must not call back into the
// watcher. The watcher subscribes to source immediately: navigations
// published before Run starts are resolved once it does.
func New(source Source, resolve ResolveFunc, listener func(domain.StreamContext), opts Options, log logger.Logger) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		source:   source,
		resolve:  resolve,
		listener: listener,
		debounce: debounce,
		recorder: opts.Recorder,
		log:      log,
		kick:     make(chan struct{}, 1),
	}
	w.unsubscribe = source.OnNavigationChange(w.notify)
	return w
}

// Run consumes navigation events until ctx is done. In-flight resolutions
// are cancelled and waited for before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.unsubscribe()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer func() {
		timer.Stop()
		w.mu.Lock()
		if w.cancelRes != nil {
			w.cancelRes()
		}
		w.mu.Unlock()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.kick:
			timer.Reset(w.debounce)

		case <-timer.C:
			w.start(ctx)
		}
	}
}

// notify records the latest address; bursts collapse onto it.
func (w *Watcher) notify(url string) {
	w.mu.Lock()
	w.pending = url
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// start launches the resolution of the pending address under a new generation,
// cancelling the previous one.
func (w *Watcher) start(ctx context.Context) {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	url := w.pending
	if w.cancelRes != nil {
		w.cancelRes()
	}
	resCtx, cancel := context.WithCancel(ctx)
	w.cancelRes = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()

		sc := w.resolve(resCtx, url).WithGeneration(gen)
		w.deliver(sc)
	}()
}

func (w *Watcher) deliver(sc domain.StreamContext) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	if sc.Generation != w.Generation() {
		w.log.Debug("discarding stale resolution",
			logger.Uint64("generation", sc.Generation),
			logger.Uint64("latest", w.Generation()))
		if w.recorder != nil {
			w.recorder.StaleResolutionDiscarded()
		}
		return
	}

	if w.delivered && w.last.Equal(sc) {
		return
	}
	w.last = sc
	w.delivered = true
	w.listener(sc)
}

// Generation returns the latest navigation generation.
func (w *Watcher) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

// Current returns the last delivered context, or an empty one.
func (w *Watcher) Current() domain.StreamContext {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	return w.last
}
