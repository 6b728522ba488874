package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/player"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
	"github.com/MrSnakeDoc/vodmark/internal/watcher"
)

// Options configures a Manager.
type Options struct {
	Debounce     time.Duration    // navigation debounce, see watcher.DefaultDebounce
	OpTimeout    time.Duration    // budget for store calls made outside a request
	Now          func() time.Time // defaults to time.Now
	Recorder     Recorder         // optional
	StaleCounter watcher.Recorder // optional
}

// Manager owns the sessions of every tab.
type Manager struct {
	svc     *timestamps.Service
	resolve watcher.ResolveFunc
	opts    Options
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. Session watchers stop when ctx is done or Close is called.
func NewManager(ctx context.Context, svc *timestamps.Service, resolve watcher.ResolveFunc, opts Options, log logger.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		svc:      svc,
		resolve:  resolve,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Session returns the tab's session, creating it on first use.
func (m *Manager) Session(tabID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[tabID]; ok {
		return s
	}

	ctx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		tabID:    tabID,
		svc:      m.svc,
		player:   player.New(),
		feed:     watcher.NewFeed(),
		log:      m.log,
		rec:      m.opts.Recorder,
		now:      m.opts.Now,
		opTime:   m.opts.OpTimeout,
		pushers:  make(map[string]Pusher),
		lastSeen: m.opts.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	w := watcher.New(s.feed, m.resolve, s.onContext, watcher.Options{
		Debounce: m.opts.Debounce,
		Recorder: m.opts.StaleCounter,
	}, m.log)

	go func() {
		defer close(s.done)
		if err := w.Run(ctx); err != nil {
			m.log.Error("navigation watcher stopped", logger.String("tab_id", tabID), logger.Error(err))
		}
	}()

	m.sessions[tabID] = s
	m.log.Debug("session opened", logger.String("tab_id", tabID))
	return s
}

// Lookup returns an existing session.
func (m *Manager) Lookup(tabID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tabID]
	return s, ok
}

// Drop closes and forgets a tab's session.
func (m *Manager) Drop(tabID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[tabID]
	delete(m.sessions, tabID)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.log.Debug("session closed", logger.String("tab_id", tabID))
	}
	return ok
}

// EvictIdle drops sessions with no attached page that have been idle for
// longer than maxIdle, and returns their tab ids.
func (m *Manager) EvictIdle(now time.Time, maxIdle time.Duration) []string {
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if !s.Connected() && now.Sub(s.LastSeen()) > maxIdle {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	sort.Strings(idle)
	for _, id := range idle {
		m.Drop(id)
	}
	return idle
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		<-s.done
	}
}

func playerStateOf(p protocol.PlayerStatePayload) player.State {
	return player.State{
		CurrentTime: p.CurrentTime,
		Duration:    p.Duration,
		HasControls: p.HasControls,
	}
}
