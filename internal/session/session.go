package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/player"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
	"github.com/MrSnakeDoc/vodmark/internal/watcher"
)

// DuplicateNotice is shown to the user when a bookmark already exists at
// the same offset.
const DuplicateNotice = "Timestamp already saved at this time"

// ErrNoPage is returned by a Pusher whose page went away.
var ErrNoPage = errors.New("page is not connected")

// Pusher delivers service -> page messages. Implemented by the websocket bridge.
type Pusher interface {
	Push(msg protocol.Message) error
}

// Recorder counts handled messages. Implemented by metrics.
type Recorder interface {
	MessageHandled(kind string, ok bool)
}

// Session is the state of one browser tab. Handlers run one at a time.
type Session struct {
	tabID  string
	svc    *timestamps.Service
	player *player.Player
	feed   *watcher.Feed
	log    logger.Logger
	rec    Recorder
	now    func() time.Time
	opTime time.Duration

	mu sync.Mutex // serializes Handle

	ctxMu   sync.RWMutex
	current domain.StreamContext

	pushMu  sync.Mutex
	pushers map[string]Pusher

	seenMu   sync.Mutex
	lastSeen time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// TabID returns the browser tab this session belongs to.
func (s *Session) TabID() string { return s.tabID }

// Context returns the current stream context. While a resolution is in
// flight this is the previous context.
func (s *Session) Context() domain.StreamContext {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.current
}

// Player exposes the mirrored page player.
func (s *Session) Player() *player.Player { return s.player }

// Navigate reports that the tab now shows url.
func (s *Session) Navigate(url string) {
	s.touch()
	s.feed.Publish(url)
}

// Attach registers a page connection for pushes. The returned func detaches it.
func (s *Session) Attach(id string, p Pusher) func() {
	s.touch()
	s.pushMu.Lock()
	s.pushers[id] = p
	s.pushMu.Unlock()

	// bring a freshly connected page up to date
	go s.publishContext(s.Context())

	return func() {
		s.pushMu.Lock()
		delete(s.pushers, id)
		s.pushMu.Unlock()
	}
}

// Connected reports whether at least one page connection is attached.
func (s *Session) Connected() bool {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	return len(s.pushers) > 0
}

// LastSeen is the time of the last request, navigation or attach.
func (s *Session) LastSeen() time.Time {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.seenMu.Lock()
	s.lastSeen = s.now()
	s.seenMu.Unlock()
}

func (s *Session) push(msg protocol.Message) {
	s.pushMu.Lock()
	targets := make(map[string]Pusher, len(s.pushers))
	for id, p := range s.pushers {
		targets[id] = p
	}
	s.pushMu.Unlock()

	if len(targets) == 0 {
		s.log.Debug("no page connected, dropping push",
			logger.String("tab_id", s.tabID),
			logger.String("type", string(msg.Type)))
		return
	}

	for id, p := range targets {
		if err := p.Push(msg); err != nil {
			s.log.Warn("push to page failed",
				logger.String("tab_id", s.tabID),
				logger.String("conn_id", id),
				logger.String("type", string(msg.Type)),
				logger.Error(err))
		}
	}
}

func (s *Session) notice(message string) {
	s.push(protocol.Message{Type: protocol.Notice, Payload: protocol.NoticePayload{Message: message}})
}

// onContext is the watcher listener.
func (s *Session) onContext(sc domain.StreamContext) {
	s.ctxMu.Lock()
	if !sc.Equal(s.current) {
		s.player.Reset()
	}
	s.current = sc
	s.ctxMu.Unlock()

	s.log.Debug("stream context changed",
		logger.String("tab_id", s.tabID),
		logger.Uint64("generation", sc.Generation),
		logger.String("kind", sc.Kind().String()),
		logger.String("channel", sc.ChannelName),
		logger.String("video_id", sc.VideoID))

	s.publishContext(sc)
}

// publishContext pushes the context with its bookmark list.
func (s *Session) publishContext(sc domain.StreamContext) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTime)
	defer cancel()

	list, err := s.svc.List(ctx, timestamps.KeyOf(sc))
	if err != nil {
		s.log.Warn("failed to list timestamps for context",
			logger.String("tab_id", s.tabID),
			logger.Error(err))
		list = nil
	}
	s.push(protocol.Message{Type: protocol.ContextChanged, Payload: protocol.NewContextChanged(sc, list)})
}

// Close stops the session's watcher and waits for it.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}
