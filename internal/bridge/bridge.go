package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
	"github.com/MrSnakeDoc/vodmark/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSlowPage is returned by Push when the page does not drain its queue.
var ErrSlowPage = errors.New("page send queue is full")

// Metrics tracks open page connections. Implemented by metrics.
type Metrics interface {
	PageConnected()
	PageDisconnected()
}

// Options configures a Bridge.
type Options struct {
	PingInterval time.Duration // default 30s
	WriteTimeout time.Duration // default 10s
	SendBuffer   int           // default 32
	OriginHosts  []string      // page origins allowed besides extension origins
	Metrics      Metrics       // optional
}

// Bridge connects page scripts to their tab session over a websocket.
type Bridge struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
	opts     Options
	log      logger.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func New(sessions *session.Manager, opts Options, log logger.Logger) *Bridge {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}

	hosts := make(map[string]struct{}, len(opts.OriginHosts))
	for _, h := range opts.OriginHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}

	return &Bridge{
		sessions: sessions,
		opts:     opts,
		log:      log,
		conns:    make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), hosts)
			},
		},
	}
}

func originAllowed(origin string, hosts map[string]struct{}) bool {
	if origin == "" {
		return true
	}
	if strings.HasPrefix(origin, "chrome-extension://") || strings.HasPrefix(origin, "moz-extension://") {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	_, ok := hosts[strings.ToLower(u.Hostname())]
	return ok
}

// conn is one page connection. All writes go through the writer goroutine.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan any

	once   sync.Once
	closed chan struct{}
}

func (c *conn) enqueue(v any) error {
	select {
	case <-c.closed:
		return session.ErrNoPage
	default:
	}
	select {
	case c.send <- v:
		return nil
	case <-c.closed:
		return session.ErrNoPage
	default:
		return ErrSlowPage
	}
}

// Push implements session.Pusher.
func (c *conn) Push(msg protocol.Message) error {
	return c.enqueue(msg)
}

func (c *conn) close() {
	c.once.Do(func() { close(c.closed) })
}

// ServeTab upgrades the request and serves the page of tabID until it
// disconnects or ctx is done.
func (b *Bridge) ServeTab(w http.ResponseWriter, r *http.Request, tabID string) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", logger.String("tab_id", tabID), logger.Error(err))
		return
	}

	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan any, b.opts.SendBuffer),
		closed: make(chan struct{}),
	}

	b.track(c, true)
	defer b.track(c, false)

	s := b.sessions.Session(tabID)
	detach := s.Attach(c.id, c)
	if b.opts.Metrics != nil {
		b.opts.Metrics.PageConnected()
	}
	b.log.Info("page connected",
		logger.String("tab_id", tabID),
		logger.String("conn_id", c.id))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.writeLoop(c)
	}()

	b.readLoop(r.Context(), s, c)

	detach()
	c.close()
	wg.Wait()
	_ = ws.Close()

	if b.opts.Metrics != nil {
		b.opts.Metrics.PageDisconnected()
	}
	b.log.Info("page disconnected",
		logger.String("tab_id", tabID),
		logger.String("conn_id", c.id))
}

func (b *Bridge) track(c *conn, add bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if add {
		b.conns[c] = struct{}{}
	} else {
		delete(b.conns, c)
	}
}

// Close disconnects every page. Connections are not tracked by
// http.Server.Shutdown once upgraded.
func (b *Bridge) Close() {
	b.mu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.close()
		_ = c.ws.Close()
	}
}

// Connections returns the number of connected pages.
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Bridge) readLoop(ctx context.Context, s *session.Session, c *conn) {
	pongWait := b.opts.PingInterval * 2
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Warn("page read error", logger.String("conn_id", c.id), logger.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			_ = c.enqueue(protocol.Response{ID: requestID(data), OK: false, Error: err.Error()})
			continue
		}

		resp := s.Handle(ctx, req)
		if err := c.enqueue(resp); err != nil {
			b.log.Warn("dropping response", logger.String("conn_id", c.id), logger.Error(err))
		}
	}
}

func (b *Bridge) writeLoop(c *conn) {
	ticker := time.NewTicker(b.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case v := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(b.opts.WriteTimeout))
			if err := c.ws.WriteJSON(v); err != nil {
				b.log.Debug("page write failed", logger.String("conn_id", c.id), logger.Error(err))
				c.close()
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(b.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.close()
				_ = c.ws.Close()
				return
			}
		case <-c.closed:
			deadline := time.Now().Add(b.opts.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// requestID recovers the id of an undecodable request so the page can
// match the error to it.
func requestID(data []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &probe)
	return probe.ID
}
