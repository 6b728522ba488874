package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/vodmark/internal/utils"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ClientKey keys requests by client address.
func ClientKey(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		return utils.ClientIP(r, trustProxy)
	}
}

// TabKey keys requests by the {tabID} route parameter and the client
// address: every tab of a browser gets its own budget.
func TabKey(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		return chi.URLParam(r, "tabID") + "@" + utils.ClientIP(r, trustProxy)
	}
}

type RateLimitConfig struct {
	Burst     int           // requests a key may send back to back
	PerMinute int           // sustained refill per key
	MaxKeys   int           // idle keys are swept early once reached; 0 is unbounded
	IdleTTL   time.Duration // keys unused for this long are forgotten
	Key       KeyFunc       // defaults to ClientKey(false)

	// OnReject is called with the key of every refused request.
	OnReject func(key string)
	Now      func() time.Time
}

type allowance struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

type limiter struct {
	cfg    RateLimitConfig
	perSec float64
	burst  float64

	mu    sync.Mutex
	keys  map[string]*allowance
	swept time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PerMinute < 1 {
		cfg.PerMinute = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Key == nil {
		cfg.Key = ClientKey(false)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:    cfg,
		perSec: float64(cfg.PerMinute) / 60,
		burst:  float64(cfg.Burst),
		keys:   make(map[string]*allowance),
		swept:  cfg.Now(),
	}
}

// take spends one token of key. When none is left it returns the wait
// until the next one.
func (l *limiter) take(key string, now time.Time) (remaining int, wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.cfg.IdleTTL || (l.cfg.MaxKeys > 0 && len(l.keys) >= l.cfg.MaxKeys) {
		l.sweep(now)
	}

	a := l.keys[key]
	if a == nil {
		a = &allowance{tokens: l.burst, refilled: now}
		l.keys[key] = a
	}
	a.seen = now
	if elapsed := now.Sub(a.refilled); elapsed > 0 {
		a.tokens = math.Min(l.burst, a.tokens+elapsed.Seconds()*l.perSec)
		a.refilled = now
	}

	if a.tokens < 1 {
		secs := (1 - a.tokens) / l.perSec
		return 0, time.Duration(secs * float64(time.Second)), false
	}
	a.tokens--
	return int(a.tokens), 0, true
}

func (l *limiter) sweep(now time.Time) {
	for key, a := range l.keys {
		if now.Sub(a.seen) > l.cfg.IdleTTL {
			delete(l.keys, key)
		}
	}
	l.swept = now
}

// RateLimit refuses requests with 429 once their key has spent its burst.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.cfg.Key(r)
			remaining, wait, ok := l.take(key, l.cfg.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				if l.cfg.OnReject != nil {
					l.cfg.OnReject(key)
				}
				retry := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				reject(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
