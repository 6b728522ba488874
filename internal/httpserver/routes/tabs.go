package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/mw"
)

// requestTimeout bounds popup and background requests. The page websocket
// is long lived and is not subject to it.
const requestTimeout = 5 * time.Second

// maxLimiterKeys caps the tab buckets kept between sweeps.
const maxLimiterKeys = 4096

func init() { Register("tabs", Guarded, registerTabs) }

func registerTabs(r chi.Router, d deps.Deps) {
	limit := mw.RateLimitConfig{
		Burst:     d.RateBurst,
		PerMinute: d.RatePerMin,
		MaxKeys:   maxLimiterKeys,
		Key:       mw.TabKey(d.TrustProxy),
	}
	if d.Metrics != nil {
		limit.OnReject = func(string) { d.Metrics.RateLimited("tabs") }
	}

	r.Route("/api/tabs/{tabID}", func(r chi.Router) {
		r.Get("/ws", handlers.Socket(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(limit))
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/messages", handlers.Messages(d))
			r.Post("/navigate", handlers.Navigate(d))
			r.Delete("/", handlers.CloseTab(d))
		})
	})
}
