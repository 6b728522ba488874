package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
)

// Metrics serves the Prometheus registry, refreshing session gauges first.
func Metrics(d deps.Deps) http.Handler {
	return d.Metrics.Handler(func() {
		if d.Sessions != nil {
			d.Metrics.SetActiveSessions(d.Sessions.Len())
		}
	})
}
