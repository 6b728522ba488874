package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/mw"
)

func init() { Register("probes", Public, registerProbes) }

// registerProbes keeps /healthz open to every client. The other probes
// check the client address; /infra also checks the Host header.
func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/readyz", handlers.Readyz(d))
	restricted.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/infra", handlers.Infra(d))
	if d.Metrics != nil {
		restricted.Method(http.MethodGet, "/metrics", handlers.Metrics(d))
	}
}
