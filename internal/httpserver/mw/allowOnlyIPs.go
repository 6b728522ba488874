package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/utils"
)

// AllowOnlyCIDRS refuses clients outside the listed addresses and prefixes.
// An empty list lets everything through. trustProxy resolves the client
// from forwarding headers and must only be set behind a trusted proxy.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("client address rejected",
					logger.String("ip", ip),
					logger.String("remote_addr", r.RemoteAddr),
					logger.String("path", r.URL.Path))
				reject(w, http.StatusForbidden, "address not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard bundles the address and Host checks every non-probe route carries.
func Guard(allowedCIDRS, allowedHosts []string, trustProxy bool, log logger.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		AllowOnlyCIDRS(allowedCIDRS, trustProxy, log),
		EnforceHost(allowedHosts, log),
	}
}
