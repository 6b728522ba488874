package routes

import (
	"fmt"
	"maps"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/mw"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// Registrar mounts one group of routes.
type Registrar func(r chi.Router, d deps.Deps)

// Access is the access policy a route group sits behind.
type Access int

const (
	// Public groups pick their own restrictions route by route.
	Public Access = iota
	// Guarded groups only answer allowed client addresses and Host headers.
	Guarded
)

type group struct {
	access Access
	reg    Registrar
}

var groups = map[string]group{}

// Register adds a named route group. Registering a name twice panics.
func Register(name string, access Access, reg Registrar) {
	if _, dup := groups[name]; dup {
		panic(fmt.Sprintf("routes: group %q registered twice", name))
	}
	groups[name] = group{access: access, reg: reg}
}

// RegisterAll mounts every group on r in name order.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		g := groups[name]
		sub := r
		if g.access == Guarded {
			sub = r.With(mw.Guard(d.AllowedCIDRS, d.AllowedHosts, d.TrustProxy, d.Logger)...)
		}
		g.reg(sub, d)
		d.Logger.Debug("route group mounted",
			logger.String("group", name),
			logger.Bool("guarded", g.access == Guarded))
	}
}
