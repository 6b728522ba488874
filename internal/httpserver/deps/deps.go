package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/bridge"
	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/metrics"
	"github.com/MrSnakeDoc/vodmark/internal/session"
)

// Pinger checks that the storage backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChannelSource lists every stored channel with its buckets.
type ChannelSource interface {
	Channels(ctx context.Context) (map[string]domain.Channel, error)
}

// UpdateReporter is implemented by stores that track their last write.
type UpdateReporter interface {
	LastUpdate(ctx context.Context) (time.Time, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access the API and probes
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst    int              // per tab and client burst on the tab API
	RatePerMin   int              // per tab and client sustained rate on the tab API

	Sessions      *session.Manager // tab sessions
	Bridge        *bridge.Bridge   // page websocket bridge
	Store         Pinger           // storage backend
	Bookmarks     ChannelSource    // nil hides bookmark totals from /infra
	StoreName     string           // "redis" | "sqlite" | "memory"
	Metrics       *metrics.Metrics // nil disables /metrics
	ExportTrigger chan struct{}    // manual archive export (nil if export disabled)
	ImportTrigger chan struct{}    // manual archive import (nil if import disabled)
	ImportFile    string           // archive import file, empty when disabled
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
