package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	timestampsInserted prometheus.Counter
	timestampsDupes    prometheus.Counter
	timestampsDeleted  prometheus.Counter
	resolutions        *prometheus.CounterVec
	staleDiscarded     prometheus.Counter
	messages           *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	pageConnections    prometheus.Gauge
	importedTotal      prometheus.Counter
	repairedChannels   prometheus.Counter
	rateLimited        *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		timestampsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_timestamps_inserted_total",
			Help: "Bookmarks saved",
		}),
		timestampsDupes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_timestamps_duplicate_total",
			Help: "Bookmarks rejected because one already exists at the same offset",
		}),
		timestampsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_timestamps_deleted_total",
			Help: "Bookmarks deleted one by one",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vodmark_context_resolutions_total",
			Help: "Stream context resolutions by resulting kind",
		}, []string{"kind"}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_stale_resolutions_total",
			Help: "Resolutions dropped because a newer navigation superseded them",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vodmark_messages_total",
			Help: "Protocol messages handled by type and outcome",
		}, []string{"type", "ok"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vodmark_active_sessions",
			Help: "Tabs with an open session",
		}),
		pageConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vodmark_page_connections",
			Help: "Open page websocket connections",
		}),
		importedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_archive_imported_total",
			Help: "Bookmarks merged from the archive file",
		}),
		repairedChannels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vodmark_channels_repaired_total",
			Help: "Channels rewritten by the maintenance sweep",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vodmark_http_rate_limited_total",
			Help: "Requests refused by the rate limiter by route group",
		}, []string{"group"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.timestampsInserted,
		m.timestampsDupes,
		m.timestampsDeleted,
		m.resolutions,
		m.staleDiscarded,
		m.messages,
		m.activeSessions,
		m.pageConnections,
		m.importedTotal,
		m.repairedChannels,
		m.rateLimited,
	)
	return m
}

func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }
func (m *Metrics) IncErrors()   { m.errorsTotal.Inc() }

func (m *Metrics) TimestampInserted()  { m.timestampsInserted.Inc() }
func (m *Metrics) TimestampDuplicate() { m.timestampsDupes.Inc() }
func (m *Metrics) TimestampDeleted()   { m.timestampsDeleted.Inc() }

// ContextResolved counts a resolution by its context kind.
func (m *Metrics) ContextResolved(kind string) {
	m.resolutions.WithLabelValues(kind).Inc()
}

func (m *Metrics) StaleResolutionDiscarded() { m.staleDiscarded.Inc() }

// MessageHandled counts a protocol message by type and outcome.
func (m *Metrics) MessageHandled(kind string, ok bool) {
	outcome := "false"
	if ok {
		outcome = "true"
	}
	m.messages.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }
func (m *Metrics) PageConnected()          { m.pageConnections.Inc() }
func (m *Metrics) PageDisconnected()       { m.pageConnections.Dec() }
func (m *Metrics) AddImported(n int)       { m.importedTotal.Add(float64(n)) }
func (m *Metrics) ChannelRepaired()        { m.repairedChannels.Inc() }

// RateLimited counts a request refused in the named route group.
func (m *Metrics) RateLimited(group string) { m.rateLimited.WithLabelValues(group).Inc() }

// Registry exposes the registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		inner.ServeHTTP(w, r)
	})
}
