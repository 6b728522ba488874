package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
)

var errNoStore = errors.New("store not initialized")

type componentStatus struct {
	OK         bool       `json:"ok"`
	Mode       string     `json:"mode,omitempty"`
	Count      *int       `json:"count,omitempty"`
	Channels   *int       `json:"channels,omitempty"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Impact     string     `json:"impact,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"store":    checkStore(r, d),
			"sessions": sessionsStatus(d),
			"archive":  archiveStatus(d),
		}
		if d.Bookmarks != nil {
			components["bookmarks"] = bookmarksStatus(r, d)
		}

		response := infraResponse{
			Status:     determineStatus(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Bookmarks cannot be read or written without the store
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}
	for _, name := range []string{"sessions", "bookmarks"} {
		if c, exists := components[name]; exists && !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkStore(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d.Store); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreName,
			Impact: "bookmarks-unavailable",
			Error:  err.Error(),
		}
	}
	status := componentStatus{OK: true, Mode: d.StoreName}
	if rep, ok := d.Store.(deps.UpdateReporter); ok {
		if at, err := rep.LastUpdate(r.Context()); err == nil && !at.IsZero() {
			status.LastUpdate = &at
		}
	}
	return status
}

// bookmarksStatus counts stored channels and their bookmarks.
func bookmarksStatus(r *http.Request, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	channels, err := d.Bookmarks.Channels(ctx)
	if err != nil {
		return componentStatus{OK: false, Impact: "totals-unavailable", Error: err.Error()}
	}
	total := 0
	for _, ch := range channels {
		total += ch.Count()
	}
	n := len(channels)
	return componentStatus{OK: true, Count: &total, Channels: &n}
}

func sessionsStatus(d deps.Deps) componentStatus {
	if d.Sessions == nil {
		return componentStatus{OK: false, Error: "session manager not initialized"}
	}
	n := d.Sessions.Len()
	return componentStatus{OK: true, Count: &n}
}

func archiveStatus(d deps.Deps) componentStatus {
	status := componentStatus{OK: true, Mode: "disabled"}
	switch {
	case d.ImportFile != "" && d.ExportTrigger != nil:
		status.Mode = "import+export"
	case d.ImportFile != "":
		status.Mode = "import"
	case d.ExportTrigger != nil:
		status.Mode = "export"
	}
	return status
}
