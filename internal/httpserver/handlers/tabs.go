package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
)

const maxBodyBytes = 64 << 10

type navigateRequest struct {
	URL string `json:"url"`
}

func tabID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "tabID"))
	return id, id != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Messages runs one popup request against the tab session. Protocol level
// failures are still answered with 200 and ok=false, only undecodable
// requests get a 400.
func Messages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tabID(r)
		if !ok {
			http.Error(w, "missing tab id", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}

		req, err := protocol.DecodeRequest(body)
		if err != nil {
			d.Logger.Debug("rejected popup message",
				logger.String("tab_id", id),
				logger.Error(err))
			writeJSON(w, http.StatusBadRequest, protocol.Response{OK: false, Error: err.Error()})
			return
		}

		resp := d.Sessions.Session(id).Handle(r.Context(), req)
		writeJSON(w, http.StatusOK, resp)
	}
}

// Navigate records an address change reported by the background script.
func Navigate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tabID(r)
		if !ok {
			http.Error(w, "missing tab id", http.StatusBadRequest)
			return
		}

		var body navigateRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil || strings.TrimSpace(body.URL) == "" {
			http.Error(w, "expected {\"url\": \"...\"}", http.StatusBadRequest)
			return
		}

		d.Sessions.Session(id).Navigate(body.URL)
		w.WriteHeader(http.StatusAccepted)
	}
}

// Socket upgrades to the page websocket of the tab.
func Socket(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tabID(r)
		if !ok {
			http.Error(w, "missing tab id", http.StatusBadRequest)
			return
		}
		d.Bridge.ServeTab(w, r, id)
	}
}

// CloseTab drops the session of a closed tab.
func CloseTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tabID(r)
		if !ok {
			http.Error(w, "missing tab id", http.StatusBadRequest)
			return
		}
		if !d.Sessions.Drop(id) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
