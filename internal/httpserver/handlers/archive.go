package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// Export triggers a manual archive export
func Export(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.ExportTrigger, "export", "VODMARK_EXPORT_FILE")
}

// Import triggers a manual merge of the archive import file
func Import(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.ImportTrigger, "import", "VODMARK_IMPORT_FILE")
}

// trigger answers 202 when the job accepted the run, 429 while a run is
// already queued and 404 when the job is not configured.
func trigger(d deps.Deps, ch chan struct{}, job, env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ch == nil {
			writeText(w, d, http.StatusNotFound, job+" disabled, set "+env+"\n")
			return
		}

		select {
		case ch <- struct{}{}:
			d.Logger.Info("manual archive "+job+" triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(w, d, http.StatusAccepted, "✅ Archive "+job+" triggered successfully\n")
		default:
			d.Logger.Warn("archive "+job+" already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(w, d, http.StatusTooManyRequests, "⏳ Archive "+job+" already in progress, please wait\n")
		}
	}
}

func writeText(w http.ResponseWriter, d deps.Deps, status int, body string) {
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}
