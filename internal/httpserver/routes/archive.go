package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/handlers"
)

func init() { Register("archive", Guarded, registerArchive) }

func registerArchive(r chi.Router, d deps.Deps) {
	r.Post("/api/export", handlers.Export(d))
	r.Post("/api/import", handlers.Import(d))
}
