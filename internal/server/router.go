package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klugworks/klugstore/internal/api"
	"github.com/klugworks/klugstore/internal/api/handlers"
	"github.com/klugworks/klugstore/internal/api/middleware"
)

type RouterConfig struct {
	AdminToken        string
	EntryHandler      *handlers.EntryHandler
	QueryHandler      *handlers.QueryHandler
	ResolutionHandler *handlers.ResolutionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	r.Use(middleware.Capability(cfg.AdminToken))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/entries", func(r chi.Router) {
		r.Post("/", cfg.EntryHandler.Create)
		r.Get("/", cfg.EntryHandler.List)
		r.Delete("/", cfg.EntryHandler.Delete)
		r.Post("/import", cfg.EntryHandler.Import)
		r.Post("/{id}/outdated", cfg.EntryHandler.MarkOutdated)
	})

	r.Post("/query", cfg.QueryHandler.Query)
	r.Post("/resolutions/{id}", cfg.ResolutionHandler.Resolve)

	return r
}
