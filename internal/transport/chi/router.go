package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/metrics"
)

// NewRouter wires middleware and routes for the server.
func NewRouter(server *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(jsonRecoverer(logger))
	r.Use(AuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})

	r.Get("/health", server.HealthCheck)
	r.Get("/metrics", server.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", server.Search)
		r.Post("/search/stats", server.Stats)
		r.Post("/search/similar", server.Similar)
		r.Post("/query/pages", server.QueryPages)
		r.Post("/query/stats", server.QueryStats)
		r.Get("/contracts/{awardId}", server.GetContract)
		if server.cache != nil {
			r.Delete("/cache", server.PurgeCache)
		}
	})
	return r
}
