package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/result"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
	logpkg "github.com/kailas-cloud/edasearch/internal/logger"
	healthuc "github.com/kailas-cloud/edasearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/edasearch/internal/usecase/search"
)

// CachePurger drops cached search responses.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Server serves the EDA search HTTP API.
type Server struct {
	search *searchuc.Service
	health *healthuc.Service
	cache  CachePurger
	logger *zap.Logger
}

// NewServer creates an HTTP API server. cache can be nil.
func NewServer(
	search *searchuc.Service,
	health *healthuc.Service,
	cache CachePurger,
	logger *zap.Logger,
) *Server {
	return &Server{
		search: search,
		health: health,
		cache:  cache,
		logger: logger,
	}
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	request.PagesParams
	searchuc.SearchContext
	WithStats bool `json:"withStats"`
}

// SearchResponse is the normalized result, with stats when requested.
type SearchResponse struct {
	*result.Results
	Stats *result.Stats `json:"stats,omitempty"`
}

// SimilarRequest is the body of POST /search/similar.
type SimilarRequest struct {
	Pages   []request.PageFragment `json:"pages"`
	Filters settings.Search        `json:"filters"`
	searchuc.SearchContext
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sc := req.SearchContext
	sc.User = userFrom(r)

	if req.WithStats {
		res, stats, err := s.search.SearchWithStats(r.Context(), req.PagesParams, sc)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: res, Stats: stats})
		return
	}

	res, err := s.search.Search(r.Context(), req.PagesParams, sc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: res})
}

// Stats handles POST /api/v1/search/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	var p request.StatsParams
	if !decodeBody(w, r, &p) {
		return
	}
	stats, err := s.search.Stats(r.Context(), p, userFrom(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Similar handles POST /api/v1/search/similar.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sc := req.SearchContext
	sc.User = userFrom(r)

	res, err := s.search.Similar(r.Context(), req.Pages, req.Filters, sc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// QueryPages handles POST /api/v1/query/pages. It returns the built request
// without executing it.
func (s *Server) QueryPages(w http.ResponseWriter, r *http.Request) {
	var p request.PagesParams
	if !decodeBody(w, r, &p) {
		return
	}
	req := s.search.BuildPagesQuery(r.Context(), p, userFrom(r))
	if req == nil {
		s.handleDomainError(w, r, domain.ErrNoQuery)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// QueryStats handles POST /api/v1/query/stats.
func (s *Server) QueryStats(w http.ResponseWriter, r *http.Request) {
	var p request.StatsParams
	if !decodeBody(w, r, &p) {
		return
	}
	req := s.search.BuildStatsQuery(r.Context(), p, userFrom(r))
	if req == nil {
		s.handleDomainError(w, r, domain.ErrNoQuery)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetContract handles GET /api/v1/contracts/{awardId}.
func (s *Server) GetContract(w http.ResponseWriter, r *http.Request) {
	var awardID string
	err := runtime.BindStyledParameterWithOptions("simple", "awardId", chi.URLParam(r, "awardId"), &awardID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter awardId: %s", err))
		return
	}

	var isAward bool
	if err := runtime.BindQueryParameter("form", true, false, "isAward", r.URL.Query(), &isAward); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter isAward: %s", err))
		return
	}

	res, err := s.search.Contract(r.Context(), awardID, isAward, userFrom(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PurgeCache handles DELETE /api/v1/cache.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.cache.Purge(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.logger.Info("response cache purged", zap.Int64("keys", n), logpkg.User(userFrom(r)))
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: report.Status,
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// userFrom returns the caller identity resolved by AuthMiddleware.
func userFrom(r *http.Request) string {
	return logpkg.UserFromContext(r.Context())
}
