package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	QueriesBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "queries_built_total",
			Help:      "Total number of search requests built",
		},
		[]string{"kind", "status"}, // status: "ok" / "error"
	)

	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edasearch",
			Name:      "engine_request_duration_seconds",
			Help:      "Search engine round-trip duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	EngineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "engine_errors_total",
			Help:      "Total search engine errors",
		},
		[]string{"kind"},
	)

	DocumentsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "documents_dropped_total",
			Help:      "Hits dropped during normalization",
		},
		[]string{"reason"}, // "not_selected" / "error"
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "result_cache_total",
			Help:      "Search response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ExpansionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "expansion_requests_total",
			Help:      "Query expansion provider requests",
		},
		[]string{"model", "status"},
	)

	ExpansionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edasearch",
			Name:      "expansion_request_duration_seconds",
			Help:      "Query expansion provider latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	ExpansionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "expansion_tokens_total",
			Help:      "Tokens consumed by the query expansion provider",
		},
		[]string{"provider"},
	)

	ExpansionBudgetRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edasearch",
			Name:      "expansion_budget_rejected_total",
			Help:      "Expansion lookups skipped because the token budget is spent",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesBuiltTotal)
	prometheus.MustRegister(EngineRequestDuration)
	prometheus.MustRegister(EngineErrorsTotal)
	prometheus.MustRegister(DocumentsDroppedTotal)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(ExpansionRequestsTotal)
	prometheus.MustRegister(ExpansionRequestDuration)
	prometheus.MustRegister(ExpansionTokensTotal)
	prometheus.MustRegister(ExpansionBudgetRejectedTotal)
	searchMetricsRegistered = true
}
