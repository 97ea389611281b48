package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of queries handled by the assistant",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_query_duration_seconds",
			Help:    "End-to-end duration of query handling in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"kind"},
	)

	ConnectorFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_connector_fetch_total",
			Help: "Total number of data source fetches",
		},
		[]string{"source", "status"},
	)

	ConnectorFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_connector_fetch_duration_seconds",
			Help:    "Duration of data source fetches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cache_requests_total",
			Help: "Fetch cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveConnectorFetch records one fetch against a data source.
func ObserveConnectorFetch(source string, ok bool, d time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	ConnectorFetches.WithLabelValues(source, status).Inc()
	ConnectorFetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveQuery records one handled query.
func ObserveQuery(ok bool, d time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	QueriesTotal.WithLabelValues(status).Inc()
	QueryDuration.Observe(d.Seconds())
}

// ObserveTokens records token usage for an LLM call category.
func ObserveTokens(kind string, tokens int64) {
	if tokens > 0 {
		LLMTokens.WithLabelValues(kind).Add(float64(tokens))
	}
}
