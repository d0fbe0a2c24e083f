package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AggregationFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filmosphere_aggregation_fetches_total",
		Help: "The total number of film aggregation fetches",
	}, []string{"outcome"})

	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filmosphere_source_failures_total",
		Help: "The total number of secondary source failures during aggregation",
	}, []string{"source"})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "filmosphere_aggregation_duration_seconds",
		Help:    "Duration of cache-miss aggregations across all sources",
		Buckets: prometheus.DefBuckets,
	})

	ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filmosphere_moderation_verdicts_total",
		Help: "The total number of moderation verdicts by status",
	}, []string{"status"})

	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filmosphere_recommendations_total",
		Help: "The total number of recommendation requests by outcome",
	}, []string{"outcome"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filmosphere_llm_request_duration_seconds",
		Help:    "Duration of LLM requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)
