// Package metrics provides the centralized Prometheus metrics registry for the service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keiba_insight",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	AggregationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keiba_insight",
		Name:      "aggregations_total",
		Help:      "Total number of aggregation requests by kind and outcome",
	}, []string{"kind", "outcome"})
	ScrapeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keiba_insight",
		Name:      "scrape_requests_total",
		Help:      "Total number of upstream page requests by page and outcome",
	}, []string{"page", "outcome"})
	RaceCardsSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keiba_insight",
		Name:      "race_cards_saved_total",
		Help:      "Total number of race card files written",
	})
)

// Gauge metrics
var (
	DatasetRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keiba_insight",
		Name:      "dataset_records",
		Help:      "Number of past race records held in memory",
	})
	OddsCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keiba_insight",
		Name:      "odds_cache_hit_ratio",
		Help:      "Hit ratio of the live odds cache",
	})
)

// Histogram metrics
var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keiba_insight",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	AggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keiba_insight",
		Name:      "aggregation_duration_seconds",
		Help:      "Duration of aggregation requests in seconds",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"kind"})
	DatasetLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keiba_insight",
		Name:      "dataset_load_duration_seconds",
		Help:      "Duration of past race data loads in seconds",
		Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(HTTPRequestsTotal)
		registry.MustRegister(AggregationsTotal)
		registry.MustRegister(ScrapeRequestsTotal)
		registry.MustRegister(RaceCardsSavedTotal)

		registry.MustRegister(DatasetRecords)
		registry.MustRegister(OddsCacheHitRatio)

		registry.MustRegister(HTTPRequestDuration)
		registry.MustRegister(AggregationDuration)
		registry.MustRegister(DatasetLoadDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route, method, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(durationSeconds)
}

// RecordAggregation records an aggregation request.
func RecordAggregation(kind, outcome string, durationSeconds float64) {
	AggregationsTotal.WithLabelValues(kind, outcome).Inc()
	AggregationDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordScrapeRequest records an upstream page request.
func RecordScrapeRequest(page, outcome string) {
	ScrapeRequestsTotal.WithLabelValues(page, outcome).Inc()
}

// RecordRaceCardSaved records a race card written to disk.
func RecordRaceCardSaved() {
	RaceCardsSavedTotal.Inc()
}

// RecordDatasetLoad records the size and load time of the dataset.
func RecordDatasetLoad(records int, durationSeconds float64) {
	DatasetRecords.Set(float64(records))
	DatasetLoadDuration.Observe(durationSeconds)
}

// UpdateOddsCacheHitRatio updates the odds cache hit ratio gauge.
func UpdateOddsCacheHitRatio(ratio float64) {
	OddsCacheHitRatio.Set(ratio)
}
