package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_analyses_total",
			Help: "Total review analyses by classification and source",
		},
		[]string{"classification", "source"},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_fallback_total",
			Help: "Total analyses served by the heuristic fallback",
		},
		[]string{"reason"},
	)

	ModelInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustbites_model_invocation_duration_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustbites_confidence_score",
			Help:    "Analysis confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"classification"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	BatchReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_batch_reviews_total",
			Help: "Reviews handled by batch analysis, by result",
		},
		[]string{"result"},
	)

	PlacesRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustbites_places_requests_total",
			Help: "Total requests to the places API",
		},
		[]string{"endpoint", "status"},
	)

	ReviewsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trustbites_reviews_submitted_total",
			Help: "Total reviews submitted through the API",
		},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trustbites_persist_failures_total",
			Help: "Total analyses that could not be persisted",
		},
	)
)

func Init() {
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(ModelInvocationDuration)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(BatchReviewsTotal)
	prometheus.MustRegister(PlacesRequestsTotal)
	prometheus.MustRegister(ReviewsSubmitted)
	prometheus.MustRegister(PersistFailures)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
