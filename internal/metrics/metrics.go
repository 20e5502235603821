package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_polls_total",
			Help: "Total poll cycles per source",
		},
		[]string{"source", "status"},
	)

	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trumpdump_poll_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	PostsScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_posts_scraped_total",
			Help: "Total new posts stored per source",
		},
		[]string{"source"},
	)

	HeuristicSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_heuristic_skips_total",
			Help: "Posts skipped by the pre-model heuristic",
		},
		[]string{"source"},
	)

	AnalysesStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_analyses_stored_total",
			Help: "Analyses persisted, labeled by relevance gate outcome",
		},
		[]string{"source", "relevant"},
	)

	AnalysisFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_analysis_failures_total",
			Help: "Extraction pipeline failures per source",
		},
		[]string{"source"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trumpdump_stream_subscribers",
			Help: "Currently connected event stream subscribers",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trumpdump_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(PollsTotal)
	prometheus.MustRegister(PollDuration)
	prometheus.MustRegister(PostsScraped)
	prometheus.MustRegister(HeuristicSkips)
	prometheus.MustRegister(AnalysesStored)
	prometheus.MustRegister(AnalysisFailures)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(StreamSubscribers)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
