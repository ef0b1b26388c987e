package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market_pipeline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "market_pipeline",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Aggregation run / source metrics ───────────────────────────────────

var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Total adapter fetch attempts by outcome kind.",
	}, []string{"source", "status"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "market_pipeline",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of adapter fetches in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"source"})

	FetchLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "market_pipeline",
		Subsystem: "fetch",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful fetch per source.",
	}, []string{"source"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "market_pipeline",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Duration of full aggregation runs in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	RecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "run",
		Name:      "records_written_total",
		Help:      "Total snapshot records upserted.",
	})

	StaleRecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "run",
		Name:      "stale_records_skipped_total",
		Help:      "Scraped records rejected by the freshness gate.",
	}, []string{"key"})
)

// ── Access gate metrics ────────────────────────────────────────────────

var (
	OTPIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "auth",
		Name:      "otp_issued_total",
		Help:      "Total one-time passcodes issued.",
	})

	OTPVerifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market_pipeline",
		Subsystem: "auth",
		Name:      "otp_verified_total",
		Help:      "Total passcode verification attempts by outcome.",
	}, []string{"outcome"})
)
