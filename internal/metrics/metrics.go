package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcparser_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"method", "status", "authenticated", "challenge"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcparser_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method"},
	)

	FetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gcparser_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gcparser_fetch_retries_total",
			Help: "Transient fetch failures that were retried",
		},
	)

	PacingDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gcparser_pacing_delay_seconds",
			Help:    "Delay imposed before authenticated requests",
			Buckets: []float64{0, 0.5, 1, 3, 8, 16, 30},
		},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcparser_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	FieldsMissingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcparser_fields_missing_total",
			Help: "Extraction rules that found nothing",
		},
		[]string{"rule", "mandatory"},
	)

	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcparser_records_dropped_total",
			Help: "Row records dropped before completion",
		},
		[]string{"rows", "reason"},
	)

	PaginationMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gcparser_pagination_mismatch_total",
			Help: "Result pages whose row count disagreed with the summary line",
		},
	)

	PremiumOnlyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gcparser_premium_only_total",
			Help: "Listings that were only viewable to subscribers",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcparser_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordFetch updates the fetch metrics. status is the HTTP status code
// or "error".
func RecordFetch(method, status string, authenticated bool, challenge string, d time.Duration, bytes int) {
	auth := "false"
	if authenticated {
		auth = "true"
	}
	FetchRequestsTotal.WithLabelValues(method, status, auth, challenge).Inc()
	FetchDuration.WithLabelValues(method).Observe(d.Seconds())
	FetchBytesTotal.Add(float64(bytes))
}

// RecordLogin counts a login attempt. outcome is "success", "rejected" or
// "error".
func RecordLogin(outcome string) {
	LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// Extraction counts extraction diagnostics. It satisfies extract.Observer.
type Extraction struct{}

func (Extraction) FieldMissing(rule string, mandatory bool) {
	m := "false"
	if mandatory {
		m = "true"
	}
	FieldsMissingTotal.WithLabelValues(rule, m).Inc()
}

func (Extraction) RecordDropped(rows, reason string) {
	RecordsDroppedTotal.WithLabelValues(rows, reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
