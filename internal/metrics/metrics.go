// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsCreatedTotal counts bets accepted into escrow.
	BetsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonflip_bets_created_total",
		Help: "Total number of bets created",
	})

	// BetVolumeTotal accumulates escrowed stake in base units.
	BetVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonflip_bet_volume_units_total",
		Help: "Cumulative escrowed stake in base units",
	})

	// SettlementsTotal counts settlements, partitioned by outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moonflip_settlements_total",
		Help: "Total number of settled bets",
	}, []string{"outcome"})

	// PayoutUnitsTotal accumulates released winnings in base units.
	PayoutUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonflip_payout_units_total",
		Help: "Cumulative payout released to winners in base units",
	})

	// OpenBets tracks bets awaiting settlement.
	OpenBets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moonflip_open_bets",
		Help: "Number of bets awaiting settlement",
	})

	// OracleFeedLatency tracks price feed request duration.
	OracleFeedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moonflip_oracle_feed_latency_seconds",
		Help:    "Oracle price feed request latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moonflip_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moonflip_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moonflip_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Collapse bet IDs into a pattern to keep label cardinality bounded.
		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath replaces the bet ID path segment with a placeholder.
func normalizePath(path string) string {
	const prefix = "/api/v1/bets/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return prefix + "{betID}" + rest[i:]
	}
	return prefix + "{betID}"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
