package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_runs_total",
			Help: "Total number of simulation runs by final status",
		},
		[]string{"status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backtester_run_duration_seconds",
			Help:    "Wall time spent executing simulation runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"symbol"},
	)

	runsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtester_runs_in_flight",
			Help: "Number of simulation runs currently executing",
		},
	)

	// Trade metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_trades_total",
			Help: "Total number of simulated fills",
		},
		[]string{"symbol", "side", "reason"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(runsInFlight)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordRun records a finished run with its final status.
func RecordRun(symbol, status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(symbol).Observe(duration.Seconds())
}

// RunStarted marks a run as in flight.
func RunStarted() {
	runsInFlight.Inc()
}

// RunFinished marks a run as no longer in flight.
func RunFinished() {
	runsInFlight.Dec()
}

// RecordTrade records one simulated fill.
func RecordTrade(symbol, side, reason string) {
	tradesTotal.WithLabelValues(symbol, side, reason).Inc()
}

// RecordError records an error metric.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
