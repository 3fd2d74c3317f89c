package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	keyregRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyreg_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	keyregRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyreg_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	keyregKeyWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyreg_key_writes_total",
		Help: "Total SetKey attempts by outcome.",
	}, []string{"outcome"})

	keyregLedgerEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyreg_ledger_entries_total",
		Help: "Total audit ledger entries appended.",
	})

	keyregCredentialsMintedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyreg_credentials_minted_total",
		Help: "Total credential tokens minted.",
	})

	keyregHealthProbeUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keyreg_health_probe_up",
		Help: "1 if the last run of a health probe succeeded, 0 otherwise.",
	}, []string{"probe"})

	keyregHealthDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyreg_health_degraded_total",
		Help: "Times a health probe crossed its consecutive-failure threshold.",
	}, []string{"probe"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			// Unmatched routes collapse into one series.
			path = "unmatched"
		}

		keyregRequestsTotal.WithLabelValues(method, path, status).Inc()
		keyregRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordKeyWrite records one SetKey outcome. It matches keys.MetricsRecordFunc.
func RecordKeyWrite(outcome string) {
	keyregKeyWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordLedgerAppend records an audit ledger entry append.
func RecordLedgerAppend() {
	keyregLedgerEntriesTotal.Inc()
}

// RecordMint records a minted credential.
func RecordMint() {
	keyregCredentialsMintedTotal.Inc()
}

// RecordProbe records one health probe result. It matches
// health.MetricsRecordFunc.
func RecordProbe(probe string, success bool) {
	v := 0.0
	if success {
		v = 1
	}
	keyregHealthProbeUp.WithLabelValues(probe).Set(v)
}

// RecordProbeDegraded counts a probe crossing its failure threshold. It
// matches health.DegradedFunc.
func RecordProbeDegraded(probe string, _ error) {
	keyregHealthDegradedTotal.WithLabelValues(probe).Inc()
}

// InstrumentLedger wraps l so every successful Append is counted.
func InstrumentLedger(l ledger.Ledger) ledger.Ledger {
	return countingLedger{Ledger: l}
}

type countingLedger struct {
	ledger.Ledger
}

func (l countingLedger) Append(ctx context.Context, subject, action, actor string, payload any) (*ledger.Entry, error) {
	e, err := l.Ledger.Append(ctx, subject, action, actor, payload)
	if err == nil {
		RecordLedgerAppend()
	}
	return e, err
}
