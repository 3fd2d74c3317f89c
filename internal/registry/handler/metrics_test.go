package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/health"
	"github.com/jmerrifield20/keyregistry/internal/ledger"
	"github.com/jmerrifield20/keyregistry/internal/registry/handler"
	"go.uber.org/zap"
)

func TestMetricsEndpoint_exposesRegistrySeries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", handler.MetricsHandler())

	handler.RecordKeyWrite("ok")
	handler.RecordMint()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, series := range []string{
		`keyreg_requests_total{method="GET",path="/ping",status="204"}`,
		`keyreg_key_writes_total{outcome="ok"}`,
		"keyreg_credentials_minted_total",
		"keyreg_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, series) {
			t.Errorf("metrics output missing %s", series)
		}
	}
}

func TestInstrumentLedger_passesThrough(t *testing.T) {
	ctx := context.Background()
	l := handler.InstrumentLedger(ledger.New())

	e, err := l.Append(ctx, "token/1/signing", ledger.ActionSetKey, "0xabc", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.Index != 1 {
		t.Errorf("index: got %d, want 1", e.Index)
	}
	if n, _ := l.Len(ctx); n != 2 {
		t.Errorf("Len: got %d, want 2", n)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestHealthChecker_degradedProbeIsCounted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	down := func(context.Context) error { return errors.New("connection refused") }
	checker := health.New(map[string]health.ProbeFunc{"degraded-storage": down}, health.Config{FailThreshold: 2}, zap.NewNop())
	checker.SetMetricsRecord(handler.RecordProbe)
	checker.SetDegraded(handler.RecordProbeDegraded)

	// The counter fires once at the threshold, not on every later failure.
	for i := 0; i < 3; i++ {
		checker.CheckAll(context.Background())
	}

	r := gin.New()
	r.GET("/metrics", handler.MetricsHandler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, series := range []string{
		`keyreg_health_degraded_total{probe="degraded-storage"} 1`,
		`keyreg_health_probe_up{probe="degraded-storage"} 0`,
	} {
		if !strings.Contains(body, series) {
			t.Errorf("metrics output missing %s", series)
		}
	}
}
