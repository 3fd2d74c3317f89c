// Package health runs periodic probes against the registry's backing stores
// and reports their status to /healthz.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// ProbeFunc checks one dependency; a nil error means healthy.
type ProbeFunc func(ctx context.Context) error

// DegradedFunc is an optional callback fired when a probe crosses the
// failure threshold.
type DegradedFunc func(probe string, err error)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(probe string, success bool)

// ProbeStatus is the last observed result of one probe.
type ProbeStatus struct {
	Healthy   bool      `json:"healthy"`
	Failures  int       `json:"consecutive_failures"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report is the snapshot served on /healthz.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]ProbeStatus `json:"checks"`
}

// Checker runs named probes on an interval and keeps the latest results.
type Checker struct {
	probes     map[string]ProbeFunc
	mu         sync.Mutex
	results    map[string]ProbeStatus
	cfg        Config
	onDegraded DegradedFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker for the given probes.
func New(probes map[string]ProbeFunc, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		probes:  probes,
		results: make(map[string]ProbeStatus, len(probes)),
		cfg:     cfg,
		logger:  logger,
	}
}

// SetDegraded configures the degraded-transition callback.
func (h *Checker) SetDegraded(fn DegradedFunc) {
	h.onDegraded = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently and records the results.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, probe := range h.probes {
		wg.Add(1)
		go func(name string, probe ProbeFunc) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := probe(pctx)
			cancel()
			h.record(name, err)
		}(name, probe)
	}
	wg.Wait()
}

func (h *Checker) record(name string, err error) {
	success := err == nil
	if h.onMetrics != nil {
		h.onMetrics(name, success)
	}

	h.mu.Lock()
	prev := h.results[name]
	status := ProbeStatus{Healthy: success, CheckedAt: time.Now().UTC()}
	if !success {
		status.Failures = prev.Failures + 1
		status.Error = err.Error()
	}
	h.results[name] = status
	h.mu.Unlock()

	switch {
	case success && prev.Failures >= h.cfg.FailThreshold:
		h.logger.Info("health: recovered", zap.String("probe", name))
	case !success && status.Failures == h.cfg.FailThreshold:
		// Fire once, exactly at the threshold.
		h.logger.Warn("health: degraded",
			zap.String("probe", name),
			zap.Int("fail_count", status.Failures),
			zap.Error(err),
		)
		if h.onDegraded != nil {
			h.onDegraded(name, err)
		}
	case !success:
		h.logger.Debug("health: probe failed", zap.String("probe", name), zap.Error(err))
	}
}

// Report returns the latest results. Status is "ok" only when every probe
// has run and its last result was healthy.
func (h *Checker) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := Report{Status: "ok", Checks: make(map[string]ProbeStatus, len(h.results))}
	for name := range h.probes {
		st, ok := h.results[name]
		if !ok {
			r.Status = "unavailable"
			continue
		}
		r.Checks[name] = st
		if !st.Healthy {
			r.Status = "unavailable"
		}
	}
	return r
}

// Healthy reports whether the latest Report is "ok".
func (h *Checker) Healthy() bool {
	return h.Report().Status == "ok"
}
