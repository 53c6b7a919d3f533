package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusWarn HealthStatus = "warn"
	HealthStatusFail HealthStatus = "fail"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       HealthStatus   `json:"status"`
	Error        string         `json:"error,omitempty"`
	ResponseTime string         `json:"response_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HealthChecker checks the health of a dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthCheckResult
}

// CheckFunc adapts a probe to HealthChecker. Critical probes fail the
// whole report, others only warn.
type CheckFunc struct {
	CheckName string
	Critical  bool
	Probe     func(ctx context.Context) (map[string]any, error)
}

func (c CheckFunc) Name() string { return c.CheckName }

func (c CheckFunc) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	meta, err := c.Probe(ctx)
	res := HealthCheckResult{
		Status:       HealthStatusPass,
		ResponseTime: time.Since(start).String(),
		Metadata:     meta,
	}
	if err != nil {
		res.Error = err.Error()
		res.Status = HealthStatusWarn
		if c.Critical {
			res.Status = HealthStatusFail
		}
	}
	return res
}

// HealthReport is the /healthz body
type HealthReport struct {
	Status  HealthStatus                 `json:"status"`
	Version string                       `json:"version"`
	Uptime  string                       `json:"uptime"`
	Checks  map[string]HealthCheckResult `json:"checks"`
}

type healthHandler struct {
	checkers  []HealthChecker
	version   string
	timeout   time.Duration
	startTime time.Time
}

func newHealthHandler(version string, checkers []HealthChecker) *healthHandler {
	return &healthHandler{
		checkers:  checkers,
		version:   version,
		timeout:   5 * time.Second,
		startTime: time.Now(),
	}
}

func (h *healthHandler) report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]HealthCheckResult, len(h.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range h.checkers {
		g.Go(func() error {
			res := c.Check(gctx)
			mu.Lock()
			checks[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatusPass
	for _, res := range checks {
		if res.Status == HealthStatusFail {
			status = HealthStatusFail
			break
		}
		if res.Status == HealthStatusWarn {
			status = HealthStatusWarn
		}
	}

	return HealthReport{
		Status:  status,
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Checks:  checks,
	}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.report(r.Context())

	code := http.StatusOK
	if rep.Status == HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
