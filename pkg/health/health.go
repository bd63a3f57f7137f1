// Package health provides health check functionality for the rotator
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/metrics"
)

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is degraded but functioning.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a single health check.
type Check struct {
	Name    string    `json:"name"`
	Status  Status    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"lastRun"`
}

// Result represents the overall health check result.
type Result struct {
	Status  string            `json:"status"`
	Checks  map[string]*Check `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// Checker defines a function that performs a health check.
type Checker func(ctx context.Context) error

// DegradedError marks a check failure that should not fail readiness.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string {
	return e.Reason
}

// Health manages health checks for the rotator.
type Health struct {
	checkers map[string]Checker
	results  map[string]*Check
	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *metrics.Metrics
	nowFunc  func() time.Time
}

// New creates a new Health instance.
func New(logger *slog.Logger) *Health {
	return &Health{
		checkers: make(map[string]Checker),
		results:  make(map[string]*Check),
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// SetMetrics publishes each check result as a health_status gauge.
func (h *Health) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Register registers a health check.
func (h *Health) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
	h.results[name] = &Check{
		Name:   name,
		Status: StatusUnhealthy,
	}
}

// RunAll runs all registered health checks.
func (h *Health) RunAll(ctx context.Context) *Result {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	results := make(map[string]*Check, len(checkers))
	for name, checker := range checkers {
		results[name] = h.run(ctx, name, checker)
	}

	h.mu.Lock()
	for name, check := range results {
		h.results[name] = check
	}
	h.mu.Unlock()

	return &Result{
		Status: string(computeOverallStatus(results)),
		Checks: results,
	}
}

// Run runs a specific health check by name.
func (h *Health) Run(ctx context.Context, name string) (*Check, error) {
	h.mu.RLock()
	checker, exists := h.checkers[name]
	h.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("health check not found: %s", name)
	}

	check := h.run(ctx, name, checker)

	h.mu.Lock()
	h.results[name] = check
	h.mu.Unlock()

	return check, nil
}

func (h *Health) run(ctx context.Context, name string, checker Checker) *Check {
	err := checker(ctx)
	check := &Check{
		Name:    name,
		LastRun: h.nowFunc(),
	}

	var degraded *DegradedError
	switch {
	case err == nil:
		check.Status = StatusHealthy
		check.Message = "OK"
	case errors.As(err, &degraded):
		check.Status = StatusDegraded
		check.Message = degraded.Reason
		h.logger.Warn("Health check degraded", "name", name, "reason", degraded.Reason)
	default:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		h.logger.Error("Health check failed", "name", name, "error", err)
	}

	h.metrics.SetHealthStatus(name, check.Status != StatusUnhealthy)
	return check
}

// GetResult returns the current health result without running checks.
func (h *Health) GetResult() *Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]*Check, len(h.results))
	for name, check := range h.results {
		checks[name] = check
	}
	return &Result{
		Status: string(computeOverallStatus(checks)),
		Checks: checks,
	}
}

// IsHealthy returns true if all checks are healthy.
func (h *Health) IsHealthy() bool {
	return h.GetResult().Status == string(StatusHealthy)
}

// StoreChecker reports whether the environment store is reachable.
func StoreChecker(store iface.Store) Checker {
	return func(ctx context.Context) error {
		return store.HealthCheck(ctx)
	}
}

// SecretChecker reports on the client secret stored under key. A missing or
// undecodable secret is degraded since the next check will mint one; an
// expired secret is unhealthy.
func SecretChecker(store iface.Store, key string, now func() time.Time) Checker {
	return func(ctx context.Context) error {
		env, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load store: %w", err)
		}
		secret := env[key]
		if secret == "" {
			return &DegradedError{Reason: fmt.Sprintf("%s is not set", key)}
		}
		exp, ok := clientsecret.GetExpiryTime(secret)
		if !ok {
			return &DegradedError{Reason: fmt.Sprintf("%s has no readable expiry", key)}
		}
		if !now().Before(exp) {
			return fmt.Errorf("%s expired at %s", key, exp.UTC().Format(time.RFC3339))
		}
		return nil
	}
}

// computeOverallStatus computes the overall status from individual checks.
func computeOverallStatus(checks map[string]*Check) Status {
	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if check.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
