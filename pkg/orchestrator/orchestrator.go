// Package orchestrator fans a repository scan out to the selected backends,
// isolates their failures, and merges their findings into one consolidated,
// deduplicated result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/repo-health-scanner/pkg/backend"
	"github.com/repo-health-scanner/pkg/health"
	"github.com/repo-health-scanner/pkg/telemetry"
)

var (
	// ErrRepoPathInvalid marks an unreadable or nonexistent repository path;
	// it fails the whole consolidation, unlike any per-backend error.
	ErrRepoPathInvalid = errors.New("invalid repository path")

	// ErrNoBackends marks a selection that resolves to no usable backends.
	ErrNoBackends = errors.New("no valid backends in selection")
)

// BackendReport is the per-backend slice of a consolidated result, recorded
// even for backends that found nothing.
type BackendReport struct {
	Status               backend.Status `json:"status"`
	VulnerabilitiesFound int            `json:"vulnerabilities_found"`
	ExecutionTimeMS      int64          `json:"execution_time_ms"`
	Error                string         `json:"error,omitempty"`
}

// Result is the consolidated output of one scan: per-backend reports keyed
// by backend name, the deduplicated vulnerability collection, and computed
// health metrics. It is what the caller caches and persists.
type Result struct {
	Backends        map[string]BackendReport `json:"scanner_results"`
	Vulnerabilities []backend.Vulnerability  `json:"vulnerabilities"`
	Metrics         health.Metrics           `json:"health_metrics"`
}

type Orchestrator struct {
	registry *backend.Registry
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// New builds an orchestrator over the given registry. metrics may be nil.
func New(registry *backend.Registry, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		metrics:  metrics,
		logger:   slog.Default(),
	}
}

// Consolidate runs every selected backend concurrently against repoPath,
// waits for all of them, and merges their outcomes. Per-backend failures and
// timeouts never abort siblings or the call; the only fatal conditions are
// an invalid repository path and an empty or unknown backend selection.
func (o *Orchestrator) Consolidate(ctx context.Context, repoPath string, selection []string) (*Result, error) {
	if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrRepoPathInvalid, repoPath)
	}

	backends, err := o.registry.Select(selection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackends, err)
	}

	outcomes := o.fanOut(ctx, backends, repoPath)

	result := &Result{Backends: make(map[string]BackendReport, len(backends))}
	var all []backend.Vulnerability

	// Merge in selection order; within a backend, its own output order.
	// Together with first-seen dedup this makes consolidation reproducible
	// for a fixed input ordering.
	for i, b := range backends {
		outcome := outcomes[i]
		result.Backends[b.Name()] = BackendReport{
			Status:               outcome.Status,
			VulnerabilitiesFound: len(outcome.Vulnerabilities),
			ExecutionTimeMS:      outcome.ExecutionTimeMS,
			Error:                outcome.Error,
		}
		all = append(all, outcome.Vulnerabilities...)

		if o.metrics != nil {
			o.metrics.BackendScansTotal.WithLabelValues(b.Name(), string(outcome.Status)).Inc()
			o.metrics.BackendScanDuration.WithLabelValues(b.Name()).Observe(float64(outcome.ExecutionTimeMS) / 1000)
		}
		if outcome.Status != backend.StatusCompleted {
			o.logger.Warn("backend did not complete",
				"backend", b.Name(), "status", outcome.Status, "error", outcome.Error)
		}
	}

	result.Vulnerabilities = Deduplicate(all)
	result.Metrics = health.Compute(result.Vulnerabilities, time.Now().UTC())

	if o.metrics != nil {
		o.metrics.ConsolidationsTotal.Inc()
	}
	o.logger.Info("consolidation finished",
		"backends", len(backends),
		"raw_findings", len(all),
		"deduplicated", len(result.Vulnerabilities))

	return result, nil
}

// fanOut invokes every backend in its own goroutine and joins on all of
// them. A backend that panics in spite of the no-throw contract is recorded
// as a synthetic failed outcome with zero execution time, so one broken
// backend can never take down the scan of the others.
func (o *Orchestrator) fanOut(ctx context.Context, backends []backend.Backend, repoPath string) []backend.Outcome {
	outcomes := make([]backend.Outcome, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b backend.Backend) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = backend.Outcome{
						Status: backend.StatusFailed,
						Error:  fmt.Sprintf("backend panicked: %v", r),
					}
				}
			}()
			outcomes[i] = b.Scan(ctx, repoPath)
		}(i, b)
	}
	wg.Wait()

	return outcomes
}
