package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the terminal state of a single backend invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Severity buckets shared by all backends.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// SeverityFromCVSS maps a numeric CVSS score to a severity bucket.
// Boundary values map to the higher bucket.
func SeverityFromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// Vulnerability is the normalized, backend-agnostic finding. Instances are
// never mutated after construction; duplicates across backends are collapsed
// by the orchestrator.
type Vulnerability struct {
	PackageName    string     `json:"package_name"`
	PackageVersion string     `json:"package_version"`
	Ecosystem      string     `json:"ecosystem"`
	ID             string     `json:"vulnerability_id"`
	CVE            string     `json:"cve_id,omitempty"`
	Severity       Severity   `json:"severity"`
	CVSSScore      *float64   `json:"cvss_score,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FixedVersion   string     `json:"fixed_version,omitempty"`
	Source         string     `json:"source"`
}

// Outcome is the result of one backend invocation.
type Outcome struct {
	Status          Status          `json:"status"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	Error           string          `json:"error,omitempty"`
	Raw             json.RawMessage `json:"-"`
}

// Failed builds a failed Outcome with the given error text.
func Failed(elapsed time.Duration, format string, args ...interface{}) Outcome {
	return Outcome{
		Status:          StatusFailed,
		ExecutionTimeMS: elapsed.Milliseconds(),
		Error:           fmt.Sprintf(format, args...),
	}
}

// TimedOut builds a timeout Outcome.
func TimedOut(elapsed time.Duration, budget time.Duration) Outcome {
	return Outcome{
		Status:          StatusTimeout,
		ExecutionTimeMS: elapsed.Milliseconds(),
		Error:           fmt.Sprintf("scan exceeded %s budget", budget),
	}
}

// Backend is a single vulnerability-data source. Scan never returns an
// error: every failure mode (missing executable, crash, malformed output,
// exceeded budget) is reported through the Outcome status and error text,
// with an empty vulnerability list. This is what makes concurrent fan-out
// safe for the orchestrator.
type Backend interface {
	Name() string
	Scan(ctx context.Context, repoPath string) Outcome
}

// Registry is the closed set of backends known to the process, in a fixed
// registration order. Merge order during consolidation follows it.
type Registry struct {
	backends []Backend
	byName   map[string]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{byName: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		if _, dup := r.byName[b.Name()]; dup {
			continue
		}
		r.backends = append(r.backends, b)
		r.byName[b.Name()] = b
	}
	return r
}

// Names returns the registered backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

// Select resolves a backend selection. An empty selection or the single
// entry "all" selects every registered backend in registration order;
// otherwise the named subset is returned in the order given.
func (r *Registry) Select(names []string) ([]Backend, error) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		if len(r.backends) == 0 {
			return nil, fmt.Errorf("no backends registered")
		}
		return append([]Backend(nil), r.backends...), nil
	}

	selected := make([]Backend, 0, len(names))
	for _, name := range names {
		b, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown backend %q (known: %v)", name, r.Names())
		}
		selected = append(selected, b)
	}
	return selected, nil
}
