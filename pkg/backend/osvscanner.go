package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultOSVScannerPath is used when no explicit binary path is configured.
	DefaultOSVScannerPath = "osv-scanner"

	// DefaultScanTimeout bounds a single subprocess invocation.
	DefaultScanTimeout = 60 * time.Second
)

// OSVScanner runs the osv-scanner executable against a checked-out working
// tree and normalizes its JSON report.
type OSVScanner struct {
	Path    string
	Timeout time.Duration
}

func NewOSVScanner(path string, timeout time.Duration) *OSVScanner {
	if path == "" {
		path = DefaultOSVScannerPath
	}
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &OSVScanner{Path: path, Timeout: timeout}
}

func (s *OSVScanner) Name() string { return "osv" }

// Scan invokes the scanner subprocess. Exit codes 0 (clean) and 1
// (vulnerabilities found) are both successful completions; anything else,
// or unparseable output, is a failed outcome. On timeout the subprocess is
// killed and reaped before returning.
func (s *OSVScanner) Scan(ctx context.Context, repoPath string) Outcome {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, "--format", "json", "--lockfile-scan-dir", repoPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	// CommandContext has already killed and reaped the child when the
	// deadline fires; Run returns only after Wait.
	if ctx.Err() == context.DeadlineExceeded {
		return TimedOut(elapsed, s.Timeout)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Did not start at all: binary missing, not executable, etc.
			return Failed(elapsed, "osv-scanner not available at %q: %v", s.Path, runErr)
		}
		if exitErr.ExitCode() != 1 {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = runErr.Error()
			}
			return Failed(elapsed, "osv-scanner exited with code %d: %s", exitErr.ExitCode(), msg)
		}
		// Exit code 1 means findings were reported; fall through to parse.
	}

	var report osvReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return Failed(elapsed, "failed to parse osv-scanner output: %v", err)
	}

	return Outcome{
		Status:          StatusCompleted,
		Vulnerabilities: report.normalize(s.Name()),
		ExecutionTimeMS: elapsed.Milliseconds(),
		Raw:             json.RawMessage(stdout.Bytes()),
	}
}

// osv-scanner JSON report shape.

type osvReport struct {
	Results []osvResult `json:"results"`
}

type osvResult struct {
	Packages []osvPackageResult `json:"packages"`
}

type osvPackageResult struct {
	Package         osvPackageInfo `json:"package"`
	Vulnerabilities []osvVuln      `json:"vulnerabilities"`
}

type osvPackageInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
}

type osvVuln struct {
	ID               string        `json:"id"`
	Aliases          []string      `json:"aliases"`
	Summary          string        `json:"summary"`
	Published        string        `json:"published"`
	Affected         []osvAffected `json:"affected"`
	DatabaseSpecific struct {
		Severity []osvSeverityEntry `json:"severity"`
	} `json:"database_specific"`
}

type osvSeverityEntry struct {
	Type  string   `json:"type"`
	Score *float64 `json:"score"`
}

type osvAffected struct {
	Package osvPackageInfo `json:"package"`
	Ranges  []osvRange     `json:"ranges"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvEvent struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

func (r osvReport) normalize(source string) []Vulnerability {
	var vulns []Vulnerability
	for _, result := range r.Results {
		for _, pkg := range result.Packages {
			for _, v := range pkg.Vulnerabilities {
				vulns = append(vulns, v.normalize(pkg.Package, source))
			}
		}
	}
	return vulns
}

func (v osvVuln) normalize(pkg osvPackageInfo, source string) Vulnerability {
	out := Vulnerability{
		PackageName:    pkg.Name,
		PackageVersion: pkg.Version,
		Ecosystem:      pkg.Ecosystem,
		ID:             v.ID,
		Severity:       SeverityUnknown,
		Summary:        v.Summary,
		CVE:            firstCVEAlias(v.Aliases),
		FixedVersion:   v.fixedVersionFor(pkg.Name),
		Source:         source,
	}

	for _, entry := range v.DatabaseSpecific.Severity {
		if entry.Type == "CVSS_V3" {
			if entry.Score != nil {
				score := *entry.Score
				out.CVSSScore = &score
				out.Severity = SeverityFromCVSS(score)
			}
			break
		}
	}

	if v.Published != "" {
		if ts, err := time.Parse(time.RFC3339, v.Published); err == nil {
			ts = ts.UTC()
			out.PublishedAt = &ts
		}
	}

	return out
}

func firstCVEAlias(aliases []string) string {
	for _, alias := range aliases {
		if strings.HasPrefix(alias, "CVE-") {
			return alias
		}
	}
	return ""
}

// fixedVersionFor returns the first "fixed" event across ranges of affected
// entries whose package name matches.
func (v osvVuln) fixedVersionFor(packageName string) string {
	for _, affected := range v.Affected {
		if affected.Package.Name != packageName {
			continue
		}
		for _, rng := range affected.Ranges {
			for _, event := range rng.Events {
				if event.Fixed != "" {
					return event.Fixed
				}
			}
		}
	}
	return ""
}
