package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const advisoryBaseURL = "https://api.github.com/advisories"

// Package identifies one dependency to query advisories for.
type Package struct {
	Name      string
	Version   string
	Ecosystem string
}

// PackageSource supplies the dependency list for a checked-out tree. The
// engine itself does not parse manifests, so the default backend runs with
// no source and reports an empty completed outcome; callers that do have a
// manifest-parsing collaborator plug it in here.
type PackageSource func(repoPath string) ([]Package, error)

// GitHubAdvisory queries the GitHub Advisory Database once per
// package/ecosystem pair.
type GitHubAdvisory struct {
	BaseURL  string
	Token    string
	Packages PackageSource

	httpClient *http.Client
	timeout    time.Duration
}

func NewGitHubAdvisory(token string, timeout time.Duration) *GitHubAdvisory {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &GitHubAdvisory{
		BaseURL:    advisoryBaseURL,
		Token:      token,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

func (g *GitHubAdvisory) Name() string { return "github" }

func (g *GitHubAdvisory) Scan(ctx context.Context, repoPath string) Outcome {
	start := time.Now()

	if g.Packages == nil {
		// No manifest-parsing collaborator wired; an empty result set is a
		// valid completed outcome.
		return Outcome{
			Status:          StatusCompleted,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
		}
	}

	packages, err := g.Packages(repoPath)
	if err != nil {
		return Failed(time.Since(start), "list packages: %v", err)
	}

	var vulns []Vulnerability
	for _, pkg := range packages {
		advisories, err := g.queryPackage(ctx, pkg)
		if err != nil {
			if isTimeout(err) {
				return TimedOut(time.Since(start), g.timeout)
			}
			return Failed(time.Since(start), "query advisories for %s: %v", pkg.Name, err)
		}
		vulns = append(vulns, advisories...)
	}

	return Outcome{
		Status:          StatusCompleted,
		Vulnerabilities: vulns,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	}
}

func (g *GitHubAdvisory) queryPackage(ctx context.Context, pkg Package) ([]Vulnerability, error) {
	query := url.Values{}
	query.Set("ecosystem", strings.ToLower(pkg.Ecosystem))
	query.Set("affects", pkg.Name+"@"+pkg.Version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build advisory request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisory query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("advisory query returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var advisories []ghAdvisory
	if err := json.NewDecoder(resp.Body).Decode(&advisories); err != nil {
		return nil, fmt.Errorf("decode advisory response: %w", err)
	}

	vulns := make([]Vulnerability, 0, len(advisories))
	for _, adv := range advisories {
		vulns = append(vulns, adv.normalize(pkg, g.Name()))
	}
	return vulns, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// GitHub Advisory Database response shape.

type ghAdvisory struct {
	GHSAID      string `json:"ghsa_id"`
	CVEID       string `json:"cve_id"`
	Summary     string `json:"summary"`
	Severity    string `json:"severity"`
	PublishedAt string `json:"published_at"`
	CVSS        *struct {
		Score *float64 `json:"score"`
	} `json:"cvss"`
	Vulnerabilities []struct {
		FirstPatchedVersion string `json:"first_patched_version"`
		Package             struct {
			Name      string `json:"name"`
			Ecosystem string `json:"ecosystem"`
		} `json:"package"`
	} `json:"vulnerabilities"`
}

func (a ghAdvisory) normalize(pkg Package, source string) Vulnerability {
	out := Vulnerability{
		PackageName:    pkg.Name,
		PackageVersion: pkg.Version,
		Ecosystem:      pkg.Ecosystem,
		ID:             a.GHSAID,
		CVE:            a.CVEID,
		Severity:       SeverityUnknown,
		Summary:        a.Summary,
		Source:         source,
	}

	if a.CVSS != nil && a.CVSS.Score != nil {
		score := *a.CVSS.Score
		out.CVSSScore = &score
		out.Severity = SeverityFromCVSS(score)
	} else if sev := severityFromLabel(a.Severity); sev != "" {
		out.Severity = sev
	}

	for _, v := range a.Vulnerabilities {
		if v.Package.Name == pkg.Name && v.FirstPatchedVersion != "" {
			out.FixedVersion = v.FirstPatchedVersion
			break
		}
	}

	if a.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			ts = ts.UTC()
			out.PublishedAt = &ts
		}
	}

	return out
}

func severityFromLabel(label string) Severity {
	switch strings.ToLower(label) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityModerate
	case "low":
		return SeverityLow
	default:
		return ""
	}
}
