// Package health computes aggregate health metrics over a normalized
// vulnerability collection. Dependency counts and maintenance indicators are
// populated by external collaborators and carried here as zero/absent.
package health

import (
	"sort"
	"time"

	"github.com/repo-health-scanner/pkg/backend"
)

type SeverityCounts struct {
	Critical int `json:"CRITICAL"`
	High     int `json:"HIGH"`
	Moderate int `json:"MODERATE"`
	Low      int `json:"LOW"`
}

type DependencyStats struct {
	TotalDependencies      int      `json:"total_dependencies"`
	DirectDependencies     int      `json:"direct_dependencies"`
	TransitiveDependencies int      `json:"transitive_dependencies"`
	Ecosystems             []string `json:"ecosystems"`
}

type VulnerabilityStats struct {
	TotalVulnerabilities   int            `json:"total_vulnerabilities"`
	UniquePackagesAffected int            `json:"unique_packages_affected"`
	BySeverity             SeverityCounts `json:"by_severity"`
}

type MaintenanceIndicators struct {
	OutdatedDependencies    int      `json:"outdated_dependencies"`
	DependenciesBehindMajor int      `json:"dependencies_behind_major"`
	DependenciesBehindMinor int      `json:"dependencies_behind_minor"`
	MeanDependencyAgeDays   *float64 `json:"mean_dependency_age_days"`
	OldestDependencyAgeDays *int     `json:"oldest_dependency_age_days"`
}

// AgeStats describes unfixed-vulnerability age in whole days. All fields are
// absent (nil), not zero, when no vulnerability carries a publication time.
type AgeStats struct {
	MeanDays   *float64 `json:"mean"`
	MedianDays *float64 `json:"median"`
	MaxDays    *int     `json:"max"`
}

type Metrics struct {
	DependencyStats       DependencyStats       `json:"dependency_stats"`
	VulnerabilityStats    VulnerabilityStats    `json:"vulnerability_stats"`
	MaintenanceIndicators MaintenanceIndicators `json:"maintenance_indicators"`
	UnfixedVulnAgeDays    AgeStats              `json:"unfixed_vulnerability_age_days"`
}

// Compute derives metrics from a deduplicated vulnerability collection. It is
// pure: now is the only clock input and nothing is mutated.
func Compute(vulns []backend.Vulnerability, now time.Time) Metrics {
	var m Metrics

	m.VulnerabilityStats.TotalVulnerabilities = len(vulns)

	packages := make(map[string]struct{})
	ecosystems := make(map[string]struct{})
	var ages []int

	for _, v := range vulns {
		packages[v.PackageName] = struct{}{}
		if v.Ecosystem != "" {
			ecosystems[v.Ecosystem] = struct{}{}
		}

		switch v.Severity {
		case backend.SeverityCritical:
			m.VulnerabilityStats.BySeverity.Critical++
		case backend.SeverityHigh:
			m.VulnerabilityStats.BySeverity.High++
		case backend.SeverityModerate:
			m.VulnerabilityStats.BySeverity.Moderate++
		case backend.SeverityLow:
			m.VulnerabilityStats.BySeverity.Low++
		}

		if v.PublishedAt != nil {
			ages = append(ages, int(now.Sub(*v.PublishedAt).Hours()/24))
		}
	}

	m.VulnerabilityStats.UniquePackagesAffected = len(packages)

	m.DependencyStats.Ecosystems = make([]string, 0, len(ecosystems))
	for eco := range ecosystems {
		m.DependencyStats.Ecosystems = append(m.DependencyStats.Ecosystems, eco)
	}
	sort.Strings(m.DependencyStats.Ecosystems)

	if len(ages) > 0 {
		mean := meanOf(ages)
		median := medianOf(ages)
		max := maxOf(ages)
		m.UnfixedVulnAgeDays = AgeStats{MeanDays: &mean, MedianDays: &median, MaxDays: &max}
	}

	return m
}

func meanOf(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// medianOf uses the standard definition: the average of the two middle
// values for even counts.
func medianOf(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func maxOf(values []int) int {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
