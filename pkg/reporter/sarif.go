package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/repo-health-scanner/pkg/backend"
	"github.com/repo-health-scanner/pkg/orchestrator"
)

type SARIFReporter struct {
	Out io.Writer
}

func (r *SARIFReporter) Report(result *orchestrator.Result) error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}

	sarif := map[string]interface{}{
		"$schema": "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		"version": "2.1.0",
		"runs": []map[string]interface{}{
			{
				"tool": map[string]interface{}{
					"driver": map[string]interface{}{
						"name":  "repo-health-scanner",
						"rules": buildRules(result.Vulnerabilities),
					},
				},
				"results": buildResults(result.Vulnerabilities),
			},
		},
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sarif)
}

func buildRules(vulns []backend.Vulnerability) []map[string]interface{} {
	var rules []map[string]interface{}
	for _, v := range vulns {
		rules = append(rules, map[string]interface{}{
			"id":               v.ID,
			"shortDescription": map[string]string{"text": v.Summary},
		})
	}
	return rules
}

func buildResults(vulns []backend.Vulnerability) []map[string]interface{} {
	var results []map[string]interface{}
	for _, v := range vulns {
		results = append(results, map[string]interface{}{
			"ruleId": v.ID,
			"level":  sarifLevel(v.Severity),
			"message": map[string]string{
				"text": fmt.Sprintf("%s %s@%s is affected by %s", v.Ecosystem, v.PackageName, v.PackageVersion, v.ID),
			},
		})
	}
	return results
}

func sarifLevel(s backend.Severity) string {
	switch s {
	case backend.SeverityCritical, backend.SeverityHigh:
		return "error"
	case backend.SeverityModerate:
		return "warning"
	default:
		return "note"
	}
}
