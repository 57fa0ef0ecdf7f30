package reporter

import (
	"github.com/repo-health-scanner/pkg/orchestrator"
)

type Reporter interface {
	Report(result *orchestrator.Result) error
}

func New(format string) Reporter {
	switch format {
	case "json":
		return &JSONReporter{}
	case "sarif":
		return &SARIFReporter{}
	default:
		return &TableReporter{}
	}
}
