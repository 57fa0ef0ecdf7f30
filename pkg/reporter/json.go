package reporter

import (
	"encoding/json"
	"io"
	"os"

	"github.com/repo-health-scanner/pkg/orchestrator"
)

type JSONReporter struct {
	Out io.Writer
}

func (r *JSONReporter) Report(result *orchestrator.Result) error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
