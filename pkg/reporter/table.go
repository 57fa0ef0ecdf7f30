package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/repo-health-scanner/pkg/orchestrator"
)

type TableReporter struct {
	Out io.Writer
}

func (r *TableReporter) Report(result *orchestrator.Result) error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}

	names := make([]string, 0, len(result.Backends))
	for name := range result.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rep := result.Backends[name]
		line := fmt.Sprintf("backend %s: %s, %d found in %dms", name, rep.Status, rep.VulnerabilitiesFound, rep.ExecutionTimeMS)
		if rep.Error != "" {
			line += " (" + rep.Error + ")"
		}
		fmt.Fprintln(out, line)
	}

	if len(result.Vulnerabilities) == 0 {
		fmt.Fprintln(out, "No known vulnerabilities found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tPACKAGE\tVERSION\tECOSYSTEM\tFIXED IN\tSOURCE")
	fmt.Fprintln(w, "--\t--------\t-------\t-------\t---------\t--------\t------")

	for _, v := range result.Vulnerabilities {
		id := v.ID
		if v.CVE != "" {
			id = v.CVE
		}
		fixed := v.FixedVersion
		if fixed == "" {
			fixed = "(none)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, v.Severity, v.PackageName, v.PackageVersion, v.Ecosystem, fixed, v.Source)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	counts := result.Metrics.VulnerabilityStats.BySeverity
	fmt.Fprintf(out, "\n%d vulnerabilities across %d packages (critical %d, high %d, moderate %d, low %d)\n",
		result.Metrics.VulnerabilityStats.TotalVulnerabilities,
		result.Metrics.VulnerabilityStats.UniquePackagesAffected,
		counts.Critical, counts.High, counts.Moderate, counts.Low)
	return nil
}
