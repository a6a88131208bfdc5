// internal/adapters/output/table.go
package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
)

// OutputTable imprime un resumen legible del run por módulo.
func OutputTable(w io.Writer, report *domain.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "\n=== Discord Enumeration Results ===\n")
	fmt.Fprintf(tw, "Run ID:\t%s\n", report.RunID)
	fmt.Fprintf(tw, "Target:\t%s\n", report.Target)
	fmt.Fprintf(tw, "Mode:\t%s\n", report.Mode)
	fmt.Fprintf(tw, "Duration:\t%s\n", report.FinishedAt.Sub(report.StartedAt).Round(1e6))
	fmt.Fprintf(tw, "Probes:\t%d\n\n", report.TotalProbes())

	names := make([]string, 0, len(report.Modules))
	for name := range report.Modules {
		names = append(names, string(name))
	}
	sort.Strings(names)

	fmt.Fprintln(tw, "MODULE\tPROBES\tOK\tFAILED\tSETUP")
	fmt.Fprintln(tw, "------\t------\t--\t------\t-----")
	for _, name := range names {
		mr := report.Modules[domain.ModuleID(name)]
		setup := "-"
		if mr.SetupError != "" {
			setup = mr.SetupError
		}
		ok := len(mr.Results) - probeFailures(mr)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", name, len(mr.Results), ok, probeFailures(mr), setup)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	if report.TotalFailures() > 0 {
		fmt.Fprintf(w, "\nFailures (%d):\n", report.TotalFailures())
		for _, name := range names {
			mr := report.Modules[domain.ModuleID(name)]
			for _, res := range mr.Results {
				if res.Failed() {
					fmt.Fprintf(w, "  - [%s] %s: %s (attempts=%d)\n", name, res.Target, res.Reason, res.Attempts)
				}
			}
		}
	}

	fmt.Fprintln(w)
	return nil
}

// probeFailures cuenta fallos de probes, excluyendo el setup failure
// que FailureCount también contabiliza.
func probeFailures(mr *domain.ModuleReport) int {
	n := 0
	for _, res := range mr.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}
