package propagate

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Degraded lists the history keys whose values diverge between a nominal
// baseline run and a faulty run. Keys present in only one history count as
// degraded.
func Degraded(nominal, res Result) []string {
	if nominal.History == nil || res.History == nil {
		return nil
	}
	return nominal.History.Diff(res.History)
}

// WriteTable renders a batch of results as a failure-modes-and-effects table:
// one row per scenario sorted by expected cost, end faults and degraded-key
// counts against the nominal baseline when one is present. Failed runs are
// listed below the table with their errors.
func WriteTable(w io.Writer, results []Result) error {
	var nominal *Result
	for i := range results {
		if results[i].Scenario.Name == "nominal" && !results[i].Failed() {
			nominal = &results[i]
			break
		}
	}

	var rows []Result
	var failed []Result
	for _, res := range results {
		switch {
		case res.Failed():
			failed = append(failed, res)
		case res.Scenario.Name == "nominal":
		default:
			rows = append(rows, res)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Classification.ExpectedCost > rows[j].Classification.ExpectedCost
	})

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "scenario\trate\tcost\texpected\tend faults\tdegraded")
	for _, res := range rows {
		degraded := "-"
		if nominal != nil {
			degraded = fmt.Sprintf("%d", len(Degraded(*nominal, res)))
		}
		fmt.Fprintf(tw, "%s\t%.3g\t%.4g\t%.6g\t%s\t%s\n",
			res.Scenario.Name,
			res.Scenario.Rate,
			res.Classification.Cost,
			res.Classification.ExpectedCost,
			formatFaults(res.EndFaults),
			degraded,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range failed {
		if _, err := fmt.Fprintf(w, "FAILED %s: %v\n", res.Scenario.Name, res.Err); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total expected cost: %.6g\n", ExpectedCost(results))
	return err
}

func formatFaults(faults map[string][]string) string {
	if len(faults) == 0 {
		return "-"
	}
	blocks := make([]string, 0, len(faults))
	for b := range faults {
		blocks = append(blocks, b)
	}
	sort.Strings(blocks)
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b+":"+strings.Join(faults[b], "|"))
	}
	return strings.Join(parts, " ")
}
