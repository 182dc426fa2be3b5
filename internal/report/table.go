package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/scorer"
)

// WriteTable prints leads as an aligned text table.
func WriteTable(w io.Writer, leads []model.ScoredLead) error {
	if len(leads) == 0 {
		_, err := fmt.Fprintln(w, "No leads matched.")
		return eris.Wrap(err, "report: write table")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSCORE\tTEMP\tPRIORITY\tBUSINESS\tFACILITY\tMILES\tVALUE\tCONTACT\tCLUSTER\tVISIT")
	for i := range leads {
		l := &leads[i]
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s/%s\t%s\t%s\n",
			i+1,
			l.Score,
			l.Temperature,
			l.Priority,
			truncate(l.BusinessName, 32),
			truncate(l.FacilityType, 18),
			l.DistanceMiles,
			scorer.FormatCurrency(l.EstimatedValue),
			l.ActionPlan.ContactMethod,
			l.ActionPlan.Timeframe,
			l.Route.Cluster,
			l.Route.OptimalVisitTime,
		)
	}
	return eris.Wrap(tw.Flush(), "report: flush table")
}

// WriteSummary prints batch statistics.
func WriteSummary(w io.Writer, s model.BatchStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Input leads:\t%d\n", s.TotalInput)
	_, _ = fmt.Fprintf(tw, "Processed:\t%d\n", s.TotalProcessed)
	_, _ = fmt.Fprintf(tw, "Hot / Warm / Cold:\t%d / %d / %d\n", s.HotLeads, s.WarmLeads, s.ColdLeads)
	_, _ = fmt.Fprintf(tw, "Urgent:\t%d\n", s.UrgentLeads)
	_, _ = fmt.Fprintf(tw, "Average score:\t%.2f\n", s.AvgScore)
	_, _ = fmt.Fprintf(tw, "Estimated revenue:\t%s\n", scorer.FormatCurrency(s.TotalEstimatedRevenue))
	_, _ = fmt.Fprintf(tw, "Skipped (no coords / out of radius):\t%d / %d\n", s.SkippedMissingCoords, s.SkippedOutOfRadius)
	_, _ = fmt.Fprintf(tw, "Filtered / failed:\t%d / %d\n", s.FilteredOut, s.Failed)
	if len(s.Clusters) > 0 {
		names := make([]string, 0, len(s.Clusters))
		for name := range s.Clusters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(tw, "Cluster %s:\t%d\n", name, s.Clusters[name])
		}
	}
	_, _ = fmt.Fprintf(tw, "Processing time:\t%dms\n\n", s.ProcessingTimeMs)
	return eris.Wrap(tw.Flush(), "report: flush summary")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func itoa(v int) string { return strconv.Itoa(v) }
