package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/report"
	"github.com/cascade-backflow/leadroute/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved scoring runs",
	Long:  "Commands for listing saved batch runs and viewing their leads.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's summary and leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if !report.ValidFormat(format) {
			return eris.Errorf("runs show: unknown --format %q", format)
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		temp, _ := cmd.Flags().GetString("temperature")
		cluster, _ := cmd.Flags().GetString("cluster")
		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := st.ListRunLeads(ctx, run.ID, store.LeadFilter{
			Temperature: model.Temperature(temp),
			Cluster:     cluster,
			Limit:       limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		return report.Write(cmd.OutOrStdout(), format, &model.BatchResult{Stats: run.Stats, Leads: leads})
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsShowCmd.Flags().String("format", report.FormatTable, "output format: table, csv, json, xlsx or geojson")
	runsShowCmd.Flags().String("temperature", "", "only show leads of this temperature (HOT, WARM, COLD)")
	runsShowCmd.Flags().String("cluster", "", "only show leads in this visit cluster")
	runsShowCmd.Flags().Int("limit", 0, "max number of leads to display (0=all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tINPUT\tKEPT\tHOT\tWARM\tCOLD\tAVG\tREVENUE")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t----\t---\t----\t----\t---\t-------")

	for _, r := range runs {
		s := r.Stats
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1f\t%.0f\n",
			truncateID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			s.TotalInput,
			s.TotalProcessed,
			s.HotLeads,
			s.WarmLeads,
			s.ColdLeads,
			s.AvgScore,
			s.TotalEstimatedRevenue,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
