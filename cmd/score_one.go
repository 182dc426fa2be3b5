package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cascade-backflow/leadroute/internal/ingest"
	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/report"
)

var scoreOneCmd = &cobra.Command{
	Use:   "score-one",
	Short: "Score a single lead and print an analysis",
	Long: `Score one lead from its minimal fields. Facility type defaults to
"commercial" and source to "manual_input".

Example:
  score-one --name "Joe's Diner" --address "1510 Main St, Sumner, WA" --lat 47.1853 --lng -122.2928 --facility-type restaurant`,
	RunE: runScoreOne,
}

func init() {
	addScoreOneFlags(scoreOneCmd.Flags())
	for _, name := range []string{"name", "address", "lat", "lng"} {
		_ = scoreOneCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(scoreOneCmd)
}

func addScoreOneFlags(f *pflag.FlagSet) {
	f.String("name", "", "business name")
	f.String("address", "", "street address")
	f.Float64("lat", 0, "latitude in decimal degrees")
	f.Float64("lng", 0, "longitude in decimal degrees")
	f.String("facility-type", "", `facility type (default "commercial")`)
	f.Int("days-past-due", 0, "days past the test due date (negative = not yet due)")
	f.Int("devices", 0, "known backflow assembly count")
	f.String("size", "", "business size: small, medium, large or enterprise")
	f.String("phone", "", "phone number")
	f.String("email", "", "email address")
	f.String("website", "", "website URL")
	f.String("contact", "", "contact person")
	f.String("source", "", "lead source tag")
	f.String("id", "", "lead identifier (default: generated)")
	f.String("format", "text", "output format: text or json")
}

func leadFromFlags(f *pflag.FlagSet) model.RawLead {
	str := func(name string) string {
		v, _ := f.GetString(name)
		return v
	}
	optInt := func(name string) *int {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		return &v
	}
	optFloat := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}

	return model.RawLead{
		ID:            str("id"),
		BusinessName:  str("name"),
		Address:       str("address"),
		Latitude:      optFloat("lat"),
		Longitude:     optFloat("lng"),
		FacilityType:  str("facility-type"),
		DaysPastDue:   optInt("days-past-due"),
		DeviceCount:   optInt("devices"),
		BusinessSize:  model.BusinessSize(str("size")),
		Phone:         ingest.NormalizePhone(str("phone")),
		Email:         str("email"),
		Website:       str("website"),
		ContactPerson: str("contact"),
		Source:        str("source"),
	}
}

func runScoreOne(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("score"); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return eris.Errorf("score-one: unknown --format %q", format)
	}

	engine, err := newEngine(cfg.Engine)
	if err != nil {
		return err
	}

	lead, analysis, err := engine.Analyze(leadFromFlags(cmd.Flags()))
	if err != nil {
		return err
	}

	if format == "json" {
		return report.WriteJSON(cmd.OutOrStdout(), map[string]any{"lead": lead, "analysis": analysis})
	}
	writeAnalysis(cmd.OutOrStdout(), lead, analysis)
	return nil
}

// writeAnalysis prints the analysis and score breakdown of one lead.
func writeAnalysis(out io.Writer, l *model.ScoredLead, a *model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Lead:\t%s (%s)\n", l.BusinessName, l.ID)
	_, _ = fmt.Fprintf(w, "Score:\t%d\n", l.Score)
	_, _ = fmt.Fprintf(w, "Temperature:\t%s\n", a.Temperature)
	_, _ = fmt.Fprintf(w, "Priority:\t%s\n", a.Priority)
	_, _ = fmt.Fprintf(w, "Recommended:\t%s\n", a.RecommendedAction)
	_, _ = fmt.Fprintf(w, "Estimated value:\t%s (%d devices)\n", a.EstimatedValue, l.DeviceCount)
	_, _ = fmt.Fprintf(w, "Distance:\t%s\n", a.Distance)
	_, _ = fmt.Fprintf(w, "Cluster:\t%s, visit %s, %d min travel\n",
		l.Route.Cluster, l.Route.OptimalVisitTime, l.Route.TravelTimeMinutes)
	_, _ = fmt.Fprintln(w, "\t")

	b := l.Breakdown
	_, _ = fmt.Fprintf(w, "  compliance\t%d\n", b.Compliance)
	_, _ = fmt.Fprintf(w, "  business type\t%d\n", b.BusinessType)
	_, _ = fmt.Fprintf(w, "  revenue potential\t%d\n", b.RevenuePotential)
	_, _ = fmt.Fprintf(w, "  distance\t%d\n", b.Distance)
	_, _ = fmt.Fprintf(w, "  contact quality\t%d\n", b.ContactQuality)
	_, _ = fmt.Fprintf(w, "  urgency\t%d\n", b.Urgency)
	_, _ = fmt.Fprintf(w, "  competitive advantage\t%d\n", b.CompetitiveAdvantage)
	_, _ = fmt.Fprintf(w, "\nMessage:\t%s\n", l.ActionPlan.Message)
	for _, fu := range l.ActionPlan.FollowUpSchedule {
		_, _ = fmt.Fprintf(w, "  +%dd\t%s\n", fu.AfterDays, fu.Action)
	}
	_ = w.Flush()
}
