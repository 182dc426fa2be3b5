package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/ingest"
	"github.com/cascade-backflow/leadroute/internal/model"
	"github.com/cascade-backflow/leadroute/internal/report"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a batch of leads from a file, URL or stdin",
	Long: `Score a batch of raw leads and print the ranked, routed result.

Leads are read from CSV, JSON (array) or XLSX. The format is detected from
the file extension unless --input-format is given; "-" reads stdin (JSON
by default). http(s) URLs are downloaded with per-host rate limiting.

Leads without coordinates or outside the service radius are skipped and
counted in the summary.

Examples:
  # Score a CSV export, hottest first
  score --input leads.csv

  # Only overdue-urgent work, closest first, as CSV
  score --input leads.json --temperature hot --sort-by distance --format csv --output hot.csv

  # Export a map layer and keep the run
  score --input leads.xlsx --format geojson --output leads.geojson --save

  # Pipe JSON in
  cat leads.json | score --input -`,
	RunE: runScore,
}

func init() {
	addScoreFlags(scoreCmd.Flags())
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

func addScoreFlags(f *pflag.FlagSet) {
	f.String("input", "", `lead source: file path, http(s) URL, or "-" for stdin`)
	f.String("input-format", "", "input format override: csv, json or xlsx")
	f.String("delimiter", ",", `CSV field delimiter (a single character, "\t" for tab)`)
	f.String("comment", "", "CSV comment character; lines starting with it are ignored")
	f.Int("min-score", 0, "minimum score to keep (default from config)")
	f.Int("max-results", 0, "maximum leads returned (0=use config default)")
	f.String("temperature", "", "only keep leads of this temperature: hot, warm or cold")
	f.String("sort-by", "", "sort order: score, distance, value or urgency (default from config)")
	f.Int("concurrency", 0, "parallel scoring workers (0=use config default)")
	f.String("format", report.FormatTable, "output format: table, csv, json, xlsx or geojson")
	f.String("output", "", "output file path (default: stdout)")
	f.Bool("save", false, "save the run to the configured store")
}

// scoreParams are the resolved inputs of a score run.
type scoreParams struct {
	Input       string
	InputFormat string
	CSV         ingest.CSVOptions
	Format      string
	Output      string
	Save        bool
	Options     model.BatchOptions
}

func scoreParamsFromFlags(f *pflag.FlagSet) (scoreParams, error) {
	var p scoreParams
	p.Input, _ = f.GetString("input")
	p.InputFormat, _ = f.GetString("input-format")
	p.Format, _ = f.GetString("format")
	p.Output, _ = f.GetString("output")
	p.Save, _ = f.GetBool("save")

	if !report.ValidFormat(p.Format) {
		return p, eris.Errorf("score: unknown --format %q", p.Format)
	}

	delimiter, _ := f.GetString("delimiter")
	comment, _ := f.GetString("comment")
	var err error
	if p.CSV.Delimiter, err = csvRune("delimiter", delimiter); err != nil {
		return p, err
	}
	if comment != "" {
		if p.CSV.Comment, err = csvRune("comment", comment); err != nil {
			return p, err
		}
		if p.CSV.Comment == p.CSV.Delimiter {
			return p, eris.New("score: --comment must differ from --delimiter")
		}
	}

	if f.Changed("min-score") {
		v, _ := f.GetInt("min-score")
		p.Options.MinScore = &v
	}
	p.Options.MaxResults, _ = f.GetInt("max-results")
	temp, _ := f.GetString("temperature")
	p.Options.TemperatureFilter = model.Temperature(temp)
	sortBy, _ := f.GetString("sort-by")
	p.Options.SortBy = model.SortBy(sortBy)
	p.Options.Concurrency, _ = f.GetInt("concurrency")
	return p, nil
}

// csvRune parses a single-character CSV flag value.
func csvRune(flag, v string) (rune, error) {
	if v == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if size == 0 || size != len(v) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, eris.Errorf("score: --%s must be a single character, got %q", flag, v)
	}
	return r, nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	p, err := scoreParamsFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	return scoreLeads(ctx, cfg, p, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// scoreLeads loads, scores, optionally saves and renders one batch. The
// report goes to p.Output when set, otherwise to out.
func scoreLeads(ctx context.Context, c *config.Config, p scoreParams, stdin io.Reader, out, errOut io.Writer) error {
	log := zap.L().With(zap.String("command", "score"))

	engine, err := newEngine(c.Engine)
	if err != nil {
		return err
	}

	leads, err := ingest.LoadLeads(ctx, p.Input, ingest.LoadOptions{Format: p.InputFormat, Stdin: stdin, CSV: p.CSV})
	if err != nil {
		return err
	}

	res, err := engine.ScoreBatch(ctx, leads, p.Options)
	if err != nil {
		return err
	}

	if p.Save {
		runID, err := saveRun(ctx, c, engine.ResolveOptions, p.Options, res)
		if err != nil {
			return err
		}
		log.Info("run saved", zap.String("run_id", runID))
		_, _ = fmt.Fprintf(errOut, "Saved run %s\n", runID)
	}

	return writeReport(p.Output, out, p.Format, res)
}

// writeReport renders res to path, or to out when path is empty. The file
// is created only once there is a result, so a failed run leaves an
// existing report in place.
func writeReport(path string, out io.Writer, format string, res *model.BatchResult) error {
	if path == "" {
		return report.Write(out, format, res)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "score: create %s", path)
	}
	if err := report.Write(file, format, res); err != nil {
		_ = file.Close()
		return err
	}
	return eris.Wrapf(file.Close(), "score: close %s", path)
}

func saveRun(
	ctx context.Context,
	c *config.Config,
	resolve func(model.BatchOptions) (model.BatchOptions, error),
	opts model.BatchOptions,
	res *model.BatchResult,
) (string, error) {
	resolved, err := resolve(opts)
	if err != nil {
		return "", err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	run := &model.Run{Options: resolved, Stats: res.Stats, Leads: res.Leads}
	if err := st.SaveRun(ctx, run); err != nil {
		return "", eris.Wrap(err, "score: save run")
	}
	return run.ID, nil
}
