package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// leadStatus records what happened to one input lead.
type leadStatus int

const (
	statusKept leadStatus = iota
	statusMissingCoords
	statusOutOfRadius
	statusFiltered
	statusFailed
)

// outcome is the independent result of evaluating one lead.
type outcome struct {
	status leadStatus
	lead   model.ScoredLead
}

// batchParams are BatchOptions resolved against the engine defaults.
type batchParams struct {
	minScore    int
	maxResults  int
	temperature model.Temperature
	sortBy      model.SortBy
	concurrency int
}

// ResolveOptions validates opts and fills unset values from the engine
// configuration. The returned options have every field set.
func (e *Engine) ResolveOptions(opts model.BatchOptions) (model.BatchOptions, error) {
	p, err := e.resolve(opts)
	if err != nil {
		return model.BatchOptions{}, err
	}
	minScore := p.minScore
	return model.BatchOptions{
		MinScore:          &minScore,
		MaxResults:        p.maxResults,
		TemperatureFilter: p.temperature,
		SortBy:            p.sortBy,
		Concurrency:       p.concurrency,
	}, nil
}

func (e *Engine) resolve(opts model.BatchOptions) (batchParams, error) {
	p := batchParams{
		minScore:    e.cfg.MinScore,
		maxResults:  e.cfg.MaxResults,
		sortBy:      model.SortBy(e.cfg.SortBy),
		concurrency: e.cfg.Concurrency,
	}
	if opts.MinScore != nil {
		p.minScore = *opts.MinScore
	}
	if opts.MaxResults < 0 {
		return p, invalidInput("scorer: maxResults must be >= 0, got %d", opts.MaxResults)
	}
	if opts.MaxResults > 0 {
		p.maxResults = opts.MaxResults
	}
	if opts.TemperatureFilter != "" {
		p.temperature = model.Temperature(strings.ToUpper(strings.TrimSpace(string(opts.TemperatureFilter))))
		if !p.temperature.Valid() {
			return p, invalidInput("scorer: unknown temperature filter %q", opts.TemperatureFilter)
		}
	}
	if opts.SortBy != "" {
		p.sortBy = model.SortBy(strings.ToLower(strings.TrimSpace(string(opts.SortBy))))
	}
	if p.sortBy == "" {
		p.sortBy = model.SortByScore
	}
	if !p.sortBy.Valid() {
		return p, invalidInput("scorer: unknown sortBy %q", p.sortBy)
	}
	if opts.Concurrency > 0 {
		p.concurrency = opts.Concurrency
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p, nil
}

// ScoreBatch scores every lead within the service radius, filters by
// score and temperature, sorts, and truncates. A malformed lead is skipped
// and counted, never fatal; only invalid options, an empty input or a
// cancelled context fail the call.
func (e *Engine) ScoreBatch(ctx context.Context, leads []model.RawLead, opts model.BatchOptions) (*model.BatchResult, error) {
	start := time.Now()

	if len(leads) == 0 {
		return nil, invalidInput("scorer: leads must be a non-empty list")
	}
	p, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}

	now := e.now()
	outcomes := make([]outcome, len(leads))

	if p.concurrency == 1 {
		for i := range leads {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "scorer: batch cancelled")
			}
			outcomes[i] = e.evaluate(&leads[i], p, now)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for i := range leads {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.evaluate(&leads[i], p, now)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "scorer: batch cancelled")
		}
	}

	stats, kept := foldOutcomes(outcomes)
	sortLeads(kept, p.sortBy)
	if p.maxResults > 0 && len(kept) > p.maxResults {
		kept = kept[:p.maxResults]
	}
	stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	zap.L().Info("scorer: batch scoring complete",
		zap.Int("input", stats.TotalInput),
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("returned", len(kept)),
		zap.Int("hot", stats.HotLeads),
		zap.Int("failed", stats.Failed),
		zap.Int64("ms", stats.ProcessingTimeMs),
	)

	return &model.BatchResult{Stats: stats, Leads: kept}, nil
}

// evaluate scores one lead in isolation. A panic while scoring is logged
// and reported as a failed outcome.
func (e *Engine) evaluate(lead *model.RawLead, p batchParams, now time.Time) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("scorer: lead scoring panicked, skipping",
				zap.String("id", lead.ID),
				zap.String("panic", fmt.Sprint(r)),
			)
			out = outcome{status: statusFailed}
		}
	}()

	if lead.DecodeError != "" {
		return outcome{status: statusFailed}
	}
	if !lead.HasCoordinates() {
		return outcome{status: statusMissingCoords}
	}
	distance, _ := e.Distance(lead)
	if distance > e.cfg.ServiceRadiusMiles {
		return outcome{status: statusOutOfRadius}
	}

	scored, err := e.scoreAt(lead, distance, now)
	if err != nil {
		zap.L().Warn("scorer: lead scoring failed, skipping", zap.String("id", lead.ID), zap.Error(err))
		return outcome{status: statusFailed}
	}
	if scored.Score < p.minScore {
		return outcome{status: statusFiltered}
	}
	if p.temperature != "" && scored.Temperature != p.temperature {
		return outcome{status: statusFiltered}
	}
	return outcome{status: statusKept, lead: scored}
}

// foldOutcomes reduces independent outcomes into batch statistics and the
// kept leads, in input order.
func foldOutcomes(outcomes []outcome) (model.BatchStats, []model.ScoredLead) {
	stats := model.BatchStats{TotalInput: len(outcomes), Clusters: map[string]int{}}
	kept := make([]model.ScoredLead, 0, len(outcomes))
	scoreSum := 0

	for _, o := range outcomes {
		switch o.status {
		case statusMissingCoords:
			stats.SkippedMissingCoords++
			continue
		case statusOutOfRadius:
			stats.SkippedOutOfRadius++
			continue
		case statusFiltered:
			stats.FilteredOut++
			continue
		case statusFailed:
			stats.Failed++
			continue
		}

		l := o.lead
		kept = append(kept, l)
		scoreSum += l.Score
		stats.TotalEstimatedRevenue += l.EstimatedValue
		stats.Clusters[l.Route.Cluster]++
		switch l.Temperature {
		case model.TemperatureHot:
			stats.HotLeads++
		case model.TemperatureWarm:
			stats.WarmLeads++
		case model.TemperatureCold:
			stats.ColdLeads++
		}
		if l.Priority == model.PriorityUrgent {
			stats.UrgentLeads++
		}
	}

	stats.TotalProcessed = len(kept)
	if len(kept) > 0 {
		stats.AvgScore = math.Round(float64(scoreSum)/float64(len(kept))*100) / 100
	}
	return stats, kept
}

// sortLeads orders leads in place. The sort is stable so equal keys keep
// input order.
func sortLeads(leads []model.ScoredLead, by model.SortBy) {
	var less func(a, b *model.ScoredLead) bool
	switch by {
	case model.SortByDistance:
		less = func(a, b *model.ScoredLead) bool { return a.DistanceMiles < b.DistanceMiles }
	case model.SortByValue:
		less = func(a, b *model.ScoredLead) bool { return a.EstimatedValue > b.EstimatedValue }
	case model.SortByUrgency:
		less = func(a, b *model.ScoredLead) bool { return a.Priority.Rank() > b.Priority.Rank() }
	default:
		less = func(a, b *model.ScoredLead) bool { return a.Score > b.Score }
	}
	sort.SliceStable(leads, func(i, j int) bool { return less(&leads[i], &leads[j]) })
}
