package scorer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// DefaultFacilityType is assumed when a single-lead request omits one.
const DefaultFacilityType = "commercial"

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders a dollar amount with thousands separators ("$2,500").
func FormatCurrency(v float64) string {
	return printer.Sprintf("$%d", roundCurrency(v))
}

// FormatMiles renders a distance to two decimals ("3.25 miles").
func FormatMiles(d float64) string {
	return fmt.Sprintf("%.2f miles", d)
}

// Analyze scores one manually entered lead and summarizes the result.
// businessName, address, latitude and longitude are required; the facility
// type defaults to commercial and the source to manual_input.
func (e *Engine) Analyze(lead model.RawLead) (*model.ScoredLead, *model.Analysis, error) {
	var missing []string
	if !present(lead.BusinessName) {
		missing = append(missing, "businessName")
	}
	if !present(lead.Address) {
		missing = append(missing, "address")
	}
	if lead.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if lead.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return nil, nil, invalidInput("scorer: missing required fields: %s", strings.Join(missing, ", "))
	}

	if !present(lead.FacilityType) {
		lead.FacilityType = DefaultFacilityType
	}
	if !present(lead.Source) {
		lead.Source = model.SourceManualInput
	}
	if !present(lead.ID) {
		lead.ID = uuid.NewString()
	}

	scored, err := e.Score(lead)
	if err != nil {
		return nil, nil, err
	}
	if scored.FoundAt == "" {
		scored.FoundAt = scored.GeneratedAt.UTC().Format(time.RFC3339)
	}

	return &scored, Summarize(&scored), nil
}

// Summarize builds the human-readable analysis of a scored lead.
func Summarize(l *model.ScoredLead) *model.Analysis {
	return &model.Analysis{
		Temperature:       l.Temperature,
		Priority:          l.Priority,
		RecommendedAction: fmt.Sprintf("%s within %s", l.ActionPlan.ContactMethod, l.ActionPlan.Timeframe),
		EstimatedValue:    FormatCurrency(l.EstimatedValue),
		Distance:          FormatMiles(l.DistanceMiles),
	}
}
