package scorer

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/geo"
	"github.com/cascade-backflow/leadroute/internal/model"
)

// Classification thresholds. Ties resolve to the higher bracket.
const (
	HotThreshold  = 85
	WarmThreshold = 60
)

// Engine scores leads against a fixed service hub and lookup tables.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	cfg    config.EngineConfig
	hub    geo.Point
	tables Tables
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTables replaces the built-in lookup tables.
func WithTables(t Tables) Option {
	return func(e *Engine) { e.tables = t.clone() }
}

// WithClock sets the clock used for generatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine for the given configuration.
func NewEngine(cfg config.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		hub:    geo.Point{Lat: cfg.HubLat, Lng: cfg.HubLng},
		tables: DefaultTables(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() config.EngineConfig { return e.cfg }

// Hub returns the service hub.
func (e *Engine) Hub() geo.Point { return e.hub }

// Distance returns the great-circle distance in miles from the hub to the lead.
func (e *Engine) Distance(lead *model.RawLead) (float64, error) {
	if !lead.HasCoordinates() {
		return 0, invalidInput("scorer: lead %q has no usable coordinates", lead.ID)
	}
	return e.hub.Distance(geo.Point{Lat: *lead.Latitude, Lng: *lead.Longitude}), nil
}

// Score scores a single lead regardless of the service radius. Only missing
// coordinates are rejected; every other field falls back to a default.
func (e *Engine) Score(lead model.RawLead) (model.ScoredLead, error) {
	distance, err := e.Distance(&lead)
	if err != nil {
		return model.ScoredLead{}, err
	}
	scored, err := e.scoreAt(&lead, distance, e.now())
	if err != nil {
		return model.ScoredLead{}, err
	}

	zap.L().Debug("scorer: scored lead",
		zap.String("id", scored.ID),
		zap.Int("score", scored.Score),
		zap.String("temperature", string(scored.Temperature)),
	)
	return scored, nil
}

// scoreAt builds the scored lead for a known hub distance.
func (e *Engine) scoreAt(lead *model.RawLead, distance float64, now time.Time) (model.ScoredLead, error) {
	facility := NormalizeFacilityType(lead.FacilityType)
	devices := estimateDevices(lead.DeviceCount, lead.BusinessSize, facility)
	value := float64(devices) * e.cfg.PerDeviceRate

	bt := e.businessTypeScore(facility)
	breakdown := model.ScoringBreakdown{
		Compliance:           complianceScore(lead.DaysPastDue),
		BusinessType:         bt,
		RevenuePotential:     revenueScore(value),
		Distance:             distanceScore(distance),
		ContactQuality:       contactScore(lead),
		Urgency:              urgencyScore(lead.Source, facility, lead.DaysPastDue),
		CompetitiveAdvantage: competitiveScore(distance, bt),
	}
	score := breakdown.Total()
	temperature, priority := Classify(score, lead.DaysPastDue)

	plan, err := PlanAction(temperature, priority, lead)
	if err != nil {
		return model.ScoredLead{}, err
	}

	return model.ScoredLead{
		ID:               lead.ID,
		BusinessName:     lead.BusinessName,
		Address:          lead.Address,
		Phone:            lead.Phone,
		Email:            lead.Email,
		Website:          lead.Website,
		ContactPerson:    lead.ContactPerson,
		FacilityType:     lead.FacilityType,
		ComplianceStatus: lead.ComplianceStatus,
		LastTestDate:     lead.LastTestDate,
		TestDueDate:      lead.TestDueDate,
		DaysPastDue:      copyInt(lead.DaysPastDue),
		Latitude:         *lead.Latitude,
		Longitude:        *lead.Longitude,
		Source:           lead.Source,
		FoundAt:          lead.FoundAt,
		Temperature:      temperature,
		Score:            score,
		Priority:         priority,
		EstimatedValue:   value,
		DistanceMiles:    geo.RoundMiles(distance),
		DeviceCount:      devices,
		Breakdown:        breakdown,
		ActionPlan:       plan,
		Route:            e.OptimizeRoute(lead, distance),
		GeneratedAt:      now,
	}, nil
}

// NormalizeFacilityType lower-cases a facility type and joins its words
// with underscores ("Medical  Center" -> "medical_center").
func NormalizeFacilityType(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// complianceScore grades how overdue the backflow test is (max 35).
func complianceScore(daysPastDue *int) int {
	if daysPastDue == nil {
		return 15
	}
	d := *daysPastDue
	switch {
	case d > 365:
		return 35
	case d > 180:
		return 32
	case d > 90:
		return 28
	case d > 30:
		return 24
	case d > 0:
		return 20
	default:
		return 10
	}
}

// businessTypeScore looks up the normalized facility type (max 25).
func (e *Engine) businessTypeScore(facility string) int {
	if score, ok := e.tables.FacilityScores[facility]; ok {
		return score
	}
	return e.tables.DefaultFacilityScore
}

// estimateDevices returns the supplied device count or an estimate from
// business size, then facility type.
func estimateDevices(deviceCount *int, size model.BusinessSize, facility string) int {
	if deviceCount != nil && *deviceCount > 0 {
		return *deviceCount
	}

	switch model.BusinessSize(strings.ToLower(strings.TrimSpace(string(size)))) {
	case model.SizeEnterprise:
		return 12
	case model.SizeLarge:
		return 8
	case model.SizeMedium:
		return 4
	}

	switch {
	case strings.Contains(facility, "hospital"), strings.Contains(facility, "manufacturing"):
		return 10
	case strings.Contains(facility, "restaurant"), strings.Contains(facility, "office"):
		return 3
	default:
		return 2
	}
}

// revenueScore grades estimated annual testing revenue (max 20).
func revenueScore(revenue float64) int {
	switch {
	case revenue > 5000:
		return 20
	case revenue > 3000:
		return 17
	case revenue > 2000:
		return 14
	case revenue > 1000:
		return 11
	case revenue > 500:
		return 8
	default:
		return 5
	}
}

// distanceScore grades proximity to the hub (max 10).
func distanceScore(miles float64) int {
	switch {
	case miles <= 3:
		return 10
	case miles <= 7:
		return 9
	case miles <= 12:
		return 7
	case miles <= 18:
		return 5
	case miles <= 25:
		return 3
	default:
		return 1
	}
}

// contactScore grades how reachable the lead is (max 5).
func contactScore(lead *model.RawLead) int {
	person := present(lead.ContactPerson)
	phone := present(lead.Phone)
	email := present(lead.Email)

	switch {
	case person && phone && email:
		return 5
	case phone && email:
		return 4
	case phone || email:
		return 3
	case present(lead.Website):
		return 2
	default:
		return 1
	}
}

// urgencyScore rewards lead sources that signal an immediate need (max 3).
func urgencyScore(source, facility string, daysPastDue *int) int {
	source = strings.TrimSpace(source)
	switch {
	case strings.EqualFold(source, model.SourceComplianceMonitor) && daysPastDue != nil && *daysPastDue > 90:
		return 3
	case strings.EqualFold(source, model.SourceWebScraper) && strings.Contains(facility, "new_business"):
		return 2
	default:
		return 1
	}
}

// competitiveScore rewards nearby high-value facilities (max 2).
func competitiveScore(miles float64, businessType int) int {
	switch {
	case miles <= 10 && businessType >= 20:
		return 2
	case miles <= 15:
		return 1
	default:
		return 0
	}
}

// Classify maps a score and overdue days to a temperature and priority.
func Classify(score int, daysPastDue *int) (model.Temperature, model.Priority) {
	overdue := 0
	if daysPastDue != nil {
		overdue = *daysPastDue
	}

	switch {
	case score >= HotThreshold:
		if overdue > 365 {
			return model.TemperatureHot, model.PriorityUrgent
		}
		return model.TemperatureHot, model.PriorityHigh
	case score >= WarmThreshold:
		if overdue > 180 {
			return model.TemperatureWarm, model.PriorityHigh
		}
		return model.TemperatureWarm, model.PriorityMedium
	default:
		return model.TemperatureCold, model.PriorityLow
	}
}

func present(s string) bool { return strings.TrimSpace(s) != "" }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// roundCurrency rounds a currency amount to whole dollars.
func roundCurrency(v float64) int64 {
	return int64(math.Round(v))
}
