package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-backflow/leadroute/internal/geo"
	"github.com/cascade-backflow/leadroute/internal/model"
)

const (
	hubLat = 47.1853
	hubLng = -122.2928
)

var fixedNow = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(DefaultEngineConfig(), opts...)
}

// leadAt builds a minimal lead at the given coordinates.
func leadAt(id string, lat, lng float64) model.RawLead {
	return model.RawLead{
		ID:           id,
		BusinessName: "Business " + id,
		Address:      "100 Main St, Sumner, WA",
		FacilityType: "other",
		Latitude:     ptrFloat64(lat),
		Longitude:    ptrFloat64(lng),
		Source:       model.SourceManualInput,
		FoundAt:      "2026-03-01T08:00:00Z",
	}
}

// northOfHub returns the latitude that lies the given miles due north of the hub.
func northOfHub(miles float64) float64 {
	return hubLat + miles/geo.EarthRadiusMiles*180/math.Pi
}

func TestComplianceScore(t *testing.T) {
	tests := []struct {
		name string
		days *int
		want int
	}{
		{"absent", nil, 15},
		{"366 days", ptrInt(366), 35},
		{"365 days", ptrInt(365), 32},
		{"181 days", ptrInt(181), 32},
		{"180 days", ptrInt(180), 28},
		{"91 days", ptrInt(91), 28},
		{"90 days", ptrInt(90), 24},
		{"31 days", ptrInt(31), 24},
		{"30 days", ptrInt(30), 20},
		{"1 day", ptrInt(1), 20},
		{"current", ptrInt(0), 10},
		{"not yet due", ptrInt(-45), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, complianceScore(tt.days))
		})
	}
}

func TestNormalizeFacilityType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hospital", "hospital"},
		{"Medical Center", "medical_center"},
		{"  Office   Complex ", "office_complex"},
		{"FOOD_SERVICE", "food_service"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFacilityType(tt.in))
		})
	}
}

func TestBusinessTypeScore(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		facility string
		want     int
	}{
		{"hospital", 25},
		{"Medical Center", 24},
		{"restaurant", 23},
		{"nursing home", 22},
		{"commercial", 16},
		{"retail", 15},
		{"other", 12},
		{"bowling_alley", 12},
		{"", 12},
	}

	for _, tt := range tests {
		t.Run(tt.facility, func(t *testing.T) {
			assert.Equal(t, tt.want, e.businessTypeScore(NormalizeFacilityType(tt.facility)))
		})
	}
}

func TestEstimateDevices(t *testing.T) {
	tests := []struct {
		name     string
		count    *int
		size     model.BusinessSize
		facility string
		want     int
	}{
		{"explicit count", ptrInt(7), model.SizeEnterprise, "hospital", 7},
		{"zero count falls back", ptrInt(0), "", "hospital", 10},
		{"enterprise", nil, model.SizeEnterprise, "retail", 12},
		{"large", nil, model.SizeLarge, "retail", 8},
		{"medium", nil, model.SizeMedium, "retail", 4},
		{"size is case-insensitive", nil, "Large", "retail", 8},
		{"small uses facility", nil, model.SizeSmall, "restaurant", 3},
		{"unknown size uses facility", nil, "huge", "manufacturing", 10},
		{"hospital", nil, "", "hospital", 10},
		{"medical hospital substring", nil, "", "childrens_hospital", 10},
		{"office complex", nil, "", "office_complex", 3},
		{"commercial default", nil, "", "commercial", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateDevices(tt.count, tt.size, tt.facility))
		})
	}
}

func TestRevenueScore(t *testing.T) {
	tests := []struct {
		revenue float64
		want    int
	}{
		{5001, 20},
		{5000, 17},
		{3001, 17},
		{3000, 14},
		{2500, 14},
		{2000, 11},
		{1001, 11},
		{1000, 8},
		{750, 8},
		{500, 5},
		{0, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, revenueScore(tt.revenue), "revenue %v", tt.revenue)
	}
}

func TestDistanceScore(t *testing.T) {
	tests := []struct {
		miles float64
		want  int
	}{
		{0, 10},
		{3, 10},
		{3.01, 9},
		{7, 9},
		{12, 7},
		{18, 5},
		{25, 3},
		{25.5, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, distanceScore(tt.miles), "miles %v", tt.miles)
	}
}

func TestContactScore(t *testing.T) {
	tests := []struct {
		name string
		lead model.RawLead
		want int
	}{
		{"all three", model.RawLead{ContactPerson: "Pat", Phone: "253-555-0100", Email: "pat@example.com"}, 5},
		{"phone and email", model.RawLead{Phone: "253-555-0100", Email: "pat@example.com"}, 4},
		{"phone only", model.RawLead{Phone: "253-555-0100"}, 3},
		{"email and person", model.RawLead{ContactPerson: "Pat", Email: "pat@example.com"}, 3},
		{"website only", model.RawLead{Website: "https://example.com"}, 2},
		{"person only", model.RawLead{ContactPerson: "Pat"}, 1},
		{"blank strings", model.RawLead{Phone: "  ", Email: ""}, 1},
		{"none", model.RawLead{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contactScore(&tt.lead))
		})
	}
}

func TestUrgencyScore(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		facility string
		days     *int
		want     int
	}{
		{"monitor overdue", "compliance_monitor", "hospital", ptrInt(91), 3},
		{"monitor at 90", "compliance_monitor", "hospital", ptrInt(90), 1},
		{"monitor unknown days", "compliance_monitor", "hospital", nil, 1},
		{"scraper new business", "web_scraper", "new_business_retail", nil, 2},
		{"scraper established", "web_scraper", "retail", nil, 1},
		{"manual", "manual_input", "new_business", ptrInt(400), 1},
		{"unknown source", "referral", "hospital", ptrInt(400), 1},
		{"monitor upper case", "COMPLIANCE_MONITOR", "hospital", ptrInt(91), 3},
		{"monitor mixed case padded", " Compliance_Monitor ", "hospital", ptrInt(91), 3},
		{"scraper mixed case", "Web_Scraper", "new_business_retail", nil, 2},
		{"monitor spelled with space", "compliance monitor", "hospital", ptrInt(91), 1},
		{"monitor prefix only", "compliance", "hospital", ptrInt(91), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, urgencyScore(tt.source, tt.facility, tt.days))
		})
	}
}

func TestCompetitiveScore(t *testing.T) {
	assert.Equal(t, 2, competitiveScore(10, 20))
	assert.Equal(t, 1, competitiveScore(10, 19))
	assert.Equal(t, 1, competitiveScore(15, 25))
	assert.Equal(t, 0, competitiveScore(15.01, 25))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		days     *int
		wantTemp model.Temperature
		wantPri  model.Priority
	}{
		{"85 is hot", 85, nil, model.TemperatureHot, model.PriorityHigh},
		{"84 is warm", 84, nil, model.TemperatureWarm, model.PriorityMedium},
		{"60 is warm", 60, nil, model.TemperatureWarm, model.PriorityMedium},
		{"59 is cold", 59, nil, model.TemperatureCold, model.PriorityLow},
		{"hot urgent", 90, ptrInt(366), model.TemperatureHot, model.PriorityUrgent},
		{"hot at 365 days", 90, ptrInt(365), model.TemperatureHot, model.PriorityHigh},
		{"warm high", 70, ptrInt(181), model.TemperatureWarm, model.PriorityHigh},
		{"warm at 180 days", 70, ptrInt(180), model.TemperatureWarm, model.PriorityMedium},
		{"cold ignores days", 20, ptrInt(900), model.TemperatureCold, model.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			temp, pri := Classify(tt.score, tt.days)
			assert.Equal(t, tt.wantTemp, temp)
			assert.Equal(t, tt.wantPri, pri)
		})
	}
}

func TestScore_OverdueHospitalAtHub(t *testing.T) {
	e := newTestEngine()
	lead := leadAt("h1", hubLat, hubLng)
	lead.FacilityType = "hospital"
	lead.DaysPastDue = ptrInt(400)
	lead.ContactPerson = "Dana Reyes"
	lead.Phone = "253-555-0142"
	lead.Email = "facilities@goodsam.example"
	lead.Source = model.SourceComplianceMonitor

	got, err := e.Score(lead)
	require.NoError(t, err)

	assert.Equal(t, model.ScoringBreakdown{
		Compliance:           35,
		BusinessType:         25,
		RevenuePotential:     14,
		Distance:             10,
		ContactQuality:       5,
		Urgency:              3,
		CompetitiveAdvantage: 2,
	}, got.Breakdown)
	assert.Equal(t, 94, got.Score)
	assert.Equal(t, got.Breakdown.Total(), got.Score)
	assert.Equal(t, model.TemperatureHot, got.Temperature)
	assert.Equal(t, model.PriorityUrgent, got.Priority)
	assert.Equal(t, 10, got.DeviceCount)
	assert.InDelta(t, 2500.0, got.EstimatedValue, 1e-9)
	assert.InDelta(t, 0.0, got.DistanceMiles, 1e-9)
	assert.Equal(t, model.ContactPhone, got.ActionPlan.ContactMethod)
	assert.Equal(t, Timeframe24h, got.ActionPlan.Timeframe)
	assert.Equal(t, "09:00", got.Route.OptimalVisitTime)
	assert.Equal(t, 0, got.Route.TravelTimeMinutes)
	assert.Equal(t, fixedNow, got.GeneratedAt)
	assert.Equal(t, "2026-03-01T08:00:00Z", got.FoundAt)
}

func TestScore_PassthroughFields(t *testing.T) {
	e := newTestEngine()
	lead := leadAt("p1", hubLat, hubLng)
	lead.ComplianceStatus = "Overdue - second notice"
	lead.LastTestDate = "2024-05-01"
	lead.TestDueDate = "2025-05-01"
	lead.Website = "https://example.com"
	lead.DaysPastDue = ptrInt(12)

	got, err := e.Score(lead)
	require.NoError(t, err)

	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, lead.BusinessName, got.BusinessName)
	assert.Equal(t, lead.Address, got.Address)
	assert.Equal(t, lead.ComplianceStatus, got.ComplianceStatus)
	assert.Equal(t, lead.LastTestDate, got.LastTestDate)
	assert.Equal(t, lead.TestDueDate, got.TestDueDate)
	assert.Equal(t, lead.Website, got.Website)
	require.NotNil(t, got.DaysPastDue)
	assert.Equal(t, 12, *got.DaysPastDue)

	// The scored lead does not alias the input.
	*lead.DaysPastDue = 99
	assert.Equal(t, 12, *got.DaysPastDue)
}

func TestScore_MinimalLeadIsTotal(t *testing.T) {
	e := newTestEngine()
	facilities := []string{"hospital", "retail", "", "new business", "Unknown Thing", "office complex"}
	sources := []string{"", model.SourceComplianceMonitor, model.SourceWebScraper, "other"}

	for _, facility := range facilities {
		for _, source := range sources {
			lead := leadAt("m", hubLat, hubLng)
			lead.FacilityType = facility
			lead.Source = source

			got, err := e.Score(lead)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Score, 0)
			assert.LessOrEqual(t, got.Score, 87, "facility=%q source=%q", facility, source)
			assert.Equal(t, got.Breakdown.Total(), got.Score)
		}
	}
}

func TestScore_MissingCoordinates(t *testing.T) {
	e := newTestEngine()
	lead := leadAt("x", hubLat, hubLng)
	lead.Longitude = nil

	_, err := e.Score(lead)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	lead.Longitude = ptrFloat64(math.NaN())
	_, err = e.Score(lead)
	assert.True(t, IsInvalidInput(err))
}

func TestScore_Deterministic(t *testing.T) {
	e := newTestEngine()
	lead := leadAt("d1", 47.25, -122.20)
	lead.FacilityType = "Restaurant"
	lead.DaysPastDue = ptrInt(45)
	lead.Email = "owner@diner.example"

	first, err := e.Score(lead)
	require.NoError(t, err)
	second, err := e.Score(lead)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScore_OutsideRadiusStillScored(t *testing.T) {
	e := newTestEngine()
	lead := leadAt("far", northOfHub(22), hubLng)
	lead.FacilityType = "retail"

	got, err := e.Score(lead)
	require.NoError(t, err)
	assert.InDelta(t, 22.0, got.DistanceMiles, 0.01)
	assert.Equal(t, 3, got.Breakdown.Distance)
	assert.Equal(t, 0, got.Breakdown.CompetitiveAdvantage)
	assert.Equal(t, model.TemperatureCold, got.Temperature)
}

func TestWithTables_OverridesFacilityScores(t *testing.T) {
	tables := DefaultTables()
	tables.FacilityScores["brewery"] = 21

	e := newTestEngine(WithTables(tables))
	assert.Equal(t, 21, e.businessTypeScore("brewery"))

	// The engine keeps its own copy.
	tables.FacilityScores["brewery"] = 1
	assert.Equal(t, 21, e.businessTypeScore("brewery"))
}
