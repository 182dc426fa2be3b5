// Package scorer implements lead scoring, outreach planning and territory
// routing for backflow-testing prospects.
package scorer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cascade-backflow/leadroute/internal/config"
)

// DefaultFacilityScore applies to facility types missing from the table.
const DefaultFacilityScore = 12

// DefaultVisitTime applies when no visit-time rule matches.
const DefaultVisitTime = "10:00"

// VisitTimeRule maps a facility-type substring to a preferred arrival time.
type VisitTimeRule struct {
	Contains string `yaml:"contains"`
	Time     string `yaml:"time"`
}

// Tables holds the lookup tables used by the scorer and route optimizer.
// Visit-time rules are evaluated in order; the first match wins.
type Tables struct {
	FacilityScores       map[string]int  `yaml:"facility_scores"`
	DefaultFacilityScore int             `yaml:"default_facility_score"`
	VisitTimes           []VisitTimeRule `yaml:"visit_times"`
	DefaultVisitTime     string          `yaml:"default_visit_time"`
}

// DefaultTables returns the built-in facility-type and visit-time tables.
func DefaultTables() Tables {
	return Tables{
		FacilityScores: map[string]int{
			// Healthcare.
			"hospital":       25,
			"medical_center": 24,
			"clinic":         22,
			"dental_office":  20,
			"nursing_home":   22,

			// Food service.
			"restaurant":   23,
			"food_service": 22,
			"cafeteria":    20,
			"bakery":       19,

			// Industrial.
			"manufacturing": 21,
			"industrial":    21,
			"processing":    20,
			"warehouse":     18,

			// Commercial.
			"office_complex":  17,
			"commercial":      16,
			"retail":          15,
			"shopping_center": 19,
			"hotel":           19,
			"apartment":       16,

			// Institutional.
			"school":     18,
			"university": 20,
			"government": 16,
			"municipal":  17,
			"daycare":    18,

			"other": 12,
		},
		DefaultFacilityScore: DefaultFacilityScore,
		VisitTimes: []VisitTimeRule{
			{Contains: "restaurant", Time: "14:00"},
			{Contains: "hospital", Time: "09:00"},
			{Contains: "office", Time: "10:00"},
			{Contains: "industrial", Time: "08:00"},
		},
		DefaultVisitTime: DefaultVisitTime,
	}
}

// DefaultEngineConfig returns the engine settings for the Sumner service hub.
func DefaultEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		HubLat:             47.1853,
		HubLng:             -122.2928,
		ServiceRadiusMiles: 20,
		PerDeviceRate:      250,
		MinScore:           30,
		MaxResults:         100,
		SortBy:             "score",
		Concurrency:        1,
	}
}

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateTables checks that a Tables value is internally consistent.
func ValidateTables(t Tables) error {
	var errs []string

	if len(t.FacilityScores) == 0 {
		errs = append(errs, "facility_scores must not be empty")
	}
	for key, score := range t.FacilityScores {
		if score < 0 || score > 25 {
			errs = append(errs, fmt.Sprintf("facility_scores.%s must be between 0 and 25", key))
		}
		if key != NormalizeFacilityType(key) {
			errs = append(errs, fmt.Sprintf("facility_scores key %q must be lower_snake_case", key))
		}
	}
	if t.DefaultFacilityScore < 0 || t.DefaultFacilityScore > 25 {
		errs = append(errs, "default_facility_score must be between 0 and 25")
	}
	for i, rule := range t.VisitTimes {
		if strings.TrimSpace(rule.Contains) == "" {
			errs = append(errs, fmt.Sprintf("visit_times[%d].contains is required", i))
		}
		if !clockPattern.MatchString(rule.Time) {
			errs = append(errs, fmt.Sprintf("visit_times[%d].time must be HH:MM", i))
		}
	}
	if !clockPattern.MatchString(t.DefaultVisitTime) {
		errs = append(errs, "default_visit_time must be HH:MM")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: tables validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadTables reads table overrides from a YAML file with a top-level
// "tables" key. Sections missing from the file keep their built-in values;
// facility_scores entries are merged into the defaults.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, eris.Wrapf(err, "scorer: read tables %s", path)
	}

	var wrapper struct {
		Tables struct {
			FacilityScores       map[string]int  `yaml:"facility_scores"`
			DefaultFacilityScore *int            `yaml:"default_facility_score"`
			VisitTimes           []VisitTimeRule `yaml:"visit_times"`
			DefaultVisitTime     string          `yaml:"default_visit_time"`
		} `yaml:"tables"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Tables{}, eris.Wrap(err, "scorer: parse tables")
	}

	t := DefaultTables()
	for key, score := range wrapper.Tables.FacilityScores {
		t.FacilityScores[NormalizeFacilityType(key)] = score
	}
	if wrapper.Tables.DefaultFacilityScore != nil {
		t.DefaultFacilityScore = *wrapper.Tables.DefaultFacilityScore
	}
	if len(wrapper.Tables.VisitTimes) > 0 {
		t.VisitTimes = wrapper.Tables.VisitTimes
	}
	if wrapper.Tables.DefaultVisitTime != "" {
		t.DefaultVisitTime = wrapper.Tables.DefaultVisitTime
	}

	if err := ValidateTables(t); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// clone returns a deep copy so an Engine never shares mutable maps with
// its caller.
func (t Tables) clone() Tables {
	out := t
	out.FacilityScores = make(map[string]int, len(t.FacilityScores))
	for k, v := range t.FacilityScores {
		out.FacilityScores[k] = v
	}
	out.VisitTimes = append([]VisitTimeRule(nil), t.VisitTimes...)
	return out
}
