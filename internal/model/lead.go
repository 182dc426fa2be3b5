// Package model defines the lead records exchanged by the scoring engine and its callers.
package model

import (
	"math"
	"time"
)

// Temperature is the coarse actionability tier of a scored lead.
type Temperature string

const (
	TemperatureHot  Temperature = "HOT"
	TemperatureWarm Temperature = "WARM"
	TemperatureCold Temperature = "COLD"
)

// Valid reports whether t is one of the three known tiers.
func (t Temperature) Valid() bool {
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return true
	default:
		return false
	}
}

// Priority refines a temperature using how far past due the lead is.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities for urgency sorting (URGENT=4 ... LOW=1).
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// BusinessSize is the optional self-reported size class of a prospect.
type BusinessSize string

const (
	SizeSmall      BusinessSize = "small"
	SizeMedium     BusinessSize = "medium"
	SizeLarge      BusinessSize = "large"
	SizeEnterprise BusinessSize = "enterprise"
)

// ContactMethod is the first outreach channel recommended for a lead.
type ContactMethod string

const (
	ContactPhone ContactMethod = "phone"
	ContactEmail ContactMethod = "email"
	ContactVisit ContactMethod = "visit"
)

// Well-known provenance tags.
const (
	SourceComplianceMonitor = "compliance_monitor"
	SourceWebScraper        = "web_scraper"
	SourceManualInput       = "manual_input"
)

// RawLead is one prospect record as supplied by a scraper, a compliance
// feed, or manual entry. Optional numeric fields are pointers so that
// "absent" and "zero" stay distinct.
type RawLead struct {
	ID               string       `json:"id"`
	BusinessName     string       `json:"businessName"`
	Address          string       `json:"address"`
	Phone            string       `json:"phone,omitempty"`
	Email            string       `json:"email,omitempty"`
	Website          string       `json:"website,omitempty"`
	FacilityType     string       `json:"facilityType"`
	DeviceCount      *int         `json:"deviceCount,omitempty"`
	LastTestDate     string       `json:"lastTestDate,omitempty"`
	TestDueDate      string       `json:"testDueDate,omitempty"`
	ComplianceStatus string       `json:"complianceStatus,omitempty"`
	DaysPastDue      *int         `json:"daysPastDue,omitempty"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
	ContactPerson    string       `json:"contactPerson,omitempty"`
	BusinessSize     BusinessSize `json:"businessSize,omitempty"`
	Source           string       `json:"source"`
	FoundAt          string       `json:"foundAt,omitempty"`

	// DecodeError is set by ingest when a field had the wrong type. The
	// batch processor counts such a lead as failed instead of scoring it.
	DecodeError string `json:"-"`
}

// HasCoordinates reports whether both coordinates are present and finite.
func (l *RawLead) HasCoordinates() bool {
	if l.Latitude == nil || l.Longitude == nil {
		return false
	}
	lat, lng := *l.Latitude, *l.Longitude
	return !math.IsNaN(lat) && !math.IsNaN(lng) && !math.IsInf(lat, 0) && !math.IsInf(lng, 0)
}

// ScoringBreakdown holds the seven weighted sub-scores.
type ScoringBreakdown struct {
	Compliance           int `json:"compliance"`
	BusinessType         int `json:"businessType"`
	RevenuePotential     int `json:"revenuePotential"`
	Distance             int `json:"distance"`
	ContactQuality       int `json:"contactQuality"`
	Urgency              int `json:"urgency"`
	CompetitiveAdvantage int `json:"competitiveAdvantage"`
}

// Total sums the sub-scores.
func (b ScoringBreakdown) Total() int {
	return b.Compliance + b.BusinessType + b.RevenuePotential + b.Distance +
		b.ContactQuality + b.Urgency + b.CompetitiveAdvantage
}

// FollowUp is one step of an outreach cadence.
type FollowUp struct {
	AfterDays int    `json:"afterDays"`
	Action    string `json:"action"`
}

// ActionPlan describes how and when to contact a lead.
type ActionPlan struct {
	ContactMethod    ContactMethod `json:"contactMethod"`
	Timeframe        string        `json:"timeframe"`
	Message          string        `json:"message"`
	FollowUpSchedule []FollowUp    `json:"followUpSchedule"`
}

// RouteInfo places a lead in a visit cluster with travel estimates.
type RouteInfo struct {
	Cluster              string `json:"cluster"`
	OptimalVisitTime     string `json:"optimalVisitTime"`
	TravelTimeMinutes    int    `json:"travelTimeMinutes"`
	VisitDurationMinutes int    `json:"visitDurationMinutes"`
}

// ScoredLead is the immutable output of scoring one RawLead.
type ScoredLead struct {
	ID               string           `json:"id"`
	BusinessName     string           `json:"businessName"`
	Address          string           `json:"address"`
	Phone            string           `json:"phone,omitempty"`
	Email            string           `json:"email,omitempty"`
	Website          string           `json:"website,omitempty"`
	ContactPerson    string           `json:"contactPerson,omitempty"`
	FacilityType     string           `json:"facilityType"`
	ComplianceStatus string           `json:"complianceStatus,omitempty"`
	LastTestDate     string           `json:"lastTestDate,omitempty"`
	TestDueDate      string           `json:"testDueDate,omitempty"`
	DaysPastDue      *int             `json:"daysPastDue,omitempty"`
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	Source           string           `json:"source"`
	FoundAt          string           `json:"foundAt,omitempty"`
	Temperature      Temperature      `json:"temperature"`
	Score            int              `json:"score"`
	Priority         Priority         `json:"priority"`
	EstimatedValue   float64          `json:"estimatedValue"`
	DistanceMiles    float64          `json:"distanceMiles"`
	DeviceCount      int              `json:"deviceCount"`
	Breakdown        ScoringBreakdown `json:"scoringBreakdown"`
	ActionPlan       ActionPlan       `json:"actionPlan"`
	Route            RouteInfo        `json:"routeOptimization"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}
