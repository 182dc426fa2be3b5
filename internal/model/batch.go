package model

import "time"

// SortBy selects the ordering of batch output.
type SortBy string

const (
	SortByScore    SortBy = "score"
	SortByDistance SortBy = "distance"
	SortByValue    SortBy = "value"
	SortByUrgency  SortBy = "urgency"
)

// Valid reports whether s names a supported ordering.
func (s SortBy) Valid() bool {
	switch s {
	case SortByScore, SortByDistance, SortByValue, SortByUrgency:
		return true
	default:
		return false
	}
}

// BatchOptions controls filtering, ordering and truncation of a batch.
// Zero values fall back to the engine defaults.
type BatchOptions struct {
	MinScore          *int        `json:"minScore,omitempty"`
	MaxResults        int         `json:"maxResults,omitempty"`
	TemperatureFilter Temperature `json:"temperatureFilter,omitempty"`
	SortBy            SortBy      `json:"sortBy,omitempty"`
	Concurrency       int         `json:"concurrency,omitempty"`
}

// BatchStats aggregates a batch. TotalProcessed counts the kept leads
// before truncation, so Hot+Warm+Cold == TotalProcessed.
type BatchStats struct {
	TotalInput            int            `json:"totalInput"`
	TotalProcessed        int            `json:"totalProcessed"`
	HotLeads              int            `json:"hotLeads"`
	WarmLeads             int            `json:"warmLeads"`
	ColdLeads             int            `json:"coldLeads"`
	UrgentLeads           int            `json:"urgentLeads"`
	AvgScore              float64        `json:"avgScore"`
	TotalEstimatedRevenue float64        `json:"totalEstimatedRevenue"`
	SkippedMissingCoords  int            `json:"skippedMissingCoords"`
	SkippedOutOfRadius    int            `json:"skippedOutOfRadius"`
	FilteredOut           int            `json:"filteredOut"`
	Failed                int            `json:"failed"`
	Clusters              map[string]int `json:"clusters,omitempty"`
	ProcessingTimeMs      int64          `json:"processingTimeMs"`
}

// BatchResult is the output of a batch scoring call.
type BatchResult struct {
	Stats BatchStats   `json:"stats"`
	Leads []ScoredLead `json:"leads"`
}

// Analysis is the human-readable summary returned with a single score.
type Analysis struct {
	Temperature       Temperature `json:"temperature"`
	Priority          Priority    `json:"priority"`
	RecommendedAction string      `json:"recommendedAction"`
	EstimatedValue    string      `json:"estimatedValue"`
	Distance          string      `json:"distance"`
}

// Run is a persisted batch result.
type Run struct {
	ID        string       `json:"id"`
	Options   BatchOptions `json:"options"`
	Stats     BatchStats   `json:"stats"`
	Leads     []ScoredLead `json:"leads,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
