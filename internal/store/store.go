// Package store persists scored batch runs so they can be listed and
// re-read after the fact. The scoring engine itself never touches it.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultRunLimit  = 50
	defaultLeadLimit = 1000
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && eris.Is(err, ErrNotFound)
}

// RunFilter specifies criteria for listing runs, newest first.
type RunFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// LeadFilter narrows the leads of a run. Leads come back in their
// persisted (sorted batch) order.
type LeadFilter struct {
	Temperature model.Temperature `json:"temperature,omitempty"`
	Cluster     string            `json:"cluster,omitempty"`
	MinScore    int               `json:"minScore,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs.
type Store interface {
	// SaveRun persists a run and its leads. An empty ID is replaced with a
	// new UUID and a zero CreatedAt with the current time. Saving an
	// existing ID replaces its stats and leads.
	SaveRun(ctx context.Context, run *model.Run) error
	// GetRun returns a run without its leads.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListRunLeads(ctx context.Context, runID string, filter LeadFilter) ([]model.ScoredLead, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.DatabaseURL)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func runLimit(n int) int {
	if n <= 0 {
		return defaultRunLimit
	}
	return n
}

func leadLimit(n int) int {
	if n <= 0 {
		return defaultLeadLimit
	}
	return n
}

// stamp fills in the ID and creation time of a run about to be saved.
func stamp(run *model.Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
