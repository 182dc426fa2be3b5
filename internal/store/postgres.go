package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/db"
	"github.com/cascade-backflow/leadroute/internal/geo"
	"github.com/cascade-backflow/leadroute/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const runLeadsTable = "run_leads"

var runLeadColumns = []string{
	"run_id", "position", "lead_id", "score", "temperature", "priority", "cluster", "location", "lead",
}

const (
	saveRunSQL = `INSERT INTO runs (id, options, stats, lead_count, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET options = EXCLUDED.options, stats = EXCLUDED.stats, lead_count = EXCLUDED.lead_count
		RETURNING (xmax = 0)`
	getRunSQL   = `SELECT id, options, stats, created_at FROM runs WHERE id = $1`
	listRunsSQL = `SELECT id, options, stats, created_at FROM runs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	options    JSONB NOT NULL,
	stats      JSONB NOT NULL,
	lead_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_leads (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	lead_id     TEXT NOT NULL,
	score       INTEGER NOT NULL,
	temperature TEXT NOT NULL,
	priority    TEXT NOT NULL,
	cluster     TEXT NOT NULL,
	location    BYTEA,
	lead        JSONB NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_leads_temperature ON run_leads(run_id, temperature);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun upserts the run row and its leads in one transaction. A fresh
// run gets its leads with a plain COPY; a re-saved run has its old leads
// deleted first.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	stamp(run)

	optionsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal options")
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	rows, err := leadRows(run)
	if err != nil {
		return err
	}

	var (
		inserted bool
		n        int64
	)
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, saveRunSQL,
			run.ID, optionsJSON, statsJSON, len(run.Leads), run.CreatedAt,
		).Scan(&inserted)
		if err != nil {
			return eris.Wrapf(err, "postgres: save run %s", run.ID)
		}

		if inserted {
			n, err = db.CopyFrom(ctx, tx, runLeadsTable, runLeadColumns, rows)
		} else {
			n, err = db.ReplaceInTx(ctx, tx, db.ReplaceSet{
				Table:   runLeadsTable,
				KeyCol:  "run_id",
				Key:     run.ID,
				Columns: runLeadColumns,
			}, rows)
		}
		return eris.Wrapf(err, "postgres: save leads for run %s", run.ID)
	})
	if err != nil {
		return err
	}

	zap.L().Debug("postgres: saved run",
		zap.String("run_id", run.ID),
		zap.Bool("inserted", inserted),
		zap.Int64("leads", n),
	)
	return nil
}

func leadRows(run *model.Run) ([][]any, error) {
	rows := make([][]any, 0, len(run.Leads))
	for i := range run.Leads {
		l := &run.Leads[i]
		leadJSON, err := json.Marshal(l)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal lead %s", l.ID)
		}
		location, err := geo.EncodePoint(geo.Point{Lat: l.Latitude, Lng: l.Longitude})
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			run.ID, i, l.ID, l.Score, string(l.Temperature), string(l.Priority), l.Route.Cluster, location, leadJSON,
		})
	}
	return rows, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, getRunSQL, id)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx, listRunsSQL,
		runLimit(filter.Limit), max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListRunLeads(ctx context.Context, runID string, filter LeadFilter) ([]model.ScoredLead, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `SELECT lead FROM run_leads WHERE run_id = $1`
	args := []any{runID}
	if filter.Temperature != "" {
		args = append(args, string(filter.Temperature))
		query += fmt.Sprintf(` AND temperature = $%d`, len(args))
	}
	if filter.Cluster != "" {
		args = append(args, filter.Cluster)
		query += fmt.Sprintf(` AND cluster = $%d`, len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += fmt.Sprintf(` AND score >= $%d`, len(args))
	}
	args = append(args, leadLimit(filter.Limit), max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY position LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads for run %s", runID)
	}
	defer rows.Close()

	leads := []model.ScoredLead{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var l model.ScoredLead
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var optionsJSON, statsJSON []byte
	if err := row.Scan(&r.ID, &optionsJSON, &statsJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(optionsJSON, &r.Options); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal options")
	}
	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stats")
	}
	return &r, nil
}
