package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/scorer"
	"github.com/cascade-backflow/leadroute/internal/store"
)

// newEngine builds the scoring engine from config, applying table
// overrides when engine.tables_path is set.
func newEngine(c config.EngineConfig) (*scorer.Engine, error) {
	var opts []scorer.Option
	if c.TablesPath != "" {
		tables, err := scorer.LoadTables(c.TablesPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scorer.WithTables(tables))
		zap.L().Info("using scoring tables", zap.String("path", c.TablesPath))
	}
	return scorer.NewEngine(c, opts...), nil
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.New(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
