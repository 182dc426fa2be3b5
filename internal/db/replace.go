package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceSet identifies the rows of a child table owned by one parent key,
// e.g. all run_leads rows of a run.
type ReplaceSet struct {
	Table   string   // target table, optionally schema-qualified
	KeyCol  string   // owning column (e.g. "run_id")
	Key     any      // owning value
	Columns []string // columns supplied in rows
}

// ReplaceInTx swaps the rows owned by set.Key on a caller-owned
// transaction: existing rows are deleted and the new rows are COPY'd. It
// returns the number of rows copied.
func ReplaceInTx(ctx context.Context, tx pgx.Tx, set ReplaceSet, rows [][]any) (int64, error) {
	if err := set.validate(); err != nil {
		return 0, err
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		sanitizeTable(set.Table), pgx.Identifier{set.KeyCol}.Sanitize())
	if _, err := tx.Exec(ctx, deleteSQL, set.Key); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear %s", set.Table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := tx.CopyFrom(ctx, identifier(set.Table), set.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", set.Table)
	}
	return n, nil
}

func (set ReplaceSet) validate() error {
	if set.KeyCol == "" {
		return eris.New("db: replace: no key column specified")
	}
	if len(set.Columns) == 0 {
		return eris.New("db: replace: no columns specified")
	}
	return nil
}
