package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ParseLeadsCSV reads leads from CSV with a header row. Columns are matched
// by name (snake_case, camelCase or spaced); unknown columns are ignored.
// Only opts.Delimiter and opts.Comment are honoured; cells are always
// trimmed and quotes parsed leniently.
func ParseLeadsCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.RawLead, error) {
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		Delimiter:  opts.Delimiter,
		Comment:    opts.Comment,
		TrimSpace:  true,
		LazyQuotes: true,
	})

	var (
		cols  columnMap
		leads []model.RawLead
		line  int
	)
	for row := range rowCh {
		if cols == nil {
			cols = mapColumns(row)
			continue
		}
		if blankRow(row) {
			continue
		}
		line++
		leads = append(leads, cols.lead(row, line))
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}

	if cols == nil {
		return nil, eris.New("csv: missing header row")
	}
	if err := cols.requireCoordinates(); err != nil {
		return nil, eris.Wrap(err, "csv")
	}
	return leads, nil
}
