// Package ingest loads raw leads from CSV, JSON and XLSX files, standard
// input or remote feeds, normalizing them for the scorer.
package ingest

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// Supported input formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// LoadOptions configures LoadLeads.
type LoadOptions struct {
	// Format overrides detection from the file extension.
	Format string
	// Stdin is read when the source is "-". Defaults to os.Stdin.
	Stdin io.Reader
	// Fetcher downloads http(s) sources. Defaults to a new HTTPFetcher.
	Fetcher *HTTPFetcher
	// CSV sets the field delimiter and comment character for CSV input.
	CSV CSVOptions
}

// LoadLeads reads leads from a file path, "-" for standard input, or an
// http(s) URL. The format comes from opts.Format or the source extension;
// standard input defaults to JSON.
func LoadLeads(ctx context.Context, src string, opts LoadOptions) ([]model.RawLead, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))

	var (
		leads []model.RawLead
		err   error
	)
	switch {
	case src == "-":
		if format == "" {
			format = FormatJSON
		}
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		leads, err = decode(ctx, stdin, format, opts.CSV)

	case isRemote(src):
		if format == "" {
			format = DetectFormat(remotePath(src))
		}
		fetcher := opts.Fetcher
		if fetcher == nil {
			fetcher = NewHTTPFetcher(HTTPOptions{})
		}
		var body []byte
		body, err = fetcher.Download(ctx, src)
		if err != nil {
			return nil, err
		}
		if format == FormatXLSX {
			var rows [][]string
			if rows, err = ReadXLSXBinary(body, XLSXOptions{}); err == nil {
				leads, err = LeadsFromRows(rows)
			}
		} else {
			leads, err = decode(ctx, bytes.NewReader(body), format, opts.CSV)
		}

	default:
		if format == "" {
			format = DetectFormat(src)
		}
		leads, err = loadFile(ctx, src, format, opts.CSV)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: load %s", src)
	}

	zap.L().Info("ingest: loaded leads",
		zap.String("source", src),
		zap.String("format", format),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}

// DetectFormat maps a file extension to a format, defaulting to JSON.
func DetectFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSON
	}
}

func loadFile(ctx context.Context, name, format string, csvOpts CSVOptions) ([]model.RawLead, error) {
	if format == FormatXLSX {
		rows, err := ReadXLSX(name, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return LeadsFromRows(rows)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	return decode(ctx, f, format, csvOpts)
}

func decode(ctx context.Context, r io.Reader, format string, csvOpts CSVOptions) ([]model.RawLead, error) {
	switch format {
	case FormatCSV:
		return ParseLeadsCSV(ctx, r, csvOpts)
	case FormatJSON:
		return DecodeLeadsJSON(ctx, r)
	case FormatXLSX:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrap(err, "read workbook")
		}
		rows, err := ReadXLSXBinary(data, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return LeadsFromRows(rows)
	default:
		return nil, eris.Errorf("unsupported format %q", format)
	}
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func remotePath(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return path.Base(u.Path)
}
