// Package report renders batch scoring results as tables, CSV, JSON,
// spreadsheets and GeoJSON maps.
package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// Output formats.
const (
	FormatTable   = "table"
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatXLSX    = "xlsx"
	FormatGeoJSON = "geojson"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatCSV, FormatJSON, FormatXLSX, FormatGeoJSON}

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if strings.EqualFold(f, known) {
			return true
		}
	}
	return false
}

// Write renders a batch result in the given format.
func Write(w io.Writer, format string, res *model.BatchResult) error {
	switch strings.ToLower(format) {
	case FormatTable:
		if err := WriteSummary(w, res.Stats); err != nil {
			return err
		}
		return WriteTable(w, res.Leads)
	case FormatCSV:
		return WriteCSV(w, res.Leads)
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatXLSX:
		return WriteXLSX(w, res)
	case FormatGeoJSON:
		return WriteGeoJSON(w, res.Leads)
	default:
		return eris.Errorf("report: unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// columns shared by the CSV and XLSX writers.
var leadColumns = []string{
	"id", "business_name", "address", "facility_type", "score", "temperature", "priority",
	"estimated_value", "distance_miles", "device_count", "days_past_due", "contact_method",
	"timeframe", "cluster", "visit_time", "travel_minutes", "phone", "email", "latitude", "longitude",
}

func daysCell(d *int) string {
	if d == nil {
		return ""
	}
	return itoa(*d)
}
