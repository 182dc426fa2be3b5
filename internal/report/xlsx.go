package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// Sheet names in exported workbooks.
const (
	SheetLeads   = "Leads"
	SheetSummary = "Summary"
)

// WriteXLSX writes a workbook with a Leads sheet and a Summary sheet.
func WriteXLSX(w io.Writer, res *model.BatchResult) error {
	f := xlsx.NewFile()

	leads, err := f.AddSheet(SheetLeads)
	if err != nil {
		return eris.Wrap(err, "report: add leads sheet")
	}
	addRow(leads, leadColumns)
	for i := range res.Leads {
		addRow(leads, leadRow(&res.Leads[i]))
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	s := res.Stats
	addPair(summary, "total_input", s.TotalInput)
	addPair(summary, "total_processed", s.TotalProcessed)
	addPair(summary, "hot_leads", s.HotLeads)
	addPair(summary, "warm_leads", s.WarmLeads)
	addPair(summary, "cold_leads", s.ColdLeads)
	addPair(summary, "urgent_leads", s.UrgentLeads)
	addPair(summary, "avg_score", s.AvgScore)
	addPair(summary, "total_estimated_revenue", s.TotalEstimatedRevenue)
	addPair(summary, "skipped_missing_coords", s.SkippedMissingCoords)
	addPair(summary, "skipped_out_of_radius", s.SkippedOutOfRadius)
	addPair(summary, "filtered_out", s.FilteredOut)
	addPair(summary, "failed", s.Failed)
	addPair(summary, "processing_time_ms", s.ProcessingTimeMs)

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func addPair(sheet *xlsx.Sheet, key string, value any) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetValue(value)
}
