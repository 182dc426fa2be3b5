package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// WriteCSV writes one row per lead with a header row.
func WriteCSV(w io.Writer, leads []model.ScoredLead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(leadColumns); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for i := range leads {
		if err := cw.Write(leadRow(&leads[i])); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// leadRow renders a lead in leadColumns order.
func leadRow(l *model.ScoredLead) []string {
	return []string{
		l.ID,
		l.BusinessName,
		l.Address,
		l.FacilityType,
		itoa(l.Score),
		string(l.Temperature),
		string(l.Priority),
		strconv.FormatFloat(l.EstimatedValue, 'f', 2, 64),
		strconv.FormatFloat(l.DistanceMiles, 'f', 2, 64),
		itoa(l.DeviceCount),
		daysCell(l.DaysPastDue),
		string(l.ActionPlan.ContactMethod),
		l.ActionPlan.Timeframe,
		l.Route.Cluster,
		l.Route.OptimalVisitTime,
		itoa(l.Route.TravelTimeMinutes),
		l.Phone,
		l.Email,
		strconv.FormatFloat(l.Latitude, 'f', 6, 64),
		strconv.FormatFloat(l.Longitude, 'f', 6, 64),
	}
}
