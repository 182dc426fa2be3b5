package scorer

import (
	"math"
	"strings"

	"github.com/cascade-backflow/leadroute/internal/geo"
	"github.com/cascade-backflow/leadroute/internal/model"
)

// Route estimate constants.
const (
	MinutesPerMile       = 3
	VisitDurationMinutes = 60
)

// OptimizeRoute assigns a visit cluster, preferred arrival time and travel
// estimate for a lead at the given hub distance.
func (e *Engine) OptimizeRoute(lead *model.RawLead, distance float64) model.RouteInfo {
	var lat, lng float64
	if lead.Latitude != nil {
		lat = *lead.Latitude
	}
	if lead.Longitude != nil {
		lng = *lead.Longitude
	}

	return model.RouteInfo{
		Cluster:              geo.AssignCluster(lat, lng),
		OptimalVisitTime:     e.visitTime(NormalizeFacilityType(lead.FacilityType)),
		TravelTimeMinutes:    int(math.Round(distance * MinutesPerMile)),
		VisitDurationMinutes: VisitDurationMinutes,
	}
}

// visitTime returns the first matching rule's time, in table order.
func (e *Engine) visitTime(facility string) string {
	for _, rule := range e.tables.VisitTimes {
		if strings.Contains(facility, rule.Contains) {
			return rule.Time
		}
	}
	return e.tables.DefaultVisitTime
}
