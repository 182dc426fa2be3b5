package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/cascade-backflow/leadroute/internal/model"
)

// FeatureCollection converts scored leads to GeoJSON point features for
// map display. Feature order follows lead order.
func FeatureCollection(leads []model.ScoredLead) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(leads))}
	for i := range leads {
		l := &leads[i]
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       l.ID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{l.Longitude, l.Latitude}),
			Properties: map[string]any{
				"businessName":     l.BusinessName,
				"address":          l.Address,
				"facilityType":     l.FacilityType,
				"score":            l.Score,
				"temperature":      l.Temperature,
				"priority":         l.Priority,
				"estimatedValue":   l.EstimatedValue,
				"distanceMiles":    l.DistanceMiles,
				"cluster":          l.Route.Cluster,
				"optimalVisitTime": l.Route.OptimalVisitTime,
				"contactMethod":    l.ActionPlan.ContactMethod,
				"timeframe":        l.ActionPlan.Timeframe,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes leads as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, leads []model.ScoredLead) error {
	data, err := FeatureCollection(leads).MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "report: encode geojson")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "report: write geojson")
	}
	return nil
}
