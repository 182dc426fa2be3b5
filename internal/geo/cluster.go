package geo

// Visit cluster labels.
const (
	ClusterNorth   = "North"
	ClusterSouth   = "South"
	ClusterWest    = "West"
	ClusterEast    = "East"
	ClusterCentral = "Central"
)

// Quadrant boundaries around the Sumner/Puyallup service hub (decimal degrees).
const (
	northLatMin   = 47.2
	southLatMax   = 47.15
	northSouthLng = -122.25
	westLngMax    = -122.35
	eastLngMin    = -122.15
)

// AssignCluster returns the visit cluster for a coordinate.
// Rules are evaluated in order and the first match wins:
//   - North: lat > 47.2 AND lng > -122.25
//   - South: lat < 47.15 AND lng > -122.25
//   - West: lng < -122.35
//   - East: lng > -122.15
//   - Central: everything else
func AssignCluster(lat, lng float64) string {
	switch {
	case lat > northLatMin && lng > northSouthLng:
		return ClusterNorth
	case lat < southLatMax && lng > northSouthLng:
		return ClusterSouth
	case lng < westLngMax:
		return ClusterWest
	case lng > eastLngMin:
		return ClusterEast
	default:
		return ClusterCentral
	}
}
