package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignCluster(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		expected string
	}{
		{"north: above lat and east of divide", 47.25, -122.20, ClusterNorth},
		{"south: below lat and east of divide", 47.10, -122.20, ClusterSouth},
		{"west: far west regardless of lat", 47.30, -122.40, ClusterWest},
		{"west: south latitude but west", 47.10, -122.40, ClusterWest},
		{"east: middle band, far east", 47.18, -122.10, ClusterEast},
		{"central: hub itself", 47.1853, -122.2928, ClusterCentral},
		{"central: north lat but west of divide, east of west line", 47.25, -122.30, ClusterCentral},
		{"boundary: lat exactly 47.2 is not north", 47.2, -122.20, ClusterCentral},
		{"boundary: lng exactly -122.25 is not north", 47.25, -122.25, ClusterCentral},
		{"boundary: lat exactly 47.15 is not south", 47.15, -122.20, ClusterCentral},
		{"boundary: lng exactly -122.35 is not west", 47.18, -122.35, ClusterCentral},
		{"order: north wins over east", 47.3, -122.10, ClusterNorth},
		{"order: south wins over east", 47.0, -122.10, ClusterSouth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AssignCluster(tt.lat, tt.lng))
		})
	}
}
