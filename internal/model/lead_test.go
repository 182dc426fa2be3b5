package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemperatureValid(t *testing.T) {
	t.Parallel()

	assert.True(t, TemperatureHot.Valid())
	assert.True(t, TemperatureWarm.Valid())
	assert.True(t, TemperatureCold.Valid())
	assert.False(t, Temperature("hot").Valid())
	assert.False(t, Temperature("").Valid())
}

func TestPriorityRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 0, Priority("NONE").Rank())
}

func TestSortByValid(t *testing.T) {
	t.Parallel()

	for _, s := range []SortBy{SortByScore, SortByDistance, SortByValue, SortByUrgency} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, SortBy("name").Valid())
}

func TestHasCoordinates(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		lat, lng *float64
		want     bool
	}{
		{"both set", f(47.1), f(-122.2), true},
		{"zero is present", f(0), f(0), true},
		{"missing latitude", nil, f(-122.2), false},
		{"missing longitude", f(47.1), nil, false},
		{"NaN", f(math.NaN()), f(-122.2), false},
		{"infinite", f(47.1), f(math.Inf(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := RawLead{Latitude: tt.lat, Longitude: tt.lng}
			assert.Equal(t, tt.want, l.HasCoordinates())
		})
	}
}

func TestBreakdownTotal(t *testing.T) {
	t.Parallel()

	b := ScoringBreakdown{Compliance: 35, BusinessType: 25, RevenuePotential: 15, Distance: 10, ContactQuality: 5, Urgency: 5, CompetitiveAdvantage: 5}
	assert.Equal(t, 100, b.Total())
}
