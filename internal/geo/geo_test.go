package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-travel/trailhead/internal/domain"
)

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("34.111745,-118.113491")
	require.NoError(t, err)
	assert.InDelta(t, 34.111745, p.Lat, 1e-9)
	assert.InDelta(t, -118.113491, p.Lng, 1e-9)

	p, err = ParsePoint(" 10.5 , 20.25 ")
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 10.5, Lng: 20.25}, p)
}

func TestParsePoint_Invalid(t *testing.T) {
	for _, raw := range []string{
		"abc,45",
		"45,abc",
		"45",
		"",
		"45,12,3",
		"95,0",
		"0,181",
		"NaN,0",
	} {
		_, err := ParsePoint(raw)
		assert.ErrorIs(t, err, ErrInvalidPoint, "input %q", raw)
	}
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("mi")
	require.NoError(t, err)
	assert.Equal(t, UnitMiles, u)

	u, err = ParseUnit("km")
	require.NoError(t, err)
	assert.Equal(t, UnitKilometers, u)

	_, err = ParseUnit("leagues")
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestAngularRadius(t *testing.T) {
	r, err := AngularRadius(233, UnitMiles)
	require.NoError(t, err)
	assert.InDelta(t, 233/3963.2, r, 1e-12)

	r, err = AngularRadius(400, UnitKilometers)
	require.NoError(t, err)
	assert.InDelta(t, 400/6378.1, r, 1e-12)

	for _, d := range []float64{0, -1} {
		_, err := AngularRadius(d, UnitKilometers)
		assert.ErrorIs(t, err, ErrInvalidDistance)
	}
}

func TestUnitMultiplier(t *testing.T) {
	assert.InDelta(t, 0.000621371, UnitMiles.Multiplier(), 1e-12)
	assert.InDelta(t, 0.001, UnitKilometers.Multiplier(), 1e-12)
}

func TestDistance(t *testing.T) {
	center := domain.GeoPoint{Lat: 40.7128, Lng: -74.0060}

	assert.Zero(t, Distance(center, center))

	// New York to Los Angeles, roughly 3936 km.
	la := domain.GeoPoint{Lat: 34.0522, Lng: -118.2437}
	d := Distance(center, la)
	assert.InDelta(t, 3.936e6, d, 5e4)

	// Symmetry.
	assert.InDelta(t, d, Distance(la, center), 1e-6)
}

func TestCentralAngle_Antipodal(t *testing.T) {
	a := domain.GeoPoint{Lat: 0, Lng: 0}
	b := domain.GeoPoint{Lat: 0, Lng: 180}
	assert.InDelta(t, 3.14159265, CentralAngle(a, b), 1e-6)
}
