// Package geo converts caller-supplied spatial parameters (center point,
// radius, distance unit) into the values the spatial queries need: an angular
// radius in radians for spherical-cap membership and a meters-to-unit
// multiplier for distance projections.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/trailhead-travel/trailhead/internal/domain"
)

// Malformed spatial input errors. These are surfaced to the caller
// immediately and never retried.
var (
	ErrInvalidPoint    = errors.New("geo: invalid coordinates")
	ErrInvalidUnit     = errors.New("geo: invalid distance unit")
	ErrInvalidDistance = errors.New("geo: invalid distance")
)

// Unit is a caller-facing distance unit.
type Unit string

const (
	UnitMiles      Unit = "mi"
	UnitKilometers Unit = "km"
)

// Earth radii used to convert a distance into an angular radius.
const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1
)

// Multipliers from the store-native distance unit (meters).
const (
	metersToMiles      = 0.000621371
	metersToKilometers = 0.001
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// ParseUnit validates a unit parameter.
func ParseUnit(raw string) (Unit, error) {
	switch Unit(strings.TrimSpace(raw)) {
	case UnitMiles:
		return UnitMiles, nil
	case UnitKilometers:
		return UnitKilometers, nil
	}
	return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidUnit, raw, UnitMiles, UnitKilometers)
}

// EarthRadius returns the mean Earth radius expressed in the unit.
func (u Unit) EarthRadius() float64 {
	if u == UnitMiles {
		return earthRadiusMi
	}
	return earthRadiusKm
}

// Multiplier converts store-native meters into the unit.
func (u Unit) Multiplier() float64 {
	if u == UnitMiles {
		return metersToMiles
	}
	return metersToKilometers
}

// ParsePoint parses a "lat,lng" pair. Both components must be numeric and
// within geographic range; anything else is ErrInvalidPoint naming the
// malformed component.
func ParsePoint(raw string) (domain.GeoPoint, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("%w: want \"lat,lng\", got %q", ErrInvalidPoint, raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: latitude %q is not a number", ErrInvalidPoint, parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: longitude %q is not a number", ErrInvalidPoint, parts[1])
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return domain.GeoPoint{}, fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrInvalidPoint, lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return domain.GeoPoint{}, fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrInvalidPoint, lng)
	}
	return domain.GeoPoint{Lat: lat, Lng: lng}, nil
}

// AngularRadius converts a distance in the given unit into radians on the
// reference sphere, for spherical-cap membership tests.
func AngularRadius(distance float64, unit Unit) (float64, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance <= 0 {
		return 0, fmt.Errorf("%w: %v (must be > 0)", ErrInvalidDistance, distance)
	}
	return distance / unit.EarthRadius(), nil
}

// Distance returns the great-circle distance between two points in meters,
// using the haversine formulation for numerical stability at small angles.
func Distance(a, b domain.GeoPoint) float64 {
	return CentralAngle(a, b) * EarthRadiusMeters
}

// CentralAngle returns the angle in radians subtended at the Earth's center
// by the arc between two points.
func CentralAngle(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}
