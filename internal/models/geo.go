package models

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 point
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and within range
func (c Coordinate) Valid() bool {
	return isFinite(c.Lat) && isFinite(c.Lon) &&
		c.Lat >= -90 && c.Lat <= 90 &&
		c.Lon >= -180 && c.Lon <= 180
}

// HasValidCoordinates reports whether both coordinates are present and finite
func HasValidCoordinates(e *Event) bool {
	return e.Latitude != nil && e.Longitude != nil &&
		isFinite(*e.Latitude) && isFinite(*e.Longitude)
}

// EventCoordinate returns the event position, ok is false when it has none
func EventCoordinate(e *Event) (Coordinate, bool) {
	if !HasValidCoordinates(e) {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *e.Latitude, Lon: *e.Longitude}, true
}

// ComputeDistanceKm returns the great-circle distance from ref to the event,
// or nil when the event has no usable coordinates
func ComputeDistanceKm(e *Event, ref Coordinate) *float64 {
	pos, ok := EventCoordinate(e)
	if !ok {
		return nil
	}
	d := HaversineKm(ref, pos)
	return &d
}

// HaversineKm returns the great-circle distance between a and b
func HaversineKm(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
