// Package geo provides the coordinate math used by the proximity engine:
// haversine distance, initial bearing, and destination-point projection.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for all spherical math.
const EarthRadiusMeters = 6371000.0

// Coordinate bounds in degrees.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// IsValid reports whether lat/lon fall within valid geographic ranges.
func IsValid(lat, lon float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude &&
		lon >= MinLongitude && lon <= MaxLongitude
}

// Distance returns the great-circle distance between a and b in meters,
// computed with the haversine formula.
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees, normalised
// to [0, 360) where 0 is north and 90 is east.
func Bearing(a, b Coordinate) float64 {
	lat1 := radians(a.Latitude)
	lon1 := radians(a.Longitude)
	lat2 := radians(b.Latitude)
	lon2 := radians(b.Longitude)

	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)

	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Destination projects a point from start along bearingDeg by distanceMeters
// on the great circle and returns the resulting coordinate. Longitude is
// normalised to [-180, 180).
func Destination(start Coordinate, bearingDeg, distanceMeters float64) Coordinate {
	lat1 := radians(start.Latitude)
	lon1 := radians(start.Longitude)
	brng := radians(bearingDeg)
	d := distanceMeters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) +
		math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	lon2 = math.Mod(lon2+3*math.Pi, 2*math.Pi) - math.Pi

	return Coordinate{Latitude: degrees(lat2), Longitude: degrees(lon2)}
}

// compassPoints indexes bearing/45 rounded; the ninth entry closes the wrap.
var compassPoints = [9]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW", "N"}

// DirectionFromBearing converts a bearing in degrees to a cardinal or
// intercardinal direction label.
func DirectionFromBearing(bearingDeg float64) string {
	return compassPoints[int(math.Round(bearingDeg/45))]
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
