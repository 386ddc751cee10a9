package geospatial

import "math"

const (
	earthRadiusKm = 6371.0

	// Meters per degree of latitude; longitude shrinks by cos(lat).
	metersPerDegree = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// EastNorthMeters returns the flat-earth offset in meters from a reference
// point to a target point: east along the first axis, north along the second.
// The equirectangular approximation is only valid over short distances
// (tens to low hundreds of meters), which is the regime AR anchoring
// operates in.
func EastNorthMeters(refLat, refLon, lat, lon float64) (east, north float64) {
	east = (lon - refLon) * metersPerDegree * math.Cos(toRad(refLat))
	north = (lat - refLat) * metersPerDegree
	return east, north
}

// OffsetPoint is the inverse of EastNorthMeters: it moves a reference point
// by the given east/north meters and returns the resulting lat/lon.
func OffsetPoint(refLat, refLon, east, north float64) (lat, lon float64) {
	lat = refLat + north/metersPerDegree
	lon = refLon + east/(metersPerDegree*math.Cos(toRad(refLat)))
	return lat, lon
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegree
	lonDelta := radiusMeters / (metersPerDegree * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
