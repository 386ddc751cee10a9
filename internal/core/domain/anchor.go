package domain

// AnchorSpec pins virtual content to a geodetic coordinate. Supplied by
// the caller when a session opens and immutable for its lifetime.
type AnchorSpec struct {
	Location        GeoPoint `json:"location"`
	ElevationMeters float64  `json:"elevation_meters"`
	Scale           float64  `json:"scale"`
}
