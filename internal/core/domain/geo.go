package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocalPosition is a point in the rendering engine's Euclidean frame,
// expressed relative to the current stabilized user position: x east,
// y up, z south (negative z is north, matching a camera looking north).
// It is always derived from the latest reference position and elevation
// state and must never be cached across recomputations.
type LocalPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
