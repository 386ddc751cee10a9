package geospatial

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Guggenheim Bilbao to Plaza Moyua, roughly 560 m.
	d := Haversine(43.2687, -2.9340, 43.2630, -2.9350)
	if d < 500 || d > 650 {
		t.Errorf("expected ~560m, got %.1f", d)
	}
}

func TestEastNorthMeters_Equator(t *testing.T) {
	// At the equator one degree of longitude is ~111.32 km.
	east, north := EastNorthMeters(0, 0, 0, 0.001)
	if math.Abs(east-111.32) > 0.1 {
		t.Errorf("east: expected ~111.32m, got %.3f", east)
	}
	if math.Abs(north) > 1e-9 {
		t.Errorf("north: expected 0, got %.6f", north)
	}
}

func TestEastNorthMeters_CosineCorrection(t *testing.T) {
	// At 60°N a degree of longitude is half as wide as at the equator.
	eastEq, _ := EastNorthMeters(0, 0, 0, 0.001)
	east60, _ := EastNorthMeters(60, 0, 60, 0.001)

	ratio := east60 / eastEq
	if math.Abs(ratio-0.5) > 0.001 {
		t.Errorf("expected cos(60°)=0.5 ratio, got %.4f", ratio)
	}
}

func TestOffsetPoint_RoundTrip(t *testing.T) {
	refLat, refLon := 43.2630, -2.9350

	lat, lon := OffsetPoint(refLat, refLon, 25.0, -40.0)
	east, north := EastNorthMeters(refLat, refLon, lat, lon)

	if math.Abs(east-25.0) > 1e-6 {
		t.Errorf("east round trip: got %.9f", east)
	}
	if math.Abs(north-(-40.0)) > 1e-6 {
		t.Errorf("north round trip: got %.9f", north)
	}
}

func TestBoundingBox_ContainsPoint(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(43.263, -2.935, 200)

	if minLat >= 43.263 || maxLat <= 43.263 {
		t.Error("latitude bounds do not bracket the center")
	}
	if minLon >= -2.935 || maxLon <= -2.935 {
		t.Error("longitude bounds do not bracket the center")
	}
}
