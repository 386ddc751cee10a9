package usecases_test

import (
	"math"
	"testing"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
)

const metersPerDegreeLat = 111320.0

func refAt(lat, lon float64) domain.StabilizedPosition {
	return domain.StabilizedPosition{Location: domain.GeoPoint{Lat: lat, Lon: lon}}
}

func TestProjector_Deterministic(t *testing.T) {
	p := usecases.NewProjector(1.0)
	anchor := domain.AnchorSpec{
		Location:        domain.GeoPoint{Lat: 43.2690, Lon: -2.9335},
		ElevationMeters: 2.5,
		Scale:           1.0,
	}
	ref := refAt(43.2687, -2.9340)

	a := p.Project(anchor, ref, 1.0)
	b := p.Project(anchor, ref, 1.0)
	if a != b {
		t.Fatalf("projection not deterministic: %+v vs %+v", a, b)
	}
	if a.Y != 3.5 {
		t.Errorf("expected y = anchor elevation + offset = 3.5, got %f", a.Y)
	}
}

// Moving the reference east by d meters must move the projected anchor
// west by d*scale, at the equator and at 45 degrees latitude alike.
func TestProjector_ReferenceShiftEast(t *testing.T) {
	const shift = 10.0 // meters

	cases := []struct {
		name string
		lat  float64
	}{
		{"equator", 0.0},
		{"bilbao_latitude", 43.2687},
		{"lat45", 45.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := usecases.NewProjector(1.0)
			anchor := domain.AnchorSpec{
				Location: domain.GeoPoint{Lat: tc.lat, Lon: 0},
				Scale:    1.0,
			}

			before := p.Project(anchor, refAt(tc.lat, 0), 0)
			lonShift := shift / (metersPerDegreeLat * math.Cos(tc.lat*math.Pi/180))
			after := p.Project(anchor, refAt(tc.lat, lonShift), 0)

			moved := after.X - before.X
			if math.Abs(moved+shift) > 0.01 {
				t.Errorf("expected anchor to move %f m west, moved %f", shift, moved)
			}
			if math.Abs(after.Z-before.Z) > 0.01 {
				t.Errorf("pure east shift must not move z, moved %f", after.Z-before.Z)
			}
		})
	}
}

func TestProjector_NorthIsNegativeZ(t *testing.T) {
	p := usecases.NewProjector(1.0)
	ref := refAt(43.2687, -2.9340)

	// Anchor 50 m north of the reference.
	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2687 + 50.0/metersPerDegreeLat, Lon: -2.9340},
		Scale:    1.0,
	}
	local := p.Project(anchor, ref, 0)
	if math.Abs(local.Z+50) > 0.01 {
		t.Errorf("anchor 50 m north: expected z = -50, got %f", local.Z)
	}
	if math.Abs(local.X) > 0.01 {
		t.Errorf("due-north anchor must have x = 0, got %f", local.X)
	}
}

func TestProjector_ScaleCompression(t *testing.T) {
	p := usecases.NewProjector(0.1)
	ref := refAt(43.2687, -2.9340)
	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2687 + 100.0/metersPerDegreeLat, Lon: -2.9340},
		Scale:    1.0,
	}

	local := p.Project(anchor, ref, 0)
	if math.Abs(local.Z+10) > 0.01 {
		t.Errorf("100 m north at scale 0.1: expected z = -10, got %f", local.Z)
	}

	// Elevation stays in true meters regardless of horizontal scale.
	anchor.ElevationMeters = 3
	local = p.Project(anchor, ref, 0)
	if local.Y != 3 {
		t.Errorf("elevation must not be scaled, got y = %f", local.Y)
	}
}

func TestProjector_UnprojectRoundTrip(t *testing.T) {
	p := usecases.NewProjector(0.5)
	ref := refAt(43.2687, -2.9340)
	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2692, Lon: -2.9331},
		Scale:    2.0,
	}

	local := p.Project(anchor, ref, 0)
	back := p.Unproject(local, anchor, ref)

	if math.Abs(back.Lat-anchor.Location.Lat) > 1e-9 {
		t.Errorf("lat round trip: want %f, got %f", anchor.Location.Lat, back.Lat)
	}
	if math.Abs(back.Lon-anchor.Location.Lon) > 1e-9 {
		t.Errorf("lon round trip: want %f, got %f", anchor.Location.Lon, back.Lon)
	}
}
