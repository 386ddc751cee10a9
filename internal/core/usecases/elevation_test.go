package usecases_test

import (
	"math"
	"testing"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
)

func fixedReference(lat, lon float64) func() (domain.StabilizedPosition, bool) {
	return func() (domain.StabilizedPosition, bool) {
		return refAt(lat, lon), true
	}
}

func noReference() (domain.StabilizedPosition, bool) {
	return domain.StabilizedPosition{}, false
}

func TestElevationState_AdjustCompose(t *testing.T) {
	a := usecases.NewElevationState(1.5, usecases.NewProjector(1.0), noReference)
	b := usecases.NewElevationState(1.5, usecases.NewProjector(1.0), noReference)

	a.AdjustGlobal(0.4)
	a.AdjustGlobal(-0.1)
	b.AdjustGlobal(0.3)

	if math.Abs(a.Offset()-b.Offset()) > 1e-12 {
		t.Errorf("adjust(0.4)+adjust(-0.1) = %f, adjust(0.3) = %f; must match", a.Offset(), b.Offset())
	}
	if math.Abs(a.Offset()-1.8) > 1e-12 {
		t.Errorf("expected offset 1.8, got %f", a.Offset())
	}
}

func TestElevationState_ResetAllAdjustments(t *testing.T) {
	e := usecases.NewElevationState(2.0, usecases.NewProjector(1.0), noReference)

	e.AdjustGlobal(5)
	e.SetGlobal(-3)
	e.ResetAllAdjustments()

	if e.Offset() != 2.0 {
		t.Errorf("reset must restore the session-start baseline, got %f", e.Offset())
	}
}

func TestElevationState_ResetPositionKeepsBaseline(t *testing.T) {
	e := usecases.NewElevationState(0, usecases.NewProjector(1.0), noReference)

	e.SetGlobal(1.2)
	e.AdjustGlobal(0.5)
	e.ResetPosition()

	if e.Offset() != 1.2 {
		t.Errorf("reset position must keep the set baseline, got %f", e.Offset())
	}
}

func TestElevationState_WorldPositionNeedsReference(t *testing.T) {
	anchor := domain.AnchorSpec{
		Location:        domain.GeoPoint{Lat: 43.2690, Lon: -2.9335},
		ElevationMeters: 1.0,
		Scale:           1.0,
	}

	e := usecases.NewElevationState(0.5, usecases.NewProjector(1.0), noReference)
	if _, ok := e.WorldPosition(anchor); ok {
		t.Fatal("expected no world position without a reference")
	}

	e = usecases.NewElevationState(0.5, usecases.NewProjector(1.0), fixedReference(43.2687, -2.9340))
	local, ok := e.WorldPosition(anchor)
	if !ok {
		t.Fatal("expected a world position with a reference available")
	}
	if local.Y != 1.5 {
		t.Errorf("expected y = anchor elevation + offset = 1.5, got %f", local.Y)
	}

	// An adjustment made by one module is visible to every reader on
	// the next query.
	e.AdjustGlobal(0.25)
	local, _ = e.WorldPosition(anchor)
	if local.Y != 1.75 {
		t.Errorf("expected adjusted y = 1.75, got %f", local.Y)
	}
}

func TestElevationState_RelativePositionRoundTrip(t *testing.T) {
	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2692, Lon: -2.9331},
		Scale:    1.0,
	}
	e := usecases.NewElevationState(0, usecases.NewProjector(1.0), fixedReference(43.2687, -2.9340))

	local, ok := e.WorldPosition(anchor)
	if !ok {
		t.Fatal("expected a world position")
	}
	geo, ok := e.RelativePosition(local, anchor)
	if !ok {
		t.Fatal("expected a relative position")
	}
	if math.Abs(geo.Lat-anchor.Location.Lat) > 1e-9 || math.Abs(geo.Lon-anchor.Location.Lon) > 1e-9 {
		t.Errorf("round trip mismatch: want %+v, got %+v", anchor.Location, geo)
	}
}
