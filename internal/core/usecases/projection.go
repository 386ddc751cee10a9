package usecases

import (
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/pkg/geospatial"
)

// Projector maps geodetic anchor coordinates into the rendering frame
// using a local tangent-plane approximation. It is pure: identical
// inputs always produce identical output, so a reference change moves
// every projected anchor deterministically on the next recomputation.
type Projector struct {
	// Scale compresses or expands real-world meters into rendering
	// units. 1.0 renders at true scale.
	Scale float64
}

// NewProjector creates a projector with the given meters-to-units scale.
func NewProjector(scale float64) *Projector {
	if scale <= 0 {
		scale = 1.0
	}
	return &Projector{Scale: scale}
}

// Project converts an anchor into scene-local coordinates relative to
// the reference position. x grows east, z grows south (the camera's
// default forward is north), and y carries the anchor elevation plus
// the shared offset, unscaled: ground alignment is tuned in true
// meters regardless of how the horizontal plane is compressed.
func (p *Projector) Project(anchor domain.AnchorSpec, reference domain.StabilizedPosition, elevationOffset float64) domain.LocalPosition {
	east, north := geospatial.EastNorthMeters(
		reference.Location.Lat, reference.Location.Lon,
		anchor.Location.Lat, anchor.Location.Lon,
	)
	scale := p.Scale * anchorScale(anchor)
	return domain.LocalPosition{
		X: east * scale,
		Y: anchor.ElevationMeters + elevationOffset,
		Z: -north * scale,
	}
}

// Unproject converts a scene-local position back to a geodetic point,
// given the reference it was projected against. Inverse of Project on
// the horizontal plane.
func (p *Projector) Unproject(local domain.LocalPosition, anchor domain.AnchorSpec, reference domain.StabilizedPosition) domain.GeoPoint {
	scale := p.Scale * anchorScale(anchor)
	lat, lon := geospatial.OffsetPoint(
		reference.Location.Lat, reference.Location.Lon,
		local.X/scale, -local.Z/scale,
	)
	return domain.GeoPoint{Lat: lat, Lon: lon}
}

func anchorScale(anchor domain.AnchorSpec) float64 {
	if anchor.Scale <= 0 {
		return 1.0
	}
	return anchor.Scale
}
