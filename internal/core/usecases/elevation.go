package usecases

import (
	"sync"

	"github.com/ortziar/ankora/internal/core/domain"
)

// ElevationState is the shared elevation baseline for one AR session.
// Every mounted content module reads the same instance, so a single
// operator adjustment realigns the ground plane for all of them at
// once. Writers are last-write-wins; there are no merge semantics.
type ElevationState struct {
	mu sync.RWMutex

	sessionBaseline float64
	baseline        float64
	delta           float64

	projector *Projector
	reference func() (domain.StabilizedPosition, bool)
}

// NewElevationState creates the shared state for a session. baseline is
// the session-start value that ResetAllAdjustments restores. reference
// supplies the current stabilized position for the derived world and
// relative queries.
func NewElevationState(baseline float64, projector *Projector, reference func() (domain.StabilizedPosition, bool)) *ElevationState {
	return &ElevationState{
		sessionBaseline: baseline,
		baseline:        baseline,
		projector:       projector,
		reference:       reference,
	}
}

// AdjustGlobal shifts the ground alignment by deltaMeters for every
// reader of this state. Successive adjustments compose additively.
func (e *ElevationState) AdjustGlobal(deltaMeters float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delta += deltaMeters
}

// SetGlobal replaces the baseline outright, keeping any adjustment
// delta already applied.
func (e *ElevationState) SetGlobal(meters float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseline = meters
}

// Offset returns the combined vertical offset in meters: baseline plus
// accumulated adjustments.
func (e *ElevationState) Offset() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseline + e.delta
}

// ResetAllAdjustments restores the session-start baseline and discards
// the adjustment delta. The instance stays valid; no module needs to
// re-acquire a reference after a reset.
func (e *ElevationState) ResetAllAdjustments() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseline = e.sessionBaseline
	e.delta = 0
}

// ResetPosition clears only the adjustment delta, keeping the current
// baseline. Bound to the reset gesture.
func (e *ElevationState) ResetPosition() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delta = 0
}

// WorldPosition projects a geodetic anchor into the rendering frame
// using the current reference position and this elevation state. The
// second return is false when no reference position is available yet.
func (e *ElevationState) WorldPosition(anchor domain.AnchorSpec) (domain.LocalPosition, bool) {
	ref, ok := e.reference()
	if !ok {
		return domain.LocalPosition{}, false
	}
	return e.projector.Project(anchor, ref, e.Offset()), true
}

// RelativePosition converts a scene-local point back to a geodetic
// coordinate using the current reference position.
func (e *ElevationState) RelativePosition(local domain.LocalPosition, anchor domain.AnchorSpec) (domain.GeoPoint, bool) {
	ref, ok := e.reference()
	if !ok {
		return domain.GeoPoint{}, false
	}
	return e.projector.Unproject(local, anchor, ref), true
}
