package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	positions   []domain.StabilizedPosition
	completions []domain.Completion
}

func (m *mockPublisher) PublishFix(ctx context.Context, deviceID string, fix *domain.GeoFix) error {
	return nil
}

func (m *mockPublisher) PublishStabilizedPosition(ctx context.Context, deviceID string, pos *domain.StabilizedPosition) error {
	m.positions = append(m.positions, *pos)
	return nil
}

func (m *mockPublisher) PublishCompletion(ctx context.Context, comp *domain.Completion) error {
	m.completions = append(m.completions, *comp)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return nil }

// --- Tests ---

func testManagerConfig() usecases.SessionManagerConfig {
	return usecases.SessionManagerConfig{
		Filter:          testFilterConfig(),
		Experience:      testExperienceConfig(),
		CoordinateScale: 1.0,
	}
}

func TestSessionManager_FixAdvancesLifecycle(t *testing.T) {
	clock := newFakeClock()
	pub := &mockPublisher{}
	m := usecases.NewSessionManager(testManagerConfig(), clock, pub, nil, nil)

	snap, err := m.OpenSession("dev-1", "exp-txakoli", domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2690, Lon: -2.9335},
		Scale:    1,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if snap.State != domain.StateAwaitingPosition {
		t.Fatalf("expected awaiting_position, got %s", snap.State)
	}

	_, err = m.IngestFix(context.Background(), "dev-1", domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687, Lon: -2.9340},
		AccuracyMeters: 8,
		Time:           clock.Now(),
	})
	if err != nil {
		t.Fatalf("ingest fix: %v", err)
	}

	if got := m.Snapshot("dev-1").State; got != domain.StatePositioning {
		t.Fatalf("expected positioning after a usable fix, got %s", got)
	}
	if len(pub.positions) != 1 {
		t.Fatalf("expected 1 published position, got %d", len(pub.positions))
	}
}

func TestSessionManager_FullLifecycleWithCompletion(t *testing.T) {
	clock := newFakeClock()
	pub := &mockPublisher{}
	m := usecases.NewSessionManager(testManagerConfig(), clock, pub, nil, nil)

	if _, err := m.OpenSession("dev-1", "exp-txakoli", domain.AnchorSpec{Scale: 1}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	_, _ = m.IngestFix(context.Background(), "dev-1", domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687, Lon: -2.9340},
		AccuracyMeters: 8,
		Time:           clock.Now(),
	})
	m.ConfirmPlacement("dev-1", "scene-1/cam-1")
	m.ContentReady("dev-1")

	if got := m.Snapshot("dev-1").State; got != domain.StateActive {
		t.Fatalf("expected active, got %s", got)
	}

	clock.Advance(6 * time.Second)
	if err := m.CloseSession("dev-1"); err != nil {
		t.Fatalf("close session: %v", err)
	}
	clock.Advance(time.Second)

	if len(pub.completions) != 1 {
		t.Fatalf("expected 1 published completion, got %d", len(pub.completions))
	}
	comp := pub.completions[0]
	if comp.DeviceID != "dev-1" || comp.ExperienceID != "exp-txakoli" {
		t.Errorf("completion fields wrong: %+v", comp)
	}
	if comp.EngagedFor != 6*time.Second {
		t.Errorf("expected 6s engagement, got %s", comp.EngagedFor)
	}
	if got := m.Snapshot("dev-1").State; got != domain.StateClosed {
		t.Fatalf("expected closed, got %s", got)
	}

	if err := m.CloseSession("dev-1"); err == nil {
		t.Error("closing an already closed session should error")
	}
}

func TestSessionManager_TestModeOverride(t *testing.T) {
	clock := newFakeClock()
	cfg := testManagerConfig()
	cfg.TestModeOverride = true
	m := usecases.NewSessionManager(cfg, clock, nil, nil, nil)

	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2690, Lon: -2.9335},
		Scale:    1,
	}
	snap, err := m.OpenSession("dev-1", "exp-txakoli", anchor)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	// With the override pinned to the anchor, no real fix is needed.
	if snap.State != domain.StatePositioning {
		t.Fatalf("expected positioning via override, got %s", snap.State)
	}
	best := m.Device("dev-1").BestPosition()
	if best.Source != domain.SourceOverride {
		t.Fatalf("expected override source, got %s", best.Source)
	}
	if best.Position.Location != anchor.Location {
		t.Errorf("override should pin to the anchor, got %+v", best.Position.Location)
	}
}

func TestSessionManager_ProjectAnchorTracksReference(t *testing.T) {
	clock := newFakeClock()
	m := usecases.NewSessionManager(testManagerConfig(), clock, nil, nil, nil)
	ds := m.Device("dev-1")

	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: 43.2687 + 50.0/metersPerDegreeLat, Lon: -2.9340},
		Scale:    1,
	}

	if _, ok := ds.ProjectAnchor(anchor); ok {
		t.Fatal("expected no projection before any fix")
	}

	_, _ = m.IngestFix(context.Background(), "dev-1", domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687, Lon: -2.9340},
		AccuracyMeters: 5,
		Time:           clock.Now(),
	})
	local, ok := ds.ProjectAnchor(anchor)
	if !ok {
		t.Fatal("expected a projection after a fix")
	}
	if local.Z > -49 || local.Z < -51 {
		t.Errorf("anchor 50 m north: expected z near -50, got %f", local.Z)
	}
}

func TestSessionManager_OverrideFeedsProjection(t *testing.T) {
	clock := newFakeClock()
	m := usecases.NewSessionManager(testManagerConfig(), clock, nil, nil, nil)
	ds := m.Device("dev-1")

	ref := domain.GeoPoint{Lat: 43.2687, Lon: -2.9340}
	anchor := domain.AnchorSpec{
		Location: domain.GeoPoint{Lat: ref.Lat + 50.0/metersPerDegreeLat, Lon: ref.Lon},
		Scale:    1,
	}

	if _, ok := ds.ProjectAnchor(anchor); ok {
		t.Fatal("expected no projection on a fresh device")
	}

	// An operator override must serve as the projection reference the
	// same way it serves the lifecycle: no real fix required.
	ds.Filter.SetOverride(ref)
	if !ds.BestPosition().Usable() {
		t.Fatal("override should make the best position usable")
	}
	local, ok := ds.ProjectAnchor(anchor)
	if !ok {
		t.Fatal("expected a projection from the override reference")
	}
	if local.Z > -49 || local.Z < -51 {
		t.Errorf("anchor 50 m north of override: expected z near -50, got %f", local.Z)
	}

	ds.Filter.ClearOverride()
	if _, ok := ds.ProjectAnchor(anchor); ok {
		t.Fatal("clearing the override with no fixes should drop the reference")
	}
}

func TestSessionManager_ElevationResetsBetweenSessions(t *testing.T) {
	clock := newFakeClock()
	cfg := testManagerConfig()
	cfg.ElevationBaseM = 1.0
	m := usecases.NewSessionManager(cfg, clock, nil, nil, nil)

	if _, err := m.OpenSession("dev-1", "exp-txakoli", domain.AnchorSpec{Scale: 1}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	ds := m.Device("dev-1")
	ds.Elevation.AdjustGlobal(5)
	if got := ds.Elevation.Offset(); got != 6.0 {
		t.Fatalf("expected offset 6 after adjustment, got %f", got)
	}

	if err := m.CloseSession("dev-1"); err != nil {
		t.Fatalf("close session: %v", err)
	}
	clock.Advance(time.Second)

	if got := ds.Elevation.Offset(); got != 1.0 {
		t.Errorf("close must restore the elevation baseline, got %f", got)
	}

	if _, err := m.OpenSession("dev-1", "exp-bertso", domain.AnchorSpec{Scale: 1}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := ds.Elevation.Offset(); got != 1.0 {
		t.Errorf("new session must start at the baseline, got %f", got)
	}
}

func TestSessionManager_CloseDuringGraceRejected(t *testing.T) {
	clock := newFakeClock()
	m := usecases.NewSessionManager(testManagerConfig(), clock, nil, nil, nil)

	if _, err := m.OpenSession("dev-1", "exp-txakoli", domain.AnchorSpec{Scale: 1}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := m.CloseSession("dev-1"); err != nil {
		t.Fatalf("first close: %v", err)
	}

	// The grace window has not elapsed, so the session is still
	// completing; a second close must not move the metrics again.
	if err := m.CloseSession("dev-1"); err == nil {
		t.Fatal("expected a close during the grace window to be rejected")
	}

	clock.Advance(time.Second)
	if got := m.Snapshot("dev-1").State; got != domain.StateClosed {
		t.Fatalf("expected closed after the grace window, got %s", got)
	}
	if err := m.CloseSession("dev-1"); err == nil {
		t.Fatal("expected closing a closed session to be rejected")
	}
}
