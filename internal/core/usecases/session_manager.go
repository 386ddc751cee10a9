package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/pkg/metrics"
)

// SessionManagerConfig aggregates the tuning of all per-device session
// components.
type SessionManagerConfig struct {
	Filter           PositionFilterConfig
	Experience       ExperienceConfig
	CoordinateScale  float64
	ElevationBaseM   float64
	TestModeOverride bool
}

// DeviceSession bundles the positioning and lifecycle state of one
// device: its fix filter, projector, shared elevation state, and the
// experience controller.
type DeviceSession struct {
	DeviceID   string
	Filter     *PositionFilter
	Projector  *Projector
	Elevation  *ElevationState
	Controller *ExperienceController
}

// BestPosition returns the device's best available position.
func (d *DeviceSession) BestPosition() domain.BestPosition {
	return d.Filter.Best()
}

// ProjectAnchor projects an anchor into the device's rendering frame
// from its current best position.
func (d *DeviceSession) ProjectAnchor(anchor domain.AnchorSpec) (domain.LocalPosition, bool) {
	return d.Elevation.WorldPosition(anchor)
}

// SessionManager owns the per-device sessions. It feeds fixes into the
// right filter, advances lifecycle state as positions become usable,
// and relays completions to the progress pipeline.
type SessionManager struct {
	mu      sync.RWMutex
	devices map[string]*DeviceSession

	cfg       SessionManagerConfig
	clock     ports.Clock
	publisher ports.EventPublisher
	fixes     ports.FixRepository
	logger    *slog.Logger
}

// NewSessionManager creates the manager. publisher and fixes may be nil
// in embedded or test use; publishing and persistence are then skipped.
func NewSessionManager(
	cfg SessionManagerConfig,
	clock ports.Clock,
	publisher ports.EventPublisher,
	fixes ports.FixRepository,
	logger *slog.Logger,
) *SessionManager {
	if clock == nil {
		clock = ports.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		devices:   make(map[string]*DeviceSession),
		cfg:       cfg,
		clock:     clock,
		publisher: publisher,
		fixes:     fixes,
		logger:    logger,
	}
}

// session returns the device's session, creating it on first use.
func (m *SessionManager) session(deviceID string) *DeviceSession {
	m.mu.RLock()
	ds, ok := m.devices[deviceID]
	m.mu.RUnlock()
	if ok {
		return ds
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.devices[deviceID]; ok {
		return ds
	}

	filter := NewPositionFilter(m.cfg.Filter)
	projector := NewProjector(m.cfg.CoordinateScale)
	// Projection follows the same fallback ordering as the lifecycle:
	// whatever Best() serves (override included) is the reference frame.
	elevation := NewElevationState(m.cfg.ElevationBaseM, projector, func() (domain.StabilizedPosition, bool) {
		best := filter.Best()
		return best.Position, best.Usable()
	})
	controller := NewExperienceController(m.clock, m.cfg.Experience, ExperienceCallbacks{
		OnStateChange: func(snap domain.SessionSnapshot) {
			m.logger.Debug("session state",
				"device_id", deviceID,
				"session_id", snap.SessionID,
				"state", snap.State.String(),
			)
		},
		OnCompletion: func(snap domain.SessionSnapshot, engaged time.Duration) {
			m.emitCompletion(deviceID, snap, engaged)
		},
		OnClosed: func(sessionID string) {
			// Elevation adjustments are session state: the next session
			// starts from the baseline again.
			elevation.ResetAllAdjustments()
			m.logger.Info("session closed", "device_id", deviceID, "session_id", sessionID)
		},
	})

	ds = &DeviceSession{
		DeviceID:   deviceID,
		Filter:     filter,
		Projector:  projector,
		Elevation:  elevation,
		Controller: controller,
	}
	m.devices[deviceID] = ds
	return ds
}

// Device returns the session bundle for a device, creating it if
// needed.
func (m *SessionManager) Device(deviceID string) *DeviceSession {
	return m.session(deviceID)
}

// IngestFix runs one raw fix through the device's filter, advances the
// lifecycle if the position just became usable, and publishes the
// refreshed estimate.
func (m *SessionManager) IngestFix(ctx context.Context, deviceID string, fix domain.GeoFix) (domain.StabilizedPosition, error) {
	ds := m.session(deviceID)

	pos, accepted := ds.Filter.Ingest(fix)
	if !accepted {
		metrics.FixesRejected.Inc()
		m.logger.Debug("fix rejected as outlier",
			"device_id", deviceID,
			"lat", fix.Location.Lat,
			"lon", fix.Location.Lon,
		)
		return pos, nil
	}
	metrics.PositionQualityObserved.WithLabelValues(pos.Quality.String()).Inc()

	ds.Controller.NotifyPosition(ds.Filter.Best())

	if m.fixes != nil {
		if err := m.fixes.Insert(ctx, deviceID, &fix); err != nil {
			m.logger.Warn("persist fix", "device_id", deviceID, "error", err)
		}
	}
	if m.publisher != nil {
		if err := m.publisher.PublishStabilizedPosition(ctx, deviceID, &pos); err != nil {
			m.logger.Warn("publish position", "device_id", deviceID, "error", err)
		}
	}
	return pos, nil
}

// OpenSession opens an experience session for a device and returns the
// generated session ID.
func (m *SessionManager) OpenSession(deviceID, experienceID string, anchor domain.AnchorSpec) (domain.SessionSnapshot, error) {
	ds := m.session(deviceID)

	sessionID := uuid.NewString()
	if err := ds.Controller.Open(sessionID, deviceID, experienceID, anchor); err != nil {
		return domain.SessionSnapshot{}, err
	}
	metrics.SessionsOpened.WithLabelValues(experienceID).Inc()
	metrics.ActiveSessions.Inc()

	if m.cfg.TestModeOverride {
		ds.Filter.SetOverride(anchor.Location)
	}

	// A position may already be usable from fixes that arrived before
	// the open.
	ds.Controller.NotifyPosition(ds.Filter.Best())

	m.logger.Info("session opened",
		"device_id", deviceID,
		"session_id", sessionID,
		"experience_id", experienceID,
	)
	return ds.Controller.Snapshot(), nil
}

// CloseSession requests teardown of the device's open session. A close
// already in its grace window is rejected so the session metrics move
// exactly once per session.
func (m *SessionManager) CloseSession(deviceID string) error {
	ds := m.session(deviceID)
	switch ds.Controller.State() {
	case domain.StateClosed:
		return fmt.Errorf("device %s has no open session", deviceID)
	case domain.StateCompleting:
		return fmt.Errorf("device %s session is already closing", deviceID)
	}
	if !ds.Controller.EngagementMet() {
		metrics.SessionsAbandoned.WithLabelValues(ds.Controller.Snapshot().ExperienceID).Inc()
	}
	ds.Controller.RequestClose()
	metrics.ActiveSessions.Dec()
	return nil
}

// ConfirmPlacement relays the camera collaborator's placement callback.
func (m *SessionManager) ConfirmPlacement(deviceID, token string) {
	m.session(deviceID).Controller.OnPlacementConfirmed(token)
}

// ContentReady relays the content module's readiness signal.
func (m *SessionManager) ContentReady(deviceID string) {
	m.session(deviceID).Controller.OnContentReady()
}

// ContentFailed relays a content-module load failure.
func (m *SessionManager) ContentFailed(deviceID string, err error) {
	m.session(deviceID).Controller.OnContentError(err)
}

// RegisterGesture claims a gesture slot on the device's open session.
func (m *SessionManager) RegisterGesture(deviceID string, kind domain.GestureKind, h GestureHandler) error {
	return m.session(deviceID).Controller.RegisterGesture(kind, h)
}

// DispatchGesture routes one gesture event and reports whether a
// handler consumed it.
func (m *SessionManager) DispatchGesture(deviceID string, kind domain.GestureKind, value float64) bool {
	handled := m.session(deviceID).Controller.Gesture(kind, value)
	if handled {
		metrics.GestureEvents.WithLabelValues(string(kind)).Inc()
	}
	return handled
}

// Snapshot returns the device's current session view.
func (m *SessionManager) Snapshot(deviceID string) domain.SessionSnapshot {
	return m.session(deviceID).Controller.Snapshot()
}

func (m *SessionManager) emitCompletion(deviceID string, snap domain.SessionSnapshot, engaged time.Duration) {
	comp := &domain.Completion{
		ID:           uuid.NewString(),
		SessionID:    snap.SessionID,
		DeviceID:     deviceID,
		ExperienceID: snap.ExperienceID,
		EngagedFor:   engaged,
		CompletedAt:  m.clock.Now(),
	}
	metrics.SessionsCompleted.WithLabelValues(snap.ExperienceID).Inc()

	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.publisher.PublishCompletion(ctx, comp); err != nil {
		m.logger.Error("publish completion",
			"session_id", snap.SessionID,
			"experience_id", snap.ExperienceID,
			"error", err,
		)
	}
}
