package usecases

import (
	"fmt"
	"sync"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
)

// GestureHandler receives a gesture event. The value carries the
// gesture magnitude (rotation degrees, scale factor delta); reset and
// swipe gestures ignore it.
type GestureHandler func(value float64)

// ExperienceCallbacks are the external collaborators notified by the
// lifecycle controller. Any field may be nil.
type ExperienceCallbacks struct {
	// OnStateChange fires on every transition, after internal state has
	// been updated.
	OnStateChange func(snapshot domain.SessionSnapshot)
	// OnCompletion fires at most once per session, only when the
	// minimum engagement was met before the close request.
	OnCompletion func(snapshot domain.SessionSnapshot, engaged time.Duration)
	// OnClosed fires after the close grace period has elapsed.
	OnClosed func(sessionID string)
}

// ExperienceConfig carries the lifecycle tuning.
type ExperienceConfig struct {
	MinEngagement time.Duration
	CloseGrace    time.Duration
}

// ExperienceController owns the lifecycle of one opened experience:
//
//	Closed -> AwaitingPosition -> Positioning -> Active -> Completing -> Closed
//
// plus a ContentError side state that still permits closing. It also
// multiplexes gesture input to whichever content module is currently
// mounted through a single-slot registry per gesture kind.
//
// Closing is never blocked; only the completion signal is conditional
// on the engagement gate.
type ExperienceController struct {
	mu    sync.Mutex
	clock ports.Clock
	cfg   ExperienceConfig
	cb    ExperienceCallbacks

	state      domain.ExperienceState
	session    domain.SessionSnapshot
	generation uint64

	placedToken  string
	contentReady bool
	contentErr   error

	activeAt        time.Time
	engagementMet   bool
	engagementTimer ports.Timer
	completionSent  bool

	gestures map[domain.GestureKind]GestureHandler
}

// NewExperienceController creates an idle controller. clock drives the
// engagement and close-grace timers.
func NewExperienceController(clock ports.Clock, cfg ExperienceConfig, cb ExperienceCallbacks) *ExperienceController {
	return &ExperienceController{
		clock:    clock,
		cfg:      cfg,
		cb:       cb,
		state:    domain.StateClosed,
		gestures: make(map[domain.GestureKind]GestureHandler),
	}
}

// Open starts a new session for the given experience and anchor. Only
// one session may be open at a time; a second open while the previous
// session has not closed is a caller-discipline bug and is rejected.
func (c *ExperienceController) Open(sessionID, deviceID, experienceID string, anchor domain.AnchorSpec) error {
	c.mu.Lock()
	if c.state != domain.StateClosed {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("session %s still %s: cannot open a second session", c.session.SessionID, state)
	}

	c.generation++
	c.resetSessionLocked()
	c.session = domain.SessionSnapshot{
		SessionID:    sessionID,
		DeviceID:     deviceID,
		ExperienceID: experienceID,
		Anchor:       anchor,
		OpenedAt:     c.clock.Now(),
	}
	c.setStateLocked(domain.StateAwaitingPosition)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyState(snap)
	return nil
}

// NotifyPosition informs the controller of the best available position.
// The first usable position advances AwaitingPosition to Positioning;
// quality is an entry concern only, so no minimum bar applies here and
// later positions never move the state backwards.
func (c *ExperienceController) NotifyPosition(best domain.BestPosition) {
	c.mu.Lock()
	if c.state != domain.StateAwaitingPosition || !best.Usable() {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(domain.StatePositioning)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyState(snap)
}

// OnPlacementConfirmed records that the camera collaborator has placed
// the anchor object in the scene. token identifies the scene/camera
// pair; a repeated callback with the same token is a duplicate from the
// camera layer and is ignored.
func (c *ExperienceController) OnPlacementConfirmed(token string) {
	c.mu.Lock()
	if c.state != domain.StatePositioning || c.placedToken == token {
		c.mu.Unlock()
		return
	}
	c.placedToken = token
	c.session.Placed = true
	c.session.PlacedAt = c.clock.Now()
	snap, activated := c.maybeActivateLocked()
	c.mu.Unlock()

	if activated {
		c.notifyState(snap)
	}
}

// OnContentReady records that the mounted content module finished
// loading its assets.
func (c *ExperienceController) OnContentReady() {
	c.mu.Lock()
	if c.state != domain.StatePositioning {
		c.mu.Unlock()
		return
	}
	c.contentReady = true
	snap, activated := c.maybeActivateLocked()
	c.mu.Unlock()

	if activated {
		c.notifyState(snap)
	}
}

// maybeActivateLocked transitions to Active once both the placement
// callback and content readiness have arrived. Starts the engagement
// timer at that moment, not at open.
func (c *ExperienceController) maybeActivateLocked() (domain.SessionSnapshot, bool) {
	if c.placedToken == "" || !c.contentReady {
		return domain.SessionSnapshot{}, false
	}
	c.setStateLocked(domain.StateActive)
	c.activeAt = c.clock.Now()

	gen := c.generation
	c.engagementTimer = c.clock.AfterFunc(c.cfg.MinEngagement, func() {
		c.markEngagementMet(gen)
	})
	return c.snapshotLocked(), true
}

func (c *ExperienceController) markEngagementMet(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A stray timer from an already-closed session must be a no-op.
	if c.generation != gen || c.state != domain.StateActive {
		return
	}
	c.engagementMet = true
}

// OnContentError records a content-module load failure. The session
// stays open so the user can still close it; the error is observable
// state, not a crash.
func (c *ExperienceController) OnContentError(err error) {
	c.mu.Lock()
	if c.state == domain.StateClosed || c.state == domain.StateCompleting {
		c.mu.Unlock()
		return
	}
	c.contentErr = err
	c.setStateLocked(domain.StateContentError)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notifyState(snap)
}

// ContentError returns the recorded content failure, if any.
func (c *ExperienceController) ContentError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentErr
}

// RequestClose begins teardown from any open state. The completion
// signal fires only if the engagement gate was met, and at most once;
// the close itself always proceeds. The external closed callback runs
// after a short grace period so in-flight UI transitions can finish.
func (c *ExperienceController) RequestClose() {
	c.mu.Lock()
	if c.state == domain.StateClosed || c.state == domain.StateCompleting {
		c.mu.Unlock()
		return
	}

	if c.engagementTimer != nil {
		c.engagementTimer.Stop()
		c.engagementTimer = nil
	}

	var engaged time.Duration
	emitCompletion := c.engagementMet && !c.completionSent
	if emitCompletion {
		c.completionSent = true
		engaged = c.clock.Now().Sub(c.activeAt)
	}

	c.setStateLocked(domain.StateCompleting)
	snap := c.snapshotLocked()

	gen := c.generation
	c.clock.AfterFunc(c.cfg.CloseGrace, func() {
		c.finalizeClose(gen)
	})
	c.mu.Unlock()

	if emitCompletion && c.cb.OnCompletion != nil {
		c.cb.OnCompletion(snap, engaged)
	}
	c.notifyState(snap)
}

func (c *ExperienceController) finalizeClose(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.state != domain.StateCompleting {
		c.mu.Unlock()
		return
	}
	sessionID := c.session.SessionID
	c.resetSessionLocked()
	c.setStateLocked(domain.StateClosed)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.cb.OnClosed != nil {
		c.cb.OnClosed(sessionID)
	}
	c.notifyState(snap)
}

// resetSessionLocked clears all per-session state: gesture registry,
// placement and readiness flags, engagement tracking. Called on close
// and again defensively on open.
func (c *ExperienceController) resetSessionLocked() {
	if c.engagementTimer != nil {
		c.engagementTimer.Stop()
		c.engagementTimer = nil
	}
	c.gestures = make(map[domain.GestureKind]GestureHandler)
	c.placedToken = ""
	c.contentReady = false
	c.contentErr = nil
	c.activeAt = time.Time{}
	c.engagementMet = false
	c.completionSent = false
}

// RegisterGesture claims the slot for one gesture kind. Registration
// replaces any previous handler; content modules register at mount,
// and all slots are cleared when the session closes so a stale module
// can never receive input meant for its successor.
func (c *ExperienceController) RegisterGesture(kind domain.GestureKind, h GestureHandler) error {
	if !domain.KnownGesture(kind) {
		return fmt.Errorf("unknown gesture kind %q", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateClosed {
		return fmt.Errorf("no open session to register %s handler on", kind)
	}
	c.gestures[kind] = h
	return nil
}

// Gesture routes one input event to the currently registered handler.
// Returns false when no handler holds the slot.
func (c *ExperienceController) Gesture(kind domain.GestureKind, value float64) bool {
	c.mu.Lock()
	h, ok := c.gestures[kind]
	c.mu.Unlock()
	if !ok || h == nil {
		return false
	}
	h(value)
	return true
}

// State returns the current lifecycle state.
func (c *ExperienceController) State() domain.ExperienceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EngagementMet reports whether the minimum engagement duration has
// elapsed in the current session.
func (c *ExperienceController) EngagementMet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engagementMet
}

// Snapshot returns a read-only view of the current session.
func (c *ExperienceController) Snapshot() domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ExperienceController) setStateLocked(s domain.ExperienceState) {
	c.state = s
	c.session.State = s
}

func (c *ExperienceController) snapshotLocked() domain.SessionSnapshot {
	snap := c.session
	snap.ContentReady = c.contentReady
	snap.EngagementMet = c.engagementMet
	if c.contentErr != nil {
		snap.ContentError = c.contentErr.Error()
	}
	return snap
}

func (c *ExperienceController) notifyState(snap domain.SessionSnapshot) {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(snap)
	}
}
