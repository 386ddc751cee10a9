package domain

import "time"

// ExperienceState is the lifecycle phase of an anchored experience
// session. Transitions are owned by the session controller; external
// callers only observe.
type ExperienceState int

const (
	StateClosed ExperienceState = iota
	StateAwaitingPosition
	StatePositioning
	StateActive
	StateCompleting
	StateContentError
)

func (s ExperienceState) String() string {
	switch s {
	case StateAwaitingPosition:
		return "awaiting_position"
	case StatePositioning:
		return "positioning"
	case StateActive:
		return "active"
	case StateCompleting:
		return "completing"
	case StateContentError:
		return "content_error"
	default:
		return "closed"
	}
}

// GestureKind names an interaction slot a content module may claim.
type GestureKind string

const (
	GestureRotate    GestureKind = "rotate"
	GestureScale     GestureKind = "scale"
	GestureReset     GestureKind = "reset"
	GestureSwipeUp   GestureKind = "swipeUp"
	GestureSwipeDown GestureKind = "swipeDown"
)

// KnownGesture reports whether k is one of the supported slots.
func KnownGesture(k GestureKind) bool {
	switch k {
	case GestureRotate, GestureScale, GestureReset, GestureSwipeUp, GestureSwipeDown:
		return true
	}
	return false
}

// SessionSnapshot is a read-only view of a session at a point in time.
// ContentError carries the load-failure message while the session sits
// in the content_error state; clients surface it instead of the bare
// state name.
type SessionSnapshot struct {
	SessionID     string          `json:"session_id"`
	DeviceID      string          `json:"device_id"`
	ExperienceID  string          `json:"experience_id"`
	State         ExperienceState `json:"state"`
	Anchor        AnchorSpec      `json:"anchor"`
	Placed        bool            `json:"placed"`
	ContentReady  bool            `json:"content_ready"`
	EngagementMet bool            `json:"engagement_met"`
	ContentError  string          `json:"content_error,omitempty"`
	OpenedAt      time.Time       `json:"opened_at"`
	PlacedAt      time.Time       `json:"placed_at,omitempty"`
}
