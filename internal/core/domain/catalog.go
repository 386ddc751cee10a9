package domain

import "time"

// Site is a physical heritage location hosting one or more anchored
// experiences.
type Site struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Location    GeoPoint `json:"location"`
	Municipality string  `json:"municipality,omitempty"`
}

// Experience is a piece of anchored content published at a site.
type Experience struct {
	ID              string     `json:"id"`
	SiteID          string     `json:"site_id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary,omitempty"`
	Anchor          AnchorSpec `json:"anchor"`
	ContentURL      string     `json:"content_url,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	Published       bool       `json:"published"`
}

// ExperienceWithDistance pairs an experience with its distance from a
// query point, for nearby searches.
type ExperienceWithDistance struct {
	Experience
	DistanceMeters float64 `json:"distance_meters"`
}

// Completion records that a device finished an experience after
// sufficient engagement. At most one record per (device, session).
type Completion struct {
	ID               string        `json:"id"`
	SessionID        string        `json:"session_id"`
	DeviceID         string        `json:"device_id"`
	ExperienceID     string        `json:"experience_id"`
	EngagedFor       time.Duration `json:"engaged_for"`
	CompletedAt      time.Time     `json:"completed_at"`
	ProgressAwarded  bool          `json:"progress_awarded"`
	NotificationSent bool          `json:"notification_sent"`
}
