package domain

import "time"

// GeoFix is a single raw reading from a device location source.
// Immutable once created.
type GeoFix struct {
	Location       GeoPoint  `json:"location"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Time           time.Time `json:"time"`
}

// PositionQuality classifies a position estimate by its accuracy figure.
type PositionQuality int

const (
	QualityPoor PositionQuality = iota
	QualityFair
	QualityGood
	QualityExcellent
)

func (q PositionQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	default:
		return "poor"
	}
}

// QualityTiers holds the accuracy cutoffs (meters) separating quality
// levels. The cutoffs are product configuration, not domain law.
type QualityTiers struct {
	ExcellentM float64
	GoodM      float64
	FairM      float64
}

// Classify maps an accuracy figure onto a quality tier.
func (t QualityTiers) Classify(accuracyMeters float64) PositionQuality {
	switch {
	case accuracyMeters <= t.ExcellentM:
		return QualityExcellent
	case accuracyMeters <= t.GoodM:
		return QualityGood
	case accuracyMeters <= t.FairM:
		return QualityFair
	default:
		return QualityPoor
	}
}

// StabilizedPosition is the filtered, outlier-resistant estimate of the
// user's location. A new value replaces the previous one atomically;
// readers never observe a partial update.
type StabilizedPosition struct {
	Location       GeoPoint        `json:"location"`
	AccuracyMeters float64         `json:"accuracy_meters"`
	Quality        PositionQuality `json:"quality"`
	Stable         bool            `json:"stable"`
	Time           time.Time       `json:"time"`
}

// PositionSource identifies which fallback tier produced a best-available
// position. The ordering is the priority order of the decision.
type PositionSource int

const (
	SourceNone PositionSource = iota
	SourceRawFix
	SourceAcceptableAverage
	SourceStableAverage
	SourceOverride
)

func (s PositionSource) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceStableAverage:
		return "stable_average"
	case SourceAcceptableAverage:
		return "acceptable_average"
	case SourceRawFix:
		return "raw_fix"
	default:
		return "none"
	}
}

// BestPosition is the outcome of the best-available-position decision.
// When Source is SourceNone the Position field is meaningless and
// dependents must treat the system as not ready.
type BestPosition struct {
	Source   PositionSource     `json:"source"`
	Position StabilizedPosition `json:"position"`
}

// Usable reports whether any position at all is available.
func (b BestPosition) Usable() bool {
	return b.Source != SourceNone
}
