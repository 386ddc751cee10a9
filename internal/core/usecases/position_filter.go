package usecases

import (
	"sync"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/pkg/geospatial"
)

// PositionFilterConfig carries the tunable constants of the fix filter.
type PositionFilterConfig struct {
	// WindowSize bounds the sliding window of recent fixes.
	WindowSize int
	// OutlierDistanceM is how far from the running mean a fix may land
	// before it is rejected, when it arrives within OutlierWindow of the
	// previous fix.
	OutlierDistanceM float64
	OutlierWindow    time.Duration
	// StabilityToleranceM bounds the window spread for a fix to count
	// towards stability.
	StabilityToleranceM float64
	// MinStableFixes is how many consecutive in-tolerance fixes are
	// required before the estimate is declared stable.
	MinStableFixes int
	// TightAccuracyM and AcceptableAccuracyM are the accuracy bars for
	// the stable-average and acceptable-average fallback tiers.
	TightAccuracyM      float64
	AcceptableAccuracyM float64
	Tiers               domain.QualityTiers
}

// PositionFilter turns a stream of raw device fixes into a stabilized
// estimate. Stability is pessimistic: slow to gain (a run of consecutive
// in-tolerance fixes is required), fast to lose (a single accepted fix
// outside tolerance clears it). Rejected outliers do not touch the
// window and therefore cannot clear stability either.
//
// Safe for concurrent use; all state is guarded by a single mutex.
type PositionFilter struct {
	mu  sync.Mutex
	cfg PositionFilterConfig

	window   []domain.GeoFix
	lastRaw  *domain.GeoFix
	current  *domain.StabilizedPosition
	override *domain.GeoPoint

	stableStreak int
	stable       bool
	rejected     uint64
}

// NewPositionFilter creates a filter with the given tuning.
func NewPositionFilter(cfg PositionFilterConfig) *PositionFilter {
	if cfg.WindowSize < 2 {
		cfg.WindowSize = 8
	}
	if cfg.MinStableFixes < 1 {
		cfg.MinStableFixes = 3
	}
	return &PositionFilter{
		cfg:    cfg,
		window: make([]domain.GeoFix, 0, cfg.WindowSize),
	}
}

// Ingest feeds one raw fix through the filter and returns the refreshed
// estimate. The second return is false when the fix was rejected as an
// outlier; the returned estimate is then the unchanged previous one.
func (f *PositionFilter) Ingest(fix domain.GeoFix) (domain.StabilizedPosition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isOutlier(fix) {
		f.rejected++
		f.lastRaw = &fix
		if f.current != nil {
			return *f.current, false
		}
		return domain.StabilizedPosition{}, false
	}

	f.lastRaw = &fix
	f.window = append(f.window, fix)
	if len(f.window) > f.cfg.WindowSize {
		f.window = f.window[1:]
	}

	mean, avgAcc := f.windowMean()
	spread := f.windowSpread(mean)

	if spread <= f.cfg.StabilityToleranceM {
		f.stableStreak++
		if f.stableStreak >= f.cfg.MinStableFixes {
			f.stable = true
		}
	} else {
		f.stableStreak = 0
		f.stable = false
	}

	pos := domain.StabilizedPosition{
		Location:       mean,
		AccuracyMeters: avgAcc,
		Quality:        f.cfg.Tiers.Classify(avgAcc),
		Stable:         f.stable,
		Time:           fix.Time,
	}
	f.current = &pos
	return pos, true
}

// isOutlier reports whether a fix is implausibly far from the running
// mean given how recently the previous fix arrived. Called with the
// lock held.
func (f *PositionFilter) isOutlier(fix domain.GeoFix) bool {
	if len(f.window) == 0 || f.cfg.OutlierDistanceM <= 0 {
		return false
	}
	prev := f.window[len(f.window)-1]
	if f.cfg.OutlierWindow > 0 && fix.Time.Sub(prev.Time) > f.cfg.OutlierWindow {
		// Enough time has passed that a large jump may be real movement.
		return false
	}
	mean, _ := f.windowMean()
	dist := geospatial.Haversine(mean.Lat, mean.Lon, fix.Location.Lat, fix.Location.Lon)
	return dist > f.cfg.OutlierDistanceM
}

func (f *PositionFilter) windowMean() (domain.GeoPoint, float64) {
	var lat, lon, acc float64
	for _, fx := range f.window {
		lat += fx.Location.Lat
		lon += fx.Location.Lon
		acc += fx.AccuracyMeters
	}
	n := float64(len(f.window))
	return domain.GeoPoint{Lat: lat / n, Lon: lon / n}, acc / n
}

func (f *PositionFilter) windowSpread(mean domain.GeoPoint) float64 {
	var max float64
	for _, fx := range f.window {
		d := geospatial.Haversine(mean.Lat, mean.Lon, fx.Location.Lat, fx.Location.Lon)
		if d > max {
			max = d
		}
	}
	return max
}

// Current returns the latest averaged estimate, if any fix has been
// accepted yet.
func (f *PositionFilter) Current() (domain.StabilizedPosition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return domain.StabilizedPosition{}, false
	}
	return *f.current, true
}

// Stable reports whether the estimate currently satisfies the stability
// run requirement.
func (f *PositionFilter) Stable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stable
}

// RejectedCount returns how many fixes have been dropped as outliers.
func (f *PositionFilter) RejectedCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rejected
}

// SetOverride pins the filter to a fixed point, taking priority over
// every measured source. Used by test mode and operator tooling.
func (f *PositionFilter) SetOverride(p domain.GeoPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = &p
}

// ClearOverride removes a previously set override.
func (f *PositionFilter) ClearOverride() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = nil
}

// Reset drops all accumulated state, returning the filter to its
// just-constructed condition.
func (f *PositionFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = f.window[:0]
	f.lastRaw = nil
	f.current = nil
	f.override = nil
	f.stableStreak = 0
	f.stable = false
}

// Best returns the best available position following the fallback
// priority: override, stable average within the tight accuracy bar,
// average within the acceptable bar, raw last-known fix, none.
func (f *PositionFilter) Best() domain.BestPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return decideBest(f.override, f.current, f.lastRaw, f.cfg)
}

// decideBest is the pure priority decision over the available sources.
// Kept free of filter state so the ordering can be tested directly.
func decideBest(override *domain.GeoPoint, avg *domain.StabilizedPosition, raw *domain.GeoFix, cfg PositionFilterConfig) domain.BestPosition {
	if override != nil {
		return domain.BestPosition{
			Source: domain.SourceOverride,
			Position: domain.StabilizedPosition{
				Location: *override,
				Quality:  domain.QualityExcellent,
				Stable:   true,
			},
		}
	}
	if avg != nil {
		if avg.Stable && avg.AccuracyMeters <= cfg.TightAccuracyM {
			return domain.BestPosition{Source: domain.SourceStableAverage, Position: *avg}
		}
		if avg.AccuracyMeters <= cfg.AcceptableAccuracyM {
			return domain.BestPosition{Source: domain.SourceAcceptableAverage, Position: *avg}
		}
	}
	if raw != nil {
		return domain.BestPosition{
			Source: domain.SourceRawFix,
			Position: domain.StabilizedPosition{
				Location:       raw.Location,
				AccuracyMeters: raw.AccuracyMeters,
				Quality:        cfg.Tiers.Classify(raw.AccuracyMeters),
				Time:           raw.Time,
			},
		}
	}
	return domain.BestPosition{Source: domain.SourceNone}
}
