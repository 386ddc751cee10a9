package usecases_test

import (
	"testing"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
)

func testFilterConfig() usecases.PositionFilterConfig {
	return usecases.PositionFilterConfig{
		WindowSize:          8,
		OutlierDistanceM:    25,
		OutlierWindow:       10 * time.Second,
		StabilityToleranceM: 4,
		MinStableFixes:      3,
		TightAccuracyM:      10,
		AcceptableAccuracyM: 20,
		Tiers:               domain.QualityTiers{ExcellentM: 5, GoodM: 10, FairM: 15},
	}
}

// guggenheimFixes returns n fixes jittered within ~1 m of the museum,
// one second apart.
func guggenheimFixes(n int, accuracy float64) []domain.GeoFix {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	fixes := make([]domain.GeoFix, n)
	for i := range fixes {
		jitter := float64(i%3) * 0.000005 // < 1 m
		fixes[i] = domain.GeoFix{
			Location:       domain.GeoPoint{Lat: 43.2687 + jitter, Lon: -2.9340},
			AccuracyMeters: accuracy,
			Time:           base.Add(time.Duration(i) * time.Second),
		}
	}
	return fixes
}

func TestPositionFilter_StabilityGained(t *testing.T) {
	f := usecases.NewPositionFilter(testFilterConfig())

	for i, fix := range guggenheimFixes(6, 5) {
		pos, accepted := f.Ingest(fix)
		if !accepted {
			t.Fatalf("fix %d unexpectedly rejected", i)
		}
		if i < 2 && pos.Stable {
			t.Errorf("stable after only %d fixes", i+1)
		}
	}

	if !f.Stable() {
		t.Fatal("expected stability after 6 low-variance fixes")
	}

	pos, ok := f.Current()
	if !ok {
		t.Fatal("expected a current estimate")
	}
	if pos.Quality != domain.QualityExcellent {
		t.Errorf("expected excellent quality at 5m accuracy, got %s", pos.Quality)
	}
}

func TestPositionFilter_OutlierSuppressed(t *testing.T) {
	f := usecases.NewPositionFilter(testFilterConfig())

	fixes := guggenheimFixes(6, 5)
	for _, fix := range fixes {
		f.Ingest(fix)
	}
	if !f.Stable() {
		t.Fatal("precondition: expected a stable estimate")
	}
	before, _ := f.Current()

	// A single wild fix ~100 m away, one second after the last good one.
	outlier := domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687 + 0.0009, Lon: -2.9340},
		AccuracyMeters: 5,
		Time:           fixes[len(fixes)-1].Time.Add(time.Second),
	}
	pos, accepted := f.Ingest(outlier)
	if accepted {
		t.Fatal("expected outlier to be rejected")
	}
	if !f.Stable() {
		t.Error("a single rejected outlier must not clear stability")
	}
	if pos.Location != before.Location {
		t.Error("rejected outlier must not move the estimate")
	}
	if f.RejectedCount() != 1 {
		t.Errorf("expected 1 rejected fix, got %d", f.RejectedCount())
	}
}

func TestPositionFilter_LargeJumpAfterSilenceAccepted(t *testing.T) {
	f := usecases.NewPositionFilter(testFilterConfig())

	fixes := guggenheimFixes(4, 5)
	for _, fix := range fixes {
		f.Ingest(fix)
	}

	// Same displacement, but 30 s after the last fix: plausibly real
	// movement, so it must pass the outlier gate.
	moved := domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687 + 0.0009, Lon: -2.9340},
		AccuracyMeters: 5,
		Time:           fixes[len(fixes)-1].Time.Add(30 * time.Second),
	}
	pos, accepted := f.Ingest(moved)
	if !accepted {
		t.Fatal("expected post-silence jump to be accepted")
	}
	if pos.Stable {
		t.Error("a jump outside tolerance must clear stability")
	}
}

func TestPositionFilter_StabilityLostOnSpread(t *testing.T) {
	f := usecases.NewPositionFilter(testFilterConfig())

	fixes := guggenheimFixes(5, 5)
	for _, fix := range fixes {
		f.Ingest(fix)
	}
	if !f.Stable() {
		t.Fatal("precondition: expected a stable estimate")
	}

	// 10 m shift: inside the 25 m outlier gate, outside the 4 m
	// stability tolerance.
	drift := domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687 + 0.00009, Lon: -2.9340},
		AccuracyMeters: 5,
		Time:           fixes[len(fixes)-1].Time.Add(time.Second),
	}
	pos, accepted := f.Ingest(drift)
	if !accepted {
		t.Fatal("drift fix should pass the outlier gate")
	}
	if pos.Stable {
		t.Error("stability must drop immediately when the spread exceeds tolerance")
	}
}

func TestPositionFilter_BestPriorityOrder(t *testing.T) {
	f := usecases.NewPositionFilter(testFilterConfig())

	if best := f.Best(); best.Source != domain.SourceNone {
		t.Fatalf("empty filter: expected none, got %s", best.Source)
	}

	// A lone poor-accuracy fix only qualifies as a raw fallback.
	f.Ingest(domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687, Lon: -2.9340},
		AccuracyMeters: 30,
		Time:           time.Now(),
	})
	if best := f.Best(); best.Source != domain.SourceRawFix {
		t.Fatalf("expected raw_fix, got %s", best.Source)
	}

	f.Reset()
	f.Ingest(domain.GeoFix{
		Location:       domain.GeoPoint{Lat: 43.2687, Lon: -2.9340},
		AccuracyMeters: 15,
		Time:           time.Now(),
	})
	if best := f.Best(); best.Source != domain.SourceAcceptableAverage {
		t.Fatalf("expected acceptable_average, got %s", best.Source)
	}

	f.Reset()
	for _, fix := range guggenheimFixes(5, 5) {
		f.Ingest(fix)
	}
	if best := f.Best(); best.Source != domain.SourceStableAverage {
		t.Fatalf("expected stable_average, got %s", best.Source)
	}

	f.SetOverride(domain.GeoPoint{Lat: 43.2600, Lon: -2.9300})
	best := f.Best()
	if best.Source != domain.SourceOverride {
		t.Fatalf("expected override, got %s", best.Source)
	}
	if best.Position.Location.Lat != 43.2600 {
		t.Errorf("override position mismatch: %+v", best.Position.Location)
	}

	f.ClearOverride()
	if best := f.Best(); best.Source != domain.SourceStableAverage {
		t.Fatalf("after clear: expected stable_average, got %s", best.Source)
	}
}

func TestQualityTiers_Classify(t *testing.T) {
	tiers := domain.QualityTiers{ExcellentM: 5, GoodM: 10, FairM: 15}

	cases := []struct {
		accuracy float64
		want     domain.PositionQuality
	}{
		{3, domain.QualityExcellent},
		{5, domain.QualityExcellent},
		{8, domain.QualityGood},
		{15, domain.QualityFair},
		{25, domain.QualityPoor},
	}
	for _, tc := range cases {
		if got := tiers.Classify(tc.accuracy); got != tc.want {
			t.Errorf("Classify(%.0f) = %s, want %s", tc.accuracy, got, tc.want)
		}
	}
}
