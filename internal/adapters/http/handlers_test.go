package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/ortziar/ankora/internal/adapters/http"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
)

// ---- Mock repositories ----

type mockSiteRepo struct {
	listFn    func(ctx context.Context) ([]domain.Site, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Site, error)
}

func (m *mockSiteRepo) Upsert(ctx context.Context, s *domain.Site) error       { return nil }
func (m *mockSiteRepo) UpsertBatch(ctx context.Context, s []domain.Site) error { return nil }
func (m *mockSiteRepo) List(ctx context.Context) ([]domain.Site, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockSiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockSiteRepo) GetBySlug(ctx context.Context, slug string) (*domain.Site, error) {
	return nil, fmt.Errorf("not found")
}

type mockExperienceRepo struct {
	getByIDFn    func(ctx context.Context, id string) (*domain.Experience, error)
	findNearbyFn func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ExperienceWithDistance, error)
}

func (m *mockExperienceRepo) Upsert(ctx context.Context, e *domain.Experience) error       { return nil }
func (m *mockExperienceRepo) UpsertBatch(ctx context.Context, e []domain.Experience) error { return nil }
func (m *mockExperienceRepo) GetByID(ctx context.Context, id string) (*domain.Experience, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("not found")
}
func (m *mockExperienceRepo) ListBySite(ctx context.Context, siteID string) ([]domain.Experience, error) {
	return nil, nil
}
func (m *mockExperienceRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ExperienceWithDistance, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

type mockCompletionRepo struct {
	listByDeviceFn func(ctx context.Context, deviceID string, limit int) ([]domain.Completion, error)
}

func (m *mockCompletionRepo) Insert(ctx context.Context, c *domain.Completion) error { return nil }
func (m *mockCompletionRepo) GetBySession(ctx context.Context, sessionID string) (*domain.Completion, error) {
	return nil, nil
}
func (m *mockCompletionRepo) ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.Completion, error) {
	if m.listByDeviceFn != nil {
		return m.listByDeviceFn(ctx, deviceID, limit)
	}
	return nil, nil
}
func (m *mockCompletionRepo) MarkProgressAwarded(ctx context.Context, id string) error { return nil }
func (m *mockCompletionRepo) Delete(ctx context.Context, id string) error              { return nil }

// ---- Helpers ----

func txakoliExperience() *domain.Experience {
	return &domain.Experience{
		ID:     "exp-1",
		SiteID: "site-1",
		Slug:   "txakoli-terrace",
		Title:  "Txakoli Terrace",
		Anchor: domain.AnchorSpec{
			Location:        domain.GeoPoint{Lat: 43.2690, Lon: -2.9335},
			ElevationMeters: 1.5,
			Scale:           1.0,
		},
		Published: true,
	}
}

func managerConfig() usecases.SessionManagerConfig {
	return usecases.SessionManagerConfig{
		Filter: usecases.PositionFilterConfig{
			WindowSize:          8,
			OutlierDistanceM:    25,
			OutlierWindow:       10 * time.Second,
			StabilityToleranceM: 4,
			MinStableFixes:      3,
			TightAccuracyM:      10,
			AcceptableAccuracyM: 20,
			Tiers:               domain.QualityTiers{ExcellentM: 5, GoodM: 10, FairM: 15},
		},
		Experience: usecases.ExperienceConfig{
			MinEngagement: 5 * time.Second,
			CloseGrace:    10 * time.Millisecond,
		},
		CoordinateScale: 1.0,
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Sessions:    usecases.NewSessionManager(managerConfig(), nil, nil, nil, nil),
		Catalog:     usecases.NewCatalogService(&mockSiteRepo{}, &mockExperienceRepo{}, nil),
		Completions: usecases.NewCompletionService(&mockCompletionRepo{}, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---- Catalog handler tests ----

func TestListSites_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewCatalogService(&mockSiteRepo{
			listFn: func(ctx context.Context) ([]domain.Site, error) {
				return []domain.Site{
					{ID: "s1", Slug: "guggenheim", Name: "Guggenheim Bilbao"},
					{ID: "s2", Slug: "casco-viejo", Name: "Casco Viejo"},
				}, nil
			},
		}, &mockExperienceRepo{}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Site `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 sites, got %d", len(result.Data))
	}
}

func TestNearbyExperiences_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewCatalogService(&mockSiteRepo{}, &mockExperienceRepo{
			findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.ExperienceWithDistance, error) {
				exp := txakoliExperience()
				return []domain.ExperienceWithDistance{
					{Experience: *exp, DistanceMeters: 42},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/experiences/nearby?lat=43.2687&lon=-2.9340&radius=500", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var exps []domain.ExperienceWithDistance
	json.NewDecoder(resp.Body).Decode(&exps)
	if len(exps) != 1 {
		t.Fatalf("expected 1 experience, got %d", len(exps))
	}
	if exps[0].DistanceMeters != 42 {
		t.Errorf("expected distance 42, got %f", exps[0].DistanceMeters)
	}
}

func TestNearbyExperiences_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/experiences/nearby", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

// ---- Positioning handler tests ----

func TestIngestFix_UpdatesPosition(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lat":43.2687,"lon":-2.9340,"accuracy_m":8}`
	req := httptest.NewRequest("POST", "/v1/devices/dev-1/fixes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var pos domain.StabilizedPosition
	json.NewDecoder(resp.Body).Decode(&pos)
	if pos.Quality != domain.QualityGood {
		t.Errorf("expected good quality at 8m, got %s", pos.Quality)
	}

	// Best position should now be servable
	req = httptest.NewRequest("GET", "/v1/devices/dev-1/position", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var best struct {
		Source string `json:"source"`
		Usable bool   `json:"usable"`
	}
	json.NewDecoder(resp.Body).Decode(&best)
	if !best.Usable {
		t.Error("expected a usable position after one good fix")
	}
}

func TestIngestFix_Invalid(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lat":99.9,"lon":-2.9340,"accuracy_m":8}`
	req := httptest.NewRequest("POST", "/v1/devices/dev-1/fixes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for out-of-range lat, got %d", resp.StatusCode)
	}
}

func TestPositionOverride_RoundTrip(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lat":43.2690,"lon":-2.9335}`
	req := httptest.NewRequest("PUT", "/v1/devices/dev-1/position/override", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/v1/devices/dev-1/position", nil)
	resp, _ = app.Test(req, -1)
	var best struct {
		Source string `json:"source"`
	}
	json.NewDecoder(resp.Body).Decode(&best)
	if best.Source != "override" {
		t.Fatalf("expected override source, got %s", best.Source)
	}

	req = httptest.NewRequest("DELETE", "/v1/devices/dev-1/position/override", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

// ---- Session handler tests ----

func openTestSession(t *testing.T, app *fiber.App) {
	t.Helper()
	body := `{"device_id":"dev-1","experience_id":"exp-1"}`
	req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("open session: expected 201, got %d", resp.StatusCode)
	}
}

func depsWithCatalog() *handler.Dependencies {
	return makeDeps(func(d *handler.Dependencies) {
		d.Catalog = usecases.NewCatalogService(&mockSiteRepo{}, &mockExperienceRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Experience, error) {
				if id == "exp-1" {
					return txakoliExperience(), nil
				}
				return nil, fmt.Errorf("not found")
			},
		}, nil)
	})
}

func TestOpenSession_Lifecycle(t *testing.T) {
	app := setupApp(depsWithCatalog())
	openTestSession(t, app)

	// Second open for the same device conflicts
	body := `{"device_id":"dev-1","experience_id":"exp-1"}`
	req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 on double open, got %d", resp.StatusCode)
	}

	// Feed a fix, confirm placement, flag content ready
	fixBody := `{"lat":43.2687,"lon":-2.9340,"accuracy_m":8}`
	req = httptest.NewRequest("POST", "/v1/devices/dev-1/fixes", strings.NewReader(fixBody))
	req.Header.Set("Content-Type", "application/json")
	app.Test(req, -1)

	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/placement", strings.NewReader(`{"token":"scene-1/cam-1"}`))
	req.Header.Set("Content-Type", "application/json")
	app.Test(req, -1)

	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/content/ready", nil)
	resp, _ = app.Test(req, -1)
	var snap domain.SessionSnapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.State != domain.StateActive {
		t.Fatalf("expected active session, got %s", snap.State)
	}

	// Close
	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/close", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202 on close, got %d", resp.StatusCode)
	}
}

func TestOpenSession_UnknownExperience(t *testing.T) {
	app := setupApp(depsWithCatalog())

	body := `{"device_id":"dev-1","experience_id":"exp-nope"}`
	req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGesture_UnclaimedSlot(t *testing.T) {
	app := setupApp(depsWithCatalog())
	openTestSession(t, app)

	req := httptest.NewRequest("POST", "/v1/sessions/dev-1/gestures/rotate", strings.NewReader(`{"value":15}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Handled bool `json:"handled"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Handled {
		t.Error("gesture with no claimed slot must report handled=false")
	}

	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/gestures/pinch", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for unknown gesture kind, got %d", resp.StatusCode)
	}
}

func TestElevation_AdjustAndReset(t *testing.T) {
	app := setupApp(depsWithCatalog())

	req := httptest.NewRequest("POST", "/v1/sessions/dev-1/elevation/adjust", strings.NewReader(`{"delta_m":0.4}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	var result struct {
		OffsetM float64 `json:"offset_m"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.OffsetM != 0.4 {
		t.Fatalf("expected offset 0.4, got %f", result.OffsetM)
	}

	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/elevation/reset", nil)
	resp, _ = app.Test(req, -1)
	json.NewDecoder(resp.Body).Decode(&result)
	if result.OffsetM != 0 {
		t.Fatalf("expected offset 0 after reset, got %f", result.OffsetM)
	}
}

func TestProjectAnchor_NoPosition(t *testing.T) {
	app := setupApp(depsWithCatalog())

	body := `{"lat":43.2690,"lon":-2.9335,"elevation_m":1.5,"scale":1}`
	req := httptest.NewRequest("POST", "/v1/sessions/dev-9/anchor/project", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 without a position, got %d", resp.StatusCode)
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "position_unavailable" {
		t.Errorf("expected position_unavailable, got %s", apiErr.Code)
	}
}

func TestProjectAnchor_WithPosition(t *testing.T) {
	app := setupApp(depsWithCatalog())

	fixBody := `{"lat":43.2687,"lon":-2.9340,"accuracy_m":5}`
	req := httptest.NewRequest("POST", "/v1/devices/dev-1/fixes", strings.NewReader(fixBody))
	req.Header.Set("Content-Type", "application/json")
	app.Test(req, -1)

	body := `{"lat":43.2690,"lon":-2.9335,"elevation_m":1.5,"scale":1}`
	req = httptest.NewRequest("POST", "/v1/sessions/dev-1/anchor/project", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var local domain.LocalPosition
	json.NewDecoder(resp.Body).Decode(&local)
	if local.Y != 1.5 {
		t.Errorf("expected y = anchor elevation 1.5, got %f", local.Y)
	}
	if local.Z >= 0 {
		t.Errorf("anchor to the north must have negative z, got %f", local.Z)
	}
}

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
