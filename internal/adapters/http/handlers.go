package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/pkg/metrics"
)

// CatalogStats holds row counts from the catalog tables.
type CatalogStats struct {
	Sites       int    `json:"sites"`
	Experiences int    `json:"experiences"`
	Completions int    `json:"completions"`
	Fixes       int    `json:"fixes"`
	LastIngest  string `json:"last_ingest,omitempty"`
}

// CatalogStatsHandler returns row counts from the catalog tables.
func CatalogStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM sites),
				(SELECT count(*) FROM experiences),
				(SELECT count(*) FROM completions),
				(SELECT count(*) FROM device_fixes),
				COALESCE((SELECT max(created_at)::text FROM sites), '')
		`)
		if err := row.Scan(&stats.Sites, &stats.Experiences,
			&stats.Completions, &stats.Fixes, &stats.LastIngest); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListSitesHandler returns all heritage sites.
func ListSitesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sites, err := deps.Catalog.ListSites(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := PageFromQuery(c, len(sites))
		start, end := pg.Bounds()
		sites = sites[start:end]
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sites, Pagination: pg})
	}
}

// GetSiteHandler returns a single site by ID or slug.
func GetSiteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := deps.Catalog.GetSite(c.Context(), c.Params("id"))
		if err != nil || site == nil {
			return errNotFound(c, "site not found")
		}
		return c.JSON(site)
	}
}

// SiteExperiencesHandler returns the experiences published at a site.
func SiteExperiencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exps, err := deps.Catalog.ListBySite(c.Context(), c.Params("id"))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(exps)
	}
}

// NearbyExperiencesHandler returns published experiences within a radius
// of a point, nearest first.
func NearbyExperiencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 500)
		limit := c.QueryInt("limit", 20)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}

		exps, err := deps.Catalog.FindNearby(c.Context(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(exps)
	}
}

// GetExperienceHandler returns a single experience.
func GetExperienceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		exp, err := deps.Catalog.GetExperience(c.Context(), c.Params("id"))
		if err != nil {
			return errNotFound(c, "experience not found")
		}
		return c.JSON(exp)
	}
}

type fixRequest struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	AccuracyM float64    `json:"accuracy_m"`
	Time      *time.Time `json:"time,omitempty"`
}

func (r fixRequest) toFix() domain.GeoFix {
	t := time.Now()
	if r.Time != nil {
		t = *r.Time
	}
	return domain.GeoFix{
		Location:       domain.GeoPoint{Lat: r.Lat, Lon: r.Lon},
		AccuracyMeters: r.AccuracyM,
		Time:           t,
	}
}

func (r fixRequest) validate() error {
	if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
		return errors.New("lat/lon out of range")
	}
	if r.AccuracyM <= 0 {
		return errors.New("accuracy_m must be positive")
	}
	return nil
}

// IngestFixHandler feeds one raw device fix through the position filter
// and returns the refreshed stabilized estimate.
func IngestFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fixRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid fix payload")
		}
		if err := req.validate(); err != nil {
			return errBadRequest(c, err.Error())
		}

		metrics.FixesIngested.WithLabelValues("http").Inc()
		pos, err := deps.Sessions.IngestFix(c.UserContext(), c.Params("id"), req.toFix())
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(pos)
	}
}

// BatchFixesHandler enqueues a burst of fixes onto the durable fix
// stream for asynchronous processing instead of filtering inline.
// Used by gateways uploading backlogged telemetry.
func BatchFixesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Publisher == nil {
			return errInternal(c, "fix stream not available")
		}

		var reqs []fixRequest
		if err := json.Unmarshal(c.Body(), &reqs); err != nil {
			return errBadRequest(c, "invalid fix batch payload")
		}
		if len(reqs) == 0 || len(reqs) > 500 {
			return errBadRequest(c, "batch must contain 1-500 fixes")
		}

		deviceID := c.Params("id")
		for _, req := range reqs {
			if err := req.validate(); err != nil {
				return errBadRequest(c, err.Error())
			}
			fix := req.toFix()
			if err := deps.Publisher.PublishFix(c.UserContext(), deviceID, &fix); err != nil {
				return errInternal(c, err.Error())
			}
			metrics.FixesIngested.WithLabelValues("batch").Inc()
		}
		return c.Status(202).JSON(fiber.Map{"accepted": len(reqs)})
	}
}

// BestPositionHandler returns the device's best available position with
// its fallback source. A "none" source means the device is not ready.
func BestPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		best := deps.Sessions.Device(c.Params("id")).BestPosition()
		return c.JSON(fiber.Map{
			"source":   best.Source.String(),
			"usable":   best.Usable(),
			"position": best.Position,
		})
	}
}

type overrideRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SetOverrideHandler pins the device's position for test mode.
func SetOverrideHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req overrideRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid override payload")
		}
		ds := deps.Sessions.Device(c.Params("id"))
		ds.Filter.SetOverride(domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
		ds.Controller.NotifyPosition(ds.Filter.Best())
		return c.SendStatus(204)
	}
}

// ClearOverrideHandler removes a position override.
func ClearOverrideHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Sessions.Device(c.Params("id")).Filter.ClearOverride()
		return c.SendStatus(204)
	}
}

type openSessionRequest struct {
	DeviceID     string  `json:"device_id"`
	ExperienceID string  `json:"experience_id"`
	ElevationM   float64 `json:"elevation_m"`
	Scale        float64 `json:"scale"`
}

// OpenSessionHandler opens an experience session for a device. The
// anchor comes from the experience catalog; elevation and scale may be
// overridden per session.
func OpenSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openSessionRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid session payload")
		}
		if req.DeviceID == "" || req.ExperienceID == "" {
			return errBadRequest(c, "device_id and experience_id are required")
		}

		exp, err := deps.Catalog.GetExperience(c.UserContext(), req.ExperienceID)
		if err != nil {
			return errNotFound(c, "experience not found")
		}
		if !exp.Published {
			return errNotFound(c, "experience not published")
		}

		anchor := exp.Anchor
		if req.ElevationM != 0 {
			anchor.ElevationMeters = req.ElevationM
		}
		if req.Scale > 0 {
			anchor.Scale = req.Scale
		}

		snap, err := deps.Sessions.OpenSession(req.DeviceID, exp.ID, anchor)
		if err != nil {
			return errConflict(c, err.Error())
		}
		return c.Status(201).JSON(snap)
	}
}

// GetSessionHandler returns the device's current session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Sessions.Snapshot(c.Params("device")))
	}
}

// CloseSessionHandler requests teardown of the device's open session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.CloseSession(c.Params("device")); err != nil {
			return errConflict(c, err.Error())
		}
		return c.SendStatus(202)
	}
}

type placementRequest struct {
	Token string `json:"token"`
}

// PlacementHandler relays the camera collaborator's placed callback.
// Duplicate tokens are absorbed by the session controller.
func PlacementHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req placementRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.Token == "" {
			return errBadRequest(c, "placement token is required")
		}
		deps.Sessions.ConfirmPlacement(c.Params("device"), req.Token)
		return c.JSON(deps.Sessions.Snapshot(c.Params("device")))
	}
}

// ContentReadyHandler relays the content module's readiness signal.
func ContentReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Sessions.ContentReady(c.Params("device"))
		return c.JSON(deps.Sessions.Snapshot(c.Params("device")))
	}
}

type contentErrorRequest struct {
	Message string `json:"message"`
}

// ContentErrorHandler records a content-module load failure.
func ContentErrorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req contentErrorRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.Message == "" {
			return errBadRequest(c, "error message is required")
		}
		deps.Sessions.ContentFailed(c.Params("device"), errors.New(req.Message))
		return c.JSON(deps.Sessions.Snapshot(c.Params("device")))
	}
}

// ClaimGestureHandler claims a gesture slot for the device's mounted
// content module. Routed events are relayed over the broadcast stream
// so the module's WebSocket receives them.
func ClaimGestureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := c.Params("device")
		kind := domain.GestureKind(c.Params("kind"))

		// The relay callback outlives this request; it must not touch
		// the recycled fiber context.
		err := deps.Sessions.RegisterGesture(deviceID, kind, func(value float64) {
			if deps.Publisher == nil {
				return
			}
			data, _ := json.Marshal(fiber.Map{
				"type":      "gesture",
				"device_id": deviceID,
				"kind":      string(kind),
				"value":     value,
			})
			_ = deps.Publisher.PublishBroadcast(context.Background(), data)
		})
		if err != nil {
			return errConflict(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

type gestureRequest struct {
	Value float64 `json:"value"`
}

// GestureHandler routes one gesture event to whichever content module
// currently holds the slot.
func GestureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind := domain.GestureKind(c.Params("kind"))
		if !domain.KnownGesture(kind) {
			return errBadRequest(c, "unknown gesture kind")
		}

		var req gestureRequest
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return errBadRequest(c, "invalid gesture payload")
			}
		}

		handled := deps.Sessions.DispatchGesture(c.Params("device"), kind, req.Value)
		return c.JSON(fiber.Map{"handled": handled})
	}
}

// GetElevationHandler returns the session's shared elevation offset.
func GetElevationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ds := deps.Sessions.Device(c.Params("device"))
		return c.JSON(fiber.Map{"offset_m": ds.Elevation.Offset()})
	}
}

type elevationRequest struct {
	Meters float64 `json:"meters"`
}

// SetElevationHandler replaces the elevation baseline.
func SetElevationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req elevationRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid elevation payload")
		}
		ds := deps.Sessions.Device(c.Params("device"))
		ds.Elevation.SetGlobal(req.Meters)
		return c.JSON(fiber.Map{"offset_m": ds.Elevation.Offset()})
	}
}

type adjustElevationRequest struct {
	DeltaM float64 `json:"delta_m"`
}

// AdjustElevationHandler shifts the shared ground alignment; the change
// is visible to every content module in the session.
func AdjustElevationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req adjustElevationRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid adjustment payload")
		}
		ds := deps.Sessions.Device(c.Params("device"))
		ds.Elevation.AdjustGlobal(req.DeltaM)
		return c.JSON(fiber.Map{"offset_m": ds.Elevation.Offset()})
	}
}

// ResetElevationHandler restores the session-start baseline, or clears
// only the adjustment delta with ?delta_only=true.
func ResetElevationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ds := deps.Sessions.Device(c.Params("device"))
		if c.QueryBool("delta_only", false) {
			ds.Elevation.ResetPosition()
		} else {
			ds.Elevation.ResetAllAdjustments()
		}
		return c.JSON(fiber.Map{"offset_m": ds.Elevation.Offset()})
	}
}

type projectRequest struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ElevationM float64 `json:"elevation_m"`
	Scale      float64 `json:"scale"`
}

// ProjectAnchorHandler projects a geodetic anchor into the device's
// rendering frame from its current best position.
func ProjectAnchorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req projectRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid anchor payload")
		}

		anchor := domain.AnchorSpec{
			Location:        domain.GeoPoint{Lat: req.Lat, Lon: req.Lon},
			ElevationMeters: req.ElevationM,
			Scale:           req.Scale,
		}
		local, ok := deps.Sessions.Device(c.Params("device")).ProjectAnchor(anchor)
		if !ok {
			return newError(c, 409, "position_unavailable", "no usable position yet; waiting for GPS")
		}
		return c.JSON(local)
	}
}

// DeviceCompletionsHandler returns a device's completion history.
func DeviceCompletionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		comps, err := deps.Completions.History(c.Context(), c.Params("id"), c.QueryInt("limit", 20))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(comps)
	}
}
