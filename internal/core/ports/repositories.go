package ports

import (
	"context"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
)

// SiteRepository persists heritage sites.
type SiteRepository interface {
	Upsert(ctx context.Context, site *domain.Site) error
	UpsertBatch(ctx context.Context, sites []domain.Site) error
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Site, error)
	List(ctx context.Context) ([]domain.Site, error)
}

// ExperienceRepository persists anchored experiences.
type ExperienceRepository interface {
	Upsert(ctx context.Context, exp *domain.Experience) error
	UpsertBatch(ctx context.Context, exps []domain.Experience) error
	GetByID(ctx context.Context, id string) (*domain.Experience, error)
	ListBySite(ctx context.Context, siteID string) ([]domain.Experience, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.ExperienceWithDistance, error)
}

// FixRepository persists raw device fixes for diagnostics and replay.
type FixRepository interface {
	Insert(ctx context.Context, deviceID string, fix *domain.GeoFix) error
	InsertBatch(ctx context.Context, deviceID string, fixes []domain.GeoFix) error
	RecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]domain.GeoFix, error)
}

// CompletionRepository persists experience completions.
type CompletionRepository interface {
	Insert(ctx context.Context, comp *domain.Completion) error
	GetBySession(ctx context.Context, sessionID string) (*domain.Completion, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.Completion, error)
	MarkProgressAwarded(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
