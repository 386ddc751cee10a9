package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/pkg/metrics"
)

// CatalogService handles site and experience lookups.
type CatalogService struct {
	sites       ports.SiteRepository
	experiences ports.ExperienceRepository
	cache       ports.CacheService
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(sites ports.SiteRepository, experiences ports.ExperienceRepository, cache ports.CacheService) *CatalogService {
	return &CatalogService{sites: sites, experiences: experiences, cache: cache}
}

// ListSites returns all published heritage sites.
func (s *CatalogService) ListSites(ctx context.Context) ([]domain.Site, error) {
	cacheKey := "sites:all"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var sites []domain.Site
			if err := json.Unmarshal(data, &sites); err == nil {
				metrics.CacheHits.WithLabelValues("sites_list").Inc()
				return sites, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("sites_list").Inc()
	}

	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, err
	}

	// Cache for 10 minutes (the catalog changes on ingest, not per request)
	if s.cache != nil {
		if data, err := json.Marshal(sites); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return sites, nil
}

// GetSite returns a single site by ID or slug.
func (s *CatalogService) GetSite(ctx context.Context, idOrSlug string) (*domain.Site, error) {
	site, err := s.sites.GetByID(ctx, idOrSlug)
	if err == nil && site != nil {
		return site, nil
	}
	return s.sites.GetBySlug(ctx, idOrSlug)
}

// GetExperience returns a single experience.
func (s *CatalogService) GetExperience(ctx context.Context, id string) (*domain.Experience, error) {
	exp, err := s.experiences.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get experience %s: %w", id, err)
	}
	return exp, nil
}

// ListBySite returns the experiences published at a site.
func (s *CatalogService) ListBySite(ctx context.Context, siteID string) ([]domain.Experience, error) {
	return s.experiences.ListBySite(ctx, siteID)
}

// FindNearby returns published experiences within radiusMeters of the
// given point, nearest first.
func (s *CatalogService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.ExperienceWithDistance, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	// Try cache
	cacheKey := fmt.Sprintf("experiences:nearby:%.4f:%.4f:%.0f:%d", lat, lon, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var exps []domain.ExperienceWithDistance
			if err := json.Unmarshal(data, &exps); err == nil {
				metrics.CacheHits.WithLabelValues("experiences_nearby").Inc()
				return exps, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("experiences_nearby").Inc()
	}

	exps, err := s.experiences.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	// Cache for 5 minutes
	if s.cache != nil {
		if data, err := json.Marshal(exps); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return exps, nil
}
