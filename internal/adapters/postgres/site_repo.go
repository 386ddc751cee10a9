package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ortziar/ankora/internal/core/domain"
)

// SiteRepo implements ports.SiteRepository with pgx.
type SiteRepo struct {
	db *DB
}

// NewSiteRepo creates a new SiteRepo.
func NewSiteRepo(db *DB) *SiteRepo {
	return &SiteRepo{db: db}
}

// Upsert inserts or updates a single site.
func (r *SiteRepo) Upsert(ctx context.Context, s *domain.Site) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sites (slug, name, description, location, municipality)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    location = EXCLUDED.location, municipality = EXCLUDED.municipality
	`, s.Slug, s.Name, s.Description, s.Location.Lon, s.Location.Lat, s.Municipality)
	return err
}

// UpsertBatch inserts many sites using pgx.Batch.
func (r *SiteRepo) UpsertBatch(ctx context.Context, sites []domain.Site) error {
	batch := &pgx.Batch{}
	for _, s := range sites {
		batch.Queue(`
			INSERT INTO sites (slug, name, description, location, municipality)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
			ON CONFLICT (slug) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description,
			    location = EXCLUDED.location, municipality = EXCLUDED.municipality
		`, s.Slug, s.Name, s.Description, s.Location.Lon, s.Location.Lat, s.Municipality)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range sites {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a site by UUID.
func (r *SiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	return r.getByField(ctx, "id", id)
}

// GetBySlug returns a site by its slug.
func (r *SiteRepo) GetBySlug(ctx context.Context, slug string) (*domain.Site, error) {
	return r.getByField(ctx, "slug", slug)
}

func (r *SiteRepo) getByField(ctx context.Context, field, value string) (*domain.Site, error) {
	var s domain.Site
	err := r.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, slug, name, COALESCE(description, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(municipality, '')
		FROM sites WHERE %s = $1
	`, field), value).Scan(
		&s.ID, &s.Slug, &s.Name, &s.Description,
		&s.Location.Lat, &s.Location.Lon, &s.Municipality,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all sites, alphabetically.
func (r *SiteRepo) List(ctx context.Context) ([]domain.Site, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, slug, name, COALESCE(description, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       COALESCE(municipality, '')
		FROM sites ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(
			&s.ID, &s.Slug, &s.Name, &s.Description,
			&s.Location.Lat, &s.Location.Lon, &s.Municipality,
		); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}
