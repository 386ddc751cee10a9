package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ortziar/ankora/internal/core/domain"
)

// ExperienceRepo implements ports.ExperienceRepository with pgx.
type ExperienceRepo struct {
	db *DB
}

// NewExperienceRepo creates a new ExperienceRepo.
func NewExperienceRepo(db *DB) *ExperienceRepo {
	return &ExperienceRepo{db: db}
}

// Upsert inserts or updates a single experience.
func (r *ExperienceRepo) Upsert(ctx context.Context, e *domain.Experience) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO experiences
			(site_id, slug, title, summary, anchor, anchor_elevation_m, anchor_scale,
			 content_url, duration_seconds, published)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8, $9, $10, $11)
		ON CONFLICT (site_id, slug) DO UPDATE
		SET title = EXCLUDED.title, summary = EXCLUDED.summary,
		    anchor = EXCLUDED.anchor,
		    anchor_elevation_m = EXCLUDED.anchor_elevation_m,
		    anchor_scale = EXCLUDED.anchor_scale,
		    content_url = EXCLUDED.content_url,
		    duration_seconds = EXCLUDED.duration_seconds,
		    published = EXCLUDED.published
	`, e.SiteID, e.Slug, e.Title, e.Summary,
		e.Anchor.Location.Lon, e.Anchor.Location.Lat,
		e.Anchor.ElevationMeters, e.Anchor.Scale,
		e.ContentURL, e.DurationSeconds, e.Published)
	return err
}

// UpsertBatch inserts many experiences using pgx.Batch.
func (r *ExperienceRepo) UpsertBatch(ctx context.Context, exps []domain.Experience) error {
	batch := &pgx.Batch{}
	for _, e := range exps {
		batch.Queue(`
			INSERT INTO experiences
				(site_id, slug, title, summary, anchor, anchor_elevation_m, anchor_scale,
				 content_url, duration_seconds, published)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8, $9, $10, $11)
			ON CONFLICT (site_id, slug) DO UPDATE
			SET title = EXCLUDED.title, summary = EXCLUDED.summary,
			    anchor = EXCLUDED.anchor,
			    anchor_elevation_m = EXCLUDED.anchor_elevation_m,
			    anchor_scale = EXCLUDED.anchor_scale,
			    content_url = EXCLUDED.content_url,
			    duration_seconds = EXCLUDED.duration_seconds,
			    published = EXCLUDED.published
		`, e.SiteID, e.Slug, e.Title, e.Summary,
			e.Anchor.Location.Lon, e.Anchor.Location.Lat,
			e.Anchor.ElevationMeters, e.Anchor.Scale,
			e.ContentURL, e.DurationSeconds, e.Published)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range exps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns an experience by UUID.
func (r *ExperienceRepo) GetByID(ctx context.Context, id string) (*domain.Experience, error) {
	var e domain.Experience
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, site_id, slug, title, COALESCE(summary, ''),
		       ST_Y(anchor::geometry) as lat,
		       ST_X(anchor::geometry) as lon,
		       anchor_elevation_m, anchor_scale,
		       COALESCE(content_url, ''), duration_seconds, published
		FROM experiences WHERE id = $1
	`, id).Scan(
		&e.ID, &e.SiteID, &e.Slug, &e.Title, &e.Summary,
		&e.Anchor.Location.Lat, &e.Anchor.Location.Lon,
		&e.Anchor.ElevationMeters, &e.Anchor.Scale,
		&e.ContentURL, &e.DurationSeconds, &e.Published,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListBySite returns the experiences published at a site.
func (r *ExperienceRepo) ListBySite(ctx context.Context, siteID string) ([]domain.Experience, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, site_id, slug, title, COALESCE(summary, ''),
		       ST_Y(anchor::geometry) as lat,
		       ST_X(anchor::geometry) as lon,
		       anchor_elevation_m, anchor_scale,
		       COALESCE(content_url, ''), duration_seconds, published
		FROM experiences
		WHERE site_id = $1 AND published
		ORDER BY title
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExperiences(rows)
}

// FindNearby returns published experiences within radiusMeters using
// PostGIS ST_DWithin, nearest first.
func (r *ExperienceRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.ExperienceWithDistance, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, site_id, slug, title, COALESCE(summary, ''),
		       ST_Y(anchor::geometry) as lat,
		       ST_X(anchor::geometry) as lon,
		       anchor_elevation_m, anchor_scale,
		       COALESCE(content_url, ''), duration_seconds, published,
		       ST_Distance(anchor, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM experiences
		WHERE published
		  AND ST_DWithin(anchor, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exps []domain.ExperienceWithDistance
	for rows.Next() {
		var e domain.ExperienceWithDistance
		if err := rows.Scan(
			&e.ID, &e.SiteID, &e.Slug, &e.Title, &e.Summary,
			&e.Anchor.Location.Lat, &e.Anchor.Location.Lon,
			&e.Anchor.ElevationMeters, &e.Anchor.Scale,
			&e.ContentURL, &e.DurationSeconds, &e.Published,
			&e.DistanceMeters,
		); err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return exps, rows.Err()
}

func scanExperiences(rows pgx.Rows) ([]domain.Experience, error) {
	var exps []domain.Experience
	for rows.Next() {
		var e domain.Experience
		if err := rows.Scan(
			&e.ID, &e.SiteID, &e.Slug, &e.Title, &e.Summary,
			&e.Anchor.Location.Lat, &e.Anchor.Location.Lon,
			&e.Anchor.ElevationMeters, &e.Anchor.Scale,
			&e.ContentURL, &e.DurationSeconds, &e.Published,
		); err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return exps, rows.Err()
}
