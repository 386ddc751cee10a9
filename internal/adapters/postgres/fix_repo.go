package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ortziar/ankora/internal/core/domain"
)

// FixRepo implements ports.FixRepository with pgx. Raw fixes are kept
// for positioning diagnostics and filter replay, not for serving.
type FixRepo struct {
	db *DB
}

// NewFixRepo creates a new FixRepo.
func NewFixRepo(db *DB) *FixRepo {
	return &FixRepo{db: db}
}

// Insert stores a single raw fix.
func (r *FixRepo) Insert(ctx context.Context, deviceID string, fix *domain.GeoFix) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO device_fixes (device_id, location, accuracy_m, fixed_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5)
	`, deviceID, fix.Location.Lon, fix.Location.Lat, fix.AccuracyMeters, fix.Time)
	return err
}

// InsertBatch stores many fixes using pgx.Batch.
func (r *FixRepo) InsertBatch(ctx context.Context, deviceID string, fixes []domain.GeoFix) error {
	batch := &pgx.Batch{}
	for _, fix := range fixes {
		batch.Queue(`
			INSERT INTO device_fixes (device_id, location, accuracy_m, fixed_at)
			VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5)
		`, deviceID, fix.Location.Lon, fix.Location.Lat, fix.AccuracyMeters, fix.Time)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range fixes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// RecentByDevice returns a device's fixes since the given time, newest
// first.
func (r *FixRepo) RecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]domain.GeoFix, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       accuracy_m, fixed_at
		FROM device_fixes
		WHERE device_id = $1 AND fixed_at >= $2
		ORDER BY fixed_at DESC
		LIMIT $3
	`, deviceID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []domain.GeoFix
	for rows.Next() {
		var f domain.GeoFix
		if err := rows.Scan(&f.Location.Lat, &f.Location.Lon, &f.AccuracyMeters, &f.Time); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}
