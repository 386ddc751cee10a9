package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ortziar/ankora/internal/core/domain"
)

// CompletionRepo implements ports.CompletionRepository with pgx.
type CompletionRepo struct {
	db *DB
}

// NewCompletionRepo creates a new CompletionRepo.
func NewCompletionRepo(db *DB) *CompletionRepo {
	return &CompletionRepo{db: db}
}

// Insert stores a completion. The unique session constraint makes a
// duplicate delivery of the same event fail loudly rather than double
// count.
func (r *CompletionRepo) Insert(ctx context.Context, c *domain.Completion) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO completions
			(id, session_id, device_id, experience_id, engaged_ms, completed_at,
			 progress_awarded, notification_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.SessionID, c.DeviceID, c.ExperienceID,
		c.EngagedFor.Milliseconds(), c.CompletedAt,
		c.ProgressAwarded, c.NotificationSent)
	return err
}

// GetBySession returns the completion for a session, or (nil, nil) when
// none has been recorded.
func (r *CompletionRepo) GetBySession(ctx context.Context, sessionID string) (*domain.Completion, error) {
	c, err := r.scanOne(ctx, `WHERE session_id = $1`, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *CompletionRepo) scanOne(ctx context.Context, where string, arg any) (*domain.Completion, error) {
	var c domain.Completion
	var engagedMs int64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, session_id, device_id, experience_id, engaged_ms, completed_at,
		       progress_awarded, notification_sent
		FROM completions `+where, arg).Scan(
		&c.ID, &c.SessionID, &c.DeviceID, &c.ExperienceID,
		&engagedMs, &c.CompletedAt, &c.ProgressAwarded, &c.NotificationSent,
	)
	if err != nil {
		return nil, err
	}
	c.EngagedFor = msToDuration(engagedMs)
	return &c, nil
}

// ListByDevice returns a device's most recent completions.
func (r *CompletionRepo) ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.Completion, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, session_id, device_id, experience_id, engaged_ms, completed_at,
		       progress_awarded, notification_sent
		FROM completions
		WHERE device_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []domain.Completion
	for rows.Next() {
		var c domain.Completion
		var engagedMs int64
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.DeviceID, &c.ExperienceID,
			&engagedMs, &c.CompletedAt, &c.ProgressAwarded, &c.NotificationSent,
		); err != nil {
			return nil, err
		}
		c.EngagedFor = msToDuration(engagedMs)
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// MarkProgressAwarded flips the progress flag.
func (r *CompletionRepo) MarkProgressAwarded(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE completions SET progress_awarded = true WHERE id = $1`, id)
	return err
}

// Delete removes a completion record.
func (r *CompletionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM completions WHERE id = $1`, id)
	return err
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
