package postgres

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
)

type HighlightRepo struct {
	PostgresBaseRepo
}

func NewHighlightRepository(db database.DB) (*HighlightRepo, error) {
	repo := &HighlightRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *HighlightRepo) initializeSchema() error {
	// The composite primary key is what enforces the at-most-one-live-row
	// invariant; Upsert relies on it for its ON CONFLICT target.
	query := `
		CREATE TABLE IF NOT EXISTS detection_highlights (
			user_id TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, vehicle_id)
		)`

	if _, err := r.db.GetDB().Exec(query); err != nil {
		return errors.NewDatabaseError("failed to initialize highlights schema", err)
	}
	return nil
}

// Upsert inserts a highlight or, when the (user_id, vehicle_id) pair already
// exists, overwrites its timestamps. A repeated highlight resets the expiry
// rather than creating a duplicate row.
func (r *HighlightRepo) Upsert(ctx context.Context, highlight *models.DetectionHighlight) error {
	query := `
		INSERT INTO detection_highlights (user_id, vehicle_id, detected_at, expires_at)
		VALUES (:user_id, :vehicle_id, :detected_at, :expires_at)
		ON CONFLICT (user_id, vehicle_id) DO UPDATE
		SET detected_at = EXCLUDED.detected_at,
			expires_at = EXCLUDED.expires_at`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, highlight)
	if err != nil {
		return errors.NewDatabaseError("failed to upsert highlight", err)
	}
	return nil
}

// ListLive returns the user's highlights with expires_at strictly in the
// future. Expired rows are excluded at the query boundary, never filtered
// client-side.
func (r *HighlightRepo) ListLive(ctx context.Context, userID string, now time.Time) ([]*models.DetectionHighlight, error) {
	highlights := []*models.DetectionHighlight{}
	query := `
		SELECT user_id, vehicle_id, detected_at, expires_at
		FROM detection_highlights
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY detected_at DESC`

	err := r.db.GetDB().SelectContext(ctx, &highlights, query, userID, now)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list highlights", err)
	}
	return highlights, nil
}

func (r *HighlightRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM detection_highlights WHERE expires_at <= $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, now)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete expired highlights", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[HighlightRepo] Deleted %d expired highlights", rows)
	return rows, nil
}
