package postgres

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
)

// DetectionHistoryLimit caps the detection history query. Part of the client
// contract: the feed never returns more than the 100 most recent rows.
const DetectionHistoryLimit = 100

type DetectionRepo struct {
	PostgresBaseRepo
}

func NewDetectionRepository(db database.DB) (*DetectionRepo, error) {
	repo := &DetectionRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *DetectionRepo) initializeSchema() error {
	// The detection log is append-only time-series data, so it lives in a
	// hypertable with a retention policy rather than a plain table.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS beacon_detections (
			id TEXT NOT NULL,
			detector_user_id TEXT NOT NULL,
			detected_vehicle_id TEXT NOT NULL,
			detected_user_id TEXT NOT NULL,
			rssi INTEGER NOT NULL,
			proximity TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			detected_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (id, detected_at)
		)`,
		`SELECT create_hypertable('beacon_detections', 'detected_at',
			chunk_time_interval => INTERVAL '1 day',
			if_not_exists => TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_beacon_detections_detector_time
			ON beacon_detections(detector_user_id, detected_at DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewDatabaseError("failed to initialize detections schema", err)
		}
	}

	r.setupRetentionPolicy()
	return nil
}

func (r *DetectionRepo) setupRetentionPolicy() {
	query := `
		SELECT add_retention_policy('beacon_detections',
			INTERVAL '90 days',
			if_not_exists => TRUE
		)`

	if _, err := r.db.GetDB().Exec(query); err != nil {
		nuts.L.Errorf("[DetectionRepo] Failed to set up retention policy: %v", err)
	}
}

func (r *DetectionRepo) Insert(ctx context.Context, detection *models.Detection) error {
	query := `
		INSERT INTO beacon_detections (
			id, detector_user_id, detected_vehicle_id, detected_user_id,
			rssi, proximity, location, detected_at
		) VALUES (
			:id, :detector_user_id, :detected_vehicle_id, :detected_user_id,
			:rssi, :proximity, :location, :detected_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, detection)
	if err != nil {
		return errors.NewDatabaseError("failed to insert detection", err)
	}
	return nil
}

// ListByDetector returns the detector's most recent detections, newest
// first, enriched with vehicle and owner snapshots.
func (r *DetectionRepo) ListByDetector(ctx context.Context, detectorUserID string, filters models.DetectionFilters) ([]*models.EnrichedDetection, error) {
	query := `
		SELECT d.id, d.detector_user_id, d.detected_vehicle_id, d.detected_user_id,
			d.rssi, d.proximity, d.location, d.detected_at,
			v.id AS "vehicle.id", v.make AS "vehicle.make",
			v.model AS "vehicle.model", v.year AS "vehicle.year",
			v.primary_image AS "vehicle.primary_image",
			p.username AS "profile.username",
			p.display_name AS "profile.display_name",
			p.avatar_url AS "profile.avatar_url"
		FROM beacon_detections d
		JOIN vehicles v ON v.id = d.detected_vehicle_id
		JOIN profiles p ON p.id = d.detected_user_id
		WHERE d.detector_user_id = $1`

	args := []interface{}{detectorUserID}
	if filters.VehicleID != "" {
		args = append(args, filters.VehicleID)
		query += fmt.Sprintf(` AND d.detected_vehicle_id = $%d`, len(args))
	}
	if filters.DetectedUserID != "" {
		args = append(args, filters.DetectedUserID)
		query += fmt.Sprintf(` AND d.detected_user_id = $%d`, len(args))
	}
	if filters.Proximity != "" {
		args = append(args, filters.Proximity)
		query += fmt.Sprintf(` AND d.proximity = $%d`, len(args))
	}
	if filters.Since != nil {
		args = append(args, *filters.Since)
		query += fmt.Sprintf(` AND d.detected_at >= $%d`, len(args))
	}

	limit := filters.Limit
	if limit <= 0 || limit > DetectionHistoryLimit {
		limit = DetectionHistoryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY d.detected_at DESC LIMIT $%d`, len(args))

	detections := []*models.EnrichedDetection{}
	err := r.db.GetDB().SelectContext(ctx, &detections, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list detections", err)
	}
	return detections, nil
}

func (r *DetectionRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM beacon_detections WHERE detected_at < $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, before)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete old detections", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[DetectionRepo] Deleted %d detections older than %v", rows, before)
	return rows, nil
}
