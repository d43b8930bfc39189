// Package postgres implements the Audit store (A5): a pure side sink that
// persists each HypoAudit row and the run's final status for later
// review. Grounded on the teacher's adapters/postgres/session_repository.go
// sqlx.DB + ExecContext pattern.
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hypolocator/domain/locator"
	"hypolocator/ports"
)

// AuditStoreImpl implements ports.AuditStore for PostgreSQL.
type AuditStoreImpl struct {
	db *sqlx.DB
}

// NewAuditStore creates a new PostgreSQL audit store.
func NewAuditStore(db *sqlx.DB) ports.AuditStore {
	return &AuditStoreImpl{db: db}
}

// SaveRun inserts one row per audit snapshot plus a run summary row. Audit
// rows are immutable once written (ON CONFLICT DO NOTHING on id), since a
// HypoAudit is a point-in-time snapshot, never updated in place.
func (r *AuditStoreImpl) SaveRun(ctx context.Context, eventID string, trail []locator.HypoAudit, finalStatus locator.Status) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range trail {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO location_audits (
				id, event_id, stage, iteration, n_used, status,
				origin_time, latitude, longitude, depth_km, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			ON CONFLICT (id) DO NOTHING
		`, a.ID.String(), eventID, a.Stage, a.Iteration, a.NUsed, a.Status.String(),
			a.Hypocenter.OriginTime, a.Hypocenter.Lat, a.Hypocenter.Lon, a.Hypocenter.Depth)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO location_runs (event_id, exit_code, n_audits, completed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			exit_code = EXCLUDED.exit_code,
			n_audits = EXCLUDED.n_audits,
			completed_at = EXCLUDED.completed_at
	`, eventID, finalStatus.ExternalCode(), len(trail))
	if err != nil {
		return err
	}

	return tx.Commit()
}
