package repository

import (
	"context"
	"database/sql"
	"fmt"

	"parkwise/backend/services/parking-service/internal/models"
)

// ArchiveRepository persists completed visits. Rows are never updated.
type ArchiveRepository struct {
	db DBTX
}

// NewArchiveRepository returns repository.
func NewArchiveRepository(db DBTX) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create inserts a completed visit.
func (r *ArchiveRepository) Create(ctx context.Context, a *models.ArchivedSession) error {
	const query = `
		INSERT INTO archived_sessions (vehicle_id, entry_time, exit_time, photo_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, a.VehicleID, a.EntryTime, a.ExitTime, a.PhotoPath).Scan(&a.ID)
}

// ListByVehicle returns the vehicle's completed visits, latest exit first.
func (r *ArchiveRepository) ListByVehicle(ctx context.Context, vehicleID int64) ([]models.ArchivedSession, error) {
	const query = `
		SELECT id, vehicle_id, entry_time, exit_time, photo_path
		FROM archived_sessions
		WHERE vehicle_id = $1
		ORDER BY exit_time DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []models.ArchivedSession
	for rows.Next() {
		var a models.ArchivedSession
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.EntryTime, &a.ExitTime, &a.PhotoPath); err != nil {
			return nil, err
		}
		a.EntryTime = a.EntryTime.UTC()
		a.ExitTime = a.ExitTime.UTC()
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return archives, nil
}

// List pages completed visits with their vehicles.
func (r *ArchiveRepository) List(ctx context.Context, opts ListOptions) ([]models.ArchiveDetail, int, error) {
	opts = opts.normalized()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	column := "a.entry_time"
	if opts.SortByExit {
		column = "a.exit_time"
	}
	query := fmt.Sprintf(`
		SELECT a.id, a.vehicle_id, a.entry_time, a.exit_time, a.photo_path,
		       v.id, v.license_plate, v.member_id, v.vip_expires_at, v.created_at
		FROM archived_sessions a
		JOIN vehicles v ON v.id = a.vehicle_id
		ORDER BY %s %s, a.id %s
		LIMIT $1 OFFSET $2
	`, column, opts.direction(), opts.direction())

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var details []models.ArchiveDetail
	for rows.Next() {
		var (
			d        models.ArchiveDetail
			memberID sql.NullInt64
			vipUntil sql.NullTime
		)
		if err := rows.Scan(
			&d.Archive.ID,
			&d.Archive.VehicleID,
			&d.Archive.EntryTime,
			&d.Archive.ExitTime,
			&d.Archive.PhotoPath,
			&d.Vehicle.ID,
			&d.Vehicle.LicensePlate,
			&memberID,
			&vipUntil,
			&d.Vehicle.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		d.Archive.EntryTime = d.Archive.EntryTime.UTC()
		d.Archive.ExitTime = d.Archive.ExitTime.UTC()
		applyVehicleNulls(&d.Vehicle, memberID, vipUntil)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return details, total, nil
}
