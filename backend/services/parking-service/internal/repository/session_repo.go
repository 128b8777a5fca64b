package repository

import (
	"context"
	"database/sql"
	"fmt"

	libdb "parkwise/backend/libs/db"
	"parkwise/backend/services/parking-service/internal/models"
)

const openSessionUniqueKey = "parking_sessions_vehicle_id_key"

// SessionRepository persists open parking sessions.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository returns repository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts an open session. A second open session for the same vehicle is rejected by
// the store with ErrDuplicate.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	const query = `
		INSERT INTO parking_sessions (vehicle_id, entry_time, photo_path)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, s.VehicleID, s.EntryTime, s.PhotoPath).Scan(&s.ID)
	if libdb.IsUniqueViolation(err, openSessionUniqueKey) {
		return ErrDuplicate
	}
	return err
}

// FindOpenByVehicle returns the vehicle's open session.
func (r *SessionRepository) FindOpenByVehicle(ctx context.Context, vehicleID int64) (*models.Session, error) {
	const query = `
		SELECT id, vehicle_id, entry_time, photo_path
		FROM parking_sessions
		WHERE vehicle_id = $1
	`
	return r.scanOne(ctx, query, vehicleID)
}

// LockOpenByVehicle is FindOpenByVehicle holding a row lock until the transaction ends.
func (r *SessionRepository) LockOpenByVehicle(ctx context.Context, vehicleID int64) (*models.Session, error) {
	const query = `
		SELECT id, vehicle_id, entry_time, photo_path
		FROM parking_sessions
		WHERE vehicle_id = $1
		FOR UPDATE
	`
	return r.scanOne(ctx, query, vehicleID)
}

func (r *SessionRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Session, error) {
	var s models.Session
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.VehicleID, &s.EntryTime, &s.PhotoPath)
	if err != nil {
		return nil, notFound(err)
	}
	s.EntryTime = s.EntryTime.UTC()
	return &s, nil
}

// Delete removes the open session row.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List pages open sessions with their vehicles, ordered by entry time.
func (r *SessionRepository) List(ctx context.Context, opts ListOptions) ([]models.SessionDetail, int, error) {
	opts = opts.normalized()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.vehicle_id, s.entry_time, s.photo_path,
		       v.id, v.license_plate, v.member_id, v.vip_expires_at, v.created_at
		FROM parking_sessions s
		JOIN vehicles v ON v.id = s.vehicle_id
		ORDER BY s.entry_time %s, s.id %s
		LIMIT $1 OFFSET $2
	`, opts.direction(), opts.direction())

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var details []models.SessionDetail
	for rows.Next() {
		var (
			d        models.SessionDetail
			memberID sql.NullInt64
			vipUntil sql.NullTime
		)
		if err := rows.Scan(
			&d.Session.ID,
			&d.Session.VehicleID,
			&d.Session.EntryTime,
			&d.Session.PhotoPath,
			&d.Vehicle.ID,
			&d.Vehicle.LicensePlate,
			&memberID,
			&vipUntil,
			&d.Vehicle.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		d.Session.EntryTime = d.Session.EntryTime.UTC()
		applyVehicleNulls(&d.Vehicle, memberID, vipUntil)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func applyVehicleNulls(v *models.Vehicle, memberID sql.NullInt64, vipUntil sql.NullTime) {
	if memberID.Valid {
		id := memberID.Int64
		v.MemberID = &id
	}
	if vipUntil.Valid {
		t := vipUntil.Time.UTC()
		v.VIPExpiresAt = &t
	}
}
