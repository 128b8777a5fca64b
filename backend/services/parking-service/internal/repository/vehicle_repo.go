package repository

import (
	"context"
	"database/sql"
	"time"

	"parkwise/backend/services/parking-service/internal/models"
)

const vehicleColumns = `id, license_plate, member_id, vip_expires_at, created_at`

// VehicleRepository persists vehicles.
type VehicleRepository struct {
	db DBTX
}

// NewVehicleRepository returns repository.
func NewVehicleRepository(db DBTX) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Ensure returns the vehicle with plate, creating it on first sight. Concurrent callers for
// the same plate converge on one row through the unique key.
func (r *VehicleRepository) Ensure(ctx context.Context, plate string) (*models.Vehicle, error) {
	const query = `
		INSERT INTO vehicles (license_plate, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (license_plate) DO UPDATE SET
			license_plate = EXCLUDED.license_plate
		RETURNING ` + vehicleColumns
	return scanVehicle(r.db.QueryRowContext(ctx, query, plate))
}

// FindByPlate looks a vehicle up by plate.
func (r *VehicleRepository) FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	const query = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE license_plate = $1`
	v, err := scanVehicle(r.db.QueryRowContext(ctx, query, plate))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var (
		v        models.Vehicle
		memberID sql.NullInt64
		vipUntil sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.LicensePlate, &memberID, &vipUntil, &v.CreatedAt); err != nil {
		return nil, err
	}
	applyVehicleNulls(&v, memberID, vipUntil)
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
