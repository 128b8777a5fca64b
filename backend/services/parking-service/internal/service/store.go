package service

import (
	"context"
	"time"

	"parkwise/backend/services/parking-service/internal/models"
	"parkwise/backend/services/parking-service/internal/repository"
)

// VehicleStore persists vehicles.
type VehicleStore interface {
	Ensure(ctx context.Context, plate string) (*models.Vehicle, error)
	FindByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
}

// SessionStore persists open sessions.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	FindOpenByVehicle(ctx context.Context, vehicleID int64) (*models.Session, error)
	LockOpenByVehicle(ctx context.Context, vehicleID int64) (*models.Session, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, opts repository.ListOptions) ([]models.SessionDetail, int, error)
}

// ArchiveStore persists completed visits.
type ArchiveStore interface {
	Create(ctx context.Context, a *models.ArchivedSession) error
	ListByVehicle(ctx context.Context, vehicleID int64) ([]models.ArchivedSession, error)
	List(ctx context.Context, opts repository.ListOptions) ([]models.ArchiveDetail, int, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentRecord) error
	Settle(ctx context.Context, id int64, amount float64, settledAt time.Time) error
	FindUnsettled(ctx context.Context, sessionID int64) (*models.PaymentRecord, error)
	LatestSettled(ctx context.Context, sessionID int64) (*models.PaymentRecord, error)
	ListByOwner(ctx context.Context, owner models.Owner) ([]models.PaymentRecord, error)
	Reparent(ctx context.Context, sessionID, archiveID int64) (int64, error)
}

// ConfigStore persists billing configuration versions.
type ConfigStore interface {
	Latest(ctx context.Context) (*models.BillingConfig, error)
	Create(ctx context.Context, c *models.BillingConfig) error
}

// Repos is one consistent view of the store: autocommit or a single transaction.
type Repos struct {
	Vehicles VehicleStore
	Sessions SessionStore
	Archives ArchiveStore
	Payments PaymentStore
	Configs  ConfigStore
}

// UnitOfWork scopes writes to a transaction that commits or rolls back as a whole.
type UnitOfWork interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

type sqlUnitOfWork struct {
	store *repository.Store
}

// NewSQLUnitOfWork adapts the Postgres store.
func NewSQLUnitOfWork(store *repository.Store) UnitOfWork {
	return &sqlUnitOfWork{store: store}
}

func (u *sqlUnitOfWork) Repos() Repos {
	return reposFrom(u.store.Repositories())
}

func (u *sqlUnitOfWork) WithinTx(ctx context.Context, fn func(Repos) error) error {
	return u.store.WithinTx(ctx, func(r *repository.Repositories) error {
		return fn(reposFrom(r))
	})
}

func reposFrom(r *repository.Repositories) Repos {
	return Repos{
		Vehicles: r.Vehicles,
		Sessions: r.Sessions,
		Archives: r.Archives,
		Payments: r.Payments,
		Configs:  r.Configs,
	}
}
