package repository

import (
	"context"
	"database/sql"
	"errors"

	libdb "parkwise/backend/libs/db"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrAlreadySettled indicates a settle raced with another one, or targeted a paid record.
	ErrAlreadySettled = errors.New("repository: payment already settled")
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	Vehicles *VehicleRepository
	Sessions *SessionRepository
	Archives *ArchiveRepository
	Payments *PaymentRepository
	Configs  *ConfigRepository
}

// New binds all repositories to db.
func New(db DBTX) *Repositories {
	return &Repositories{
		Vehicles: NewVehicleRepository(db),
		Sessions: NewSessionRepository(db),
		Archives: NewArchiveRepository(db),
		Payments: NewPaymentRepository(db),
		Configs:  NewConfigRepository(db),
	}
}

// Store hands out repositories, either autocommit or scoped to one transaction.
type Store struct {
	db   *sql.DB
	repo *Repositories
}

// NewStore returns store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, repo: New(db)}
}

// Repositories returns autocommit repositories for reads.
func (s *Store) Repositories() *Repositories {
	return s.repo
}

// WithinTx runs fn with repositories bound to a single transaction. Every write made through
// them commits together when fn returns nil and is rolled back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(*Repositories) error) error {
	return libdb.WithinTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(New(tx))
	})
}

// ListOptions pages and orders list queries.
type ListOptions struct {
	Limit  int
	Offset int
	// SortByExit orders archived rows by exit time instead of entry time.
	SortByExit bool
	Desc       bool
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func (o ListOptions) direction() string {
	if o.Desc {
		return "DESC"
	}
	return "ASC"
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
