package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	libdb "parkwise/backend/libs/db"
)

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ErrNoChange is returned when the schema is already at the requested version.
var ErrNoChange = migrate.ErrNoChange

// Migrate applies the embedded migrations over a dedicated connection that is closed on return.
func Migrate(dsn string, direction Direction) error {
	if direction != Up && direction != Down {
		return fmt.Errorf("migrate: direction must be up or down, got %q", direction)
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("migrate: schema is dirty, fix it manually before migrating")
	}

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return err
}

// Version reports the applied schema version. Zero means nothing has been applied.
func Version(dsn string) (uint, bool, error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: open source: %w", err)
	}

	sqlDB, err := libdb.NewPostgresDB(dsn, libdb.PoolOptions{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return nil, fmt.Errorf("migrate: connect: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
