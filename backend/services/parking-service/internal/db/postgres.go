package db

import (
	"database/sql"
	"embed"

	libdb "parkwise/backend/libs/db"
)

// MigrationFS holds the schema migrations applied by Migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// NewPostgres returns the shared DB connection pool.
func NewPostgres(dsn string, maxOpenConns int) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn, libdb.PoolOptions{MaxOpenConns: maxOpenConns})
}
