package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresDBRejectsEmptyDSN(t *testing.T) {
	_, err := NewPostgresDB("  ", PoolOptions{})
	assert.Error(t, err)
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE vehicles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithinTx(context.Background(), sqlDB, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE vehicles SET license_plate = license_plate")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithinTx(context.Background(), sqlDB, nil, func(*sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithinTx(context.Background(), sqlDB, nil, func(*sql.Tx) error { panic("kaboom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "parking_sessions_vehicle_id_key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "parking_sessions_vehicle_id_key"))
	assert.False(t, IsUniqueViolation(wrapped, "vehicles_license_plate_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
}
