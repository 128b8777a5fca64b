package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwise/backend/services/parking-service/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var paymentCols = []string{"id", "session_id", "archive_id", "amount", "discount", "settled_at", "created_at"}

func TestVehicleEnsureUpsertsByPlate(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	vip := created.Add(24 * time.Hour)

	mock.ExpectQuery("INSERT INTO vehicles").
		WithArgs("ABC-123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "license_plate", "member_id", "vip_expires_at", "created_at"}).
			AddRow(int64(1), "ABC-123", int64(4), vip, created))

	v, err := NewVehicleRepository(db).Ensure(context.Background(), "ABC-123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ID)
	require.NotNil(t, v.MemberID)
	assert.Equal(t, int64(4), *v.MemberID)
	require.NotNil(t, v.VIPExpiresAt)
	assert.True(t, v.VIPExpiresAt.Equal(vip))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleFindByPlateNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM vehicles").WithArgs("NOPE").WillReturnError(sql.ErrNoRows)

	_, err := NewVehicleRepository(db).FindByPlate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO parking_sessions").
		WithArgs(int64(1), entry, "/img/1.jpg").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "parking_sessions_vehicle_id_key"})

	err := NewSessionRepository(db).Create(context.Background(), &models.Session{VehicleID: 1, EntryTime: entry, PhotoPath: "/img/1.jpg"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCreateReturnsID(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO parking_sessions").
		WithArgs(int64(1), entry, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	s := &models.Session{VehicleID: 1, EntryTime: entry}
	require.NoError(t, NewSessionRepository(db).Create(context.Background(), s))
	assert.Equal(t, int64(11), s.ID)
}

func TestSessionLockOpenByVehicleUsesRowLock(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM parking_sessions (.+) FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "entry_time", "photo_path"}).
			AddRow(int64(11), int64(1), entry, ""))

	s, err := NewSessionRepository(db).LockOpenByVehicle(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteMissingRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("DELETE FROM parking_sessions").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewSessionRepository(db).Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionListJoinsVehicles(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY s.entry_time DESC").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "vehicle_id", "entry_time", "photo_path",
			"id", "license_plate", "member_id", "vip_expires_at", "created_at",
		}).AddRow(int64(11), int64(1), entry, "", int64(1), "ABC-123", nil, nil, entry))

	details, total, err := NewSessionRepository(db).List(context.Background(), ListOptions{Desc: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, details, 1)
	assert.Equal(t, "ABC-123", details[0].Vehicle.LicensePlate)
	assert.Nil(t, details[0].Vehicle.VIPExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveListSortsByExit(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY a.exit_time ASC").
		WithArgs(100, 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "vehicle_id", "entry_time", "exit_time", "photo_path",
			"id", "license_plate", "member_id", "vip_expires_at", "created_at",
		}))

	details, total, err := NewArchiveRepository(db).List(context.Background(), ListOptions{Limit: 500, Offset: 5, SortByExit: true})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateMapsOwnerColumns(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(int64(11), nil, 0.0, 5.0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), now))

	p := &models.PaymentRecord{Owner: models.OwnedBySession(11), Discount: 5}
	require.NoError(t, NewPaymentRepository(db).Create(context.Background(), p))
	assert.Equal(t, int64(21), p.ID)

	err := NewPaymentRepository(db).Create(context.Background(), &models.PaymentRecord{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateRejectsSecondUnsettled(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_one_unsettled_per_session"})

	err := NewPaymentRepository(db).Create(context.Background(), &models.PaymentRecord{Owner: models.OwnedBySession(11)})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPaymentSettleDetectsLostRace(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE payments").WithArgs(int64(21), 20.0, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payments").WithArgs(int64(21), 20.0, at).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPaymentRepository(db)
	require.NoError(t, repo.Settle(context.Background(), 21, 20, at))
	assert.ErrorIs(t, repo.Settle(context.Background(), 21, 20, at), ErrAlreadySettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentListByOwnerScansOwners(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE archive_id = \\$1").
		WithArgs(int64(31)).
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow(int64(22), nil, int64(31), 20.0, 0.0, at, at).
			AddRow(int64(21), nil, int64(31), 0.0, 0.0, at, at))

	payments, err := NewPaymentRepository(db).ListByOwner(context.Background(), models.OwnedByArchive(31))
	require.NoError(t, err)
	require.Len(t, payments, 2)
	for _, p := range payments {
		assert.Equal(t, models.OwnedByArchive(31), p.Owner)
		assert.True(t, p.Settled())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentScanRejectsAmbiguousOwner(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(int64(21), int64(11), int64(31), 0.0, 0.0, nil, at))

	_, err := NewPaymentRepository(db).FindUnsettled(context.Background(), 11)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPaymentLatestSettledNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("settled_at IS NOT NULL").WithArgs(int64(11)).WillReturnError(sql.ErrNoRows)

	_, err := NewPaymentRepository(db).LatestSettled(context.Background(), 11)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfigLatest(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM billing_configurations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "note", "rounding_threshold_minutes", "exit_buffer_minutes", "hourly_rate", "created_at"}).
			AddRow(int64(2), "weekend", 15, 10.0, 30.0, now))

	cfg, err := NewConfigRepository(db).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.RoundingThresholdMinutes)
	assert.Equal(t, 30.0, cfg.HourlyRate)

	mock.ExpectQuery("FROM billing_configurations").WillReturnError(sql.ErrNoRows)
	_, err = NewConfigRepository(db).Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreWithinTxRollsBackPartialClose(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	exit := entry.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO archived_sessions").
		WithArgs(int64(1), entry, exit, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectExec("UPDATE payments").
		WithArgs(int64(11), int64(31)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	store := NewStore(db)
	err := store.WithinTx(context.Background(), func(r *Repositories) error {
		archive := models.Session{VehicleID: 1, EntryTime: entry}.Archive(exit)
		if err := r.Archives.Create(context.Background(), &archive); err != nil {
			return err
		}
		if _, err := r.Payments.Reparent(context.Background(), 11, archive.ID); err != nil {
			return err
		}
		return r.Sessions.Delete(context.Background(), 11)
	})
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithinTxCommitsClose(t *testing.T) {
	db, mock := newMock(t)
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	exit := entry.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO archived_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectExec("UPDATE payments").
		WithArgs(int64(11), int64(31)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM parking_sessions").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var moved int64
	err := NewStore(db).WithinTx(context.Background(), func(r *Repositories) error {
		archive := models.Session{VehicleID: 1, EntryTime: entry}.Archive(exit)
		if err := r.Archives.Create(context.Background(), &archive); err != nil {
			return err
		}
		n, err := r.Payments.Reparent(context.Background(), 11, archive.ID)
		if err != nil {
			return err
		}
		moved = n
		return r.Sessions.Delete(context.Background(), 11)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
