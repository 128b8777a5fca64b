package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	libdb "parkwise/backend/libs/db"
	"parkwise/backend/services/parking-service/internal/models"
)

const (
	paymentColumns      = `id, session_id, archive_id, amount, discount, settled_at, created_at`
	unsettledPaymentKey = "payments_one_unsettled_per_session"
)

// PaymentRepository persists payment records. It is the only place that maps the owner sum
// type to the session_id/archive_id column pair.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository returns repository.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts p. A second unsettled record for one session fails with ErrDuplicate.
func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRecord) error {
	sessionID, archiveID, err := ownerColumns(p.Owner)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO payments (session_id, archive_id, amount, discount, settled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		sessionID,
		archiveID,
		p.Amount,
		p.Discount,
		nullTime(p.SettledAt),
	).Scan(&p.ID, &p.CreatedAt)
	if libdb.IsUniqueViolation(err, unsettledPaymentKey) {
		return ErrDuplicate
	}
	return err
}

// Settle records amount and settlement time on an unsettled record of an open session.
// Exactly one of several concurrent calls succeeds; the others get ErrAlreadySettled.
func (r *PaymentRepository) Settle(ctx context.Context, id int64, amount float64, settledAt time.Time) error {
	const query = `
		UPDATE payments
		SET amount = $2,
		    settled_at = $3
		WHERE id = $1
		  AND settled_at IS NULL
		  AND session_id IS NOT NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, amount, settledAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadySettled
	}
	return nil
}

// FindUnsettled returns the session's outstanding record.
func (r *PaymentRepository) FindUnsettled(ctx context.Context, sessionID int64) (*models.PaymentRecord, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1 AND settled_at IS NULL
		ORDER BY id
		LIMIT 1
	`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// LatestSettled returns the session's most recently settled record.
func (r *PaymentRepository) LatestSettled(ctx context.Context, sessionID int64) (*models.PaymentRecord, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1 AND settled_at IS NOT NULL
		ORDER BY settled_at DESC, id DESC
		LIMIT 1
	`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListByOwner returns every record of one visit, settled ones newest first, unsettled last.
func (r *PaymentRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]models.PaymentRecord, error) {
	column := "session_id"
	if _, ok := owner.ArchiveID(); ok {
		column = "archive_id"
	} else if owner.IsZero() {
		return nil, fmt.Errorf("repository: payment owner is required")
	}

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE ` + column + ` = $1
		ORDER BY settled_at DESC NULLS LAST, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, owner.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// Reparent moves every record of an open session to an archived session and returns how
// many records moved.
func (r *PaymentRepository) Reparent(ctx context.Context, sessionID, archiveID int64) (int64, error) {
	const query = `
		UPDATE payments
		SET session_id = NULL,
		    archive_id = $2
		WHERE session_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, sessionID, archiveID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func ownerColumns(owner models.Owner) (sql.NullInt64, sql.NullInt64, error) {
	if id, ok := owner.SessionID(); ok {
		return sql.NullInt64{Int64: id, Valid: true}, sql.NullInt64{}, nil
	}
	if id, ok := owner.ArchiveID(); ok {
		return sql.NullInt64{}, sql.NullInt64{Int64: id, Valid: true}, nil
	}
	return sql.NullInt64{}, sql.NullInt64{}, fmt.Errorf("repository: payment owner is required")
}

func scanPayment(row rowScanner) (*models.PaymentRecord, error) {
	var (
		p         models.PaymentRecord
		sessionID sql.NullInt64
		archiveID sql.NullInt64
		settledAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &sessionID, &archiveID, &p.Amount, &p.Discount, &settledAt, &p.CreatedAt); err != nil {
		return nil, err
	}

	switch {
	case sessionID.Valid && !archiveID.Valid:
		p.Owner = models.OwnedBySession(sessionID.Int64)
	case archiveID.Valid && !sessionID.Valid:
		p.Owner = models.OwnedByArchive(archiveID.Int64)
	default:
		return nil, fmt.Errorf("repository: payment %d has no single owner", p.ID)
	}
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		p.SettledAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
