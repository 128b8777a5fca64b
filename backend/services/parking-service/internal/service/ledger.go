package service

import (
	"context"
	"errors"
	"time"

	"parkwise/backend/services/parking-service/internal/billing"
	"parkwise/backend/services/parking-service/internal/models"
	"parkwise/backend/services/parking-service/internal/repository"
)

// LastPayment describes the most recent settlement of a session.
type LastPayment struct {
	PaymentID  int64     `json:"payment_id"`
	Amount     float64   `json:"amount"`
	Discount   float64   `json:"discount"`
	SettledAt  time.Time `json:"settled_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// ChargeEvaluation answers whether the vehicle owes money right now.
type ChargeEvaluation struct {
	Plate            string          `json:"license_plate"`
	SessionID        int64           `json:"session_id"`
	EntryTime        time.Time       `json:"entry_time"`
	EvaluatedAt      time.Time       `json:"evaluated_at"`
	NeedsNewPayment  bool            `json:"needs_new_payment"`
	LastPayment      *LastPayment    `json:"last_payment,omitempty"`
	NewCharge        *billing.Charge `json:"new_charge,omitempty"`
	PendingPaymentID int64           `json:"pending_payment_id,omitempty"`
	Params           billing.Params  `json:"billing"`

	unsettled *models.PaymentRecord
}

// ledger owns creation and settlement of payment records.
type ledger struct{}

// openPending creates the single unsettled record of a session.
func (ledger) openPending(ctx context.Context, payments PaymentStore, sessionID int64, discount float64) (*models.PaymentRecord, error) {
	if discount < 0 {
		discount = 0
	}
	p := &models.PaymentRecord{
		Owner:    models.OwnedBySession(sessionID),
		Discount: discount,
	}
	if err := payments.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "session %d already has an outstanding payment", sessionID)
		}
		return nil, err
	}
	return p, nil
}

// settle stamps amount and time on an unsettled record.
func (ledger) settle(ctx context.Context, payments PaymentStore, p *models.PaymentRecord, amount float64, at time.Time) error {
	if p.Settled() {
		return newError(ErrConflict, "payment %d is already settled", p.ID)
	}
	if amount < 0 {
		return newError(ErrValidation, "payment amount must not be negative")
	}
	if err := payments.Settle(ctx, p.ID, amount, at); err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			return newError(ErrConflict, "payment %d is already settled", p.ID)
		}
		return err
	}
	p.Amount = amount
	p.SettledAt = &at
	return nil
}

// assess computes the charge evaluation without writing anything.
func (ledger) assess(ctx context.Context, payments PaymentStore, s *models.Session, now time.Time, params billing.Params) (*ChargeEvaluation, error) {
	last, err := payments.LatestSettled(ctx, s.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	unsettled, err := payments.FindUnsettled(ctx, s.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	eval := &ChargeEvaluation{
		SessionID:       s.ID,
		EntryTime:       s.EntryTime,
		EvaluatedAt:     now,
		NeedsNewPayment: true,
		Params:          params,
		unsettled:       unsettled,
	}
	if unsettled != nil {
		eval.PendingPaymentID = unsettled.ID
	}

	start := s.EntryTime
	discount := 0.0
	if last != nil {
		validUntil := last.SettledAt.Add(params.PaymentValidity)
		eval.LastPayment = &LastPayment{
			PaymentID:  last.ID,
			Amount:     last.Amount,
			Discount:   last.Discount,
			SettledAt:  *last.SettledAt,
			ValidUntil: validUntil,
		}
		eval.NeedsNewPayment = !billing.IsPaymentWindowValid(*last.SettledAt, now, params.PaymentValidity)
		// Time already paid for is never billed twice.
		start = *last.SettledAt
		discount = last.Discount
	}
	if unsettled != nil {
		discount = unsettled.Discount
	}

	if eval.NeedsNewPayment {
		charge := params.Compute(start, now, discount)
		eval.NewCharge = &charge
	}
	return eval, nil
}

// evaluate is assess plus opening a pending record when one is owed and none exists.
func (l ledger) evaluate(ctx context.Context, payments PaymentStore, s *models.Session, now time.Time, params billing.Params) (*ChargeEvaluation, error) {
	eval, err := l.assess(ctx, payments, s, now, params)
	if err != nil {
		return nil, err
	}
	if !eval.NeedsNewPayment || eval.unsettled != nil {
		return eval, nil
	}

	p, err := l.openPending(ctx, payments, s.ID, eval.NewCharge.Discount)
	if err != nil {
		return nil, err
	}
	eval.unsettled = p
	eval.PendingPaymentID = p.ID
	return eval, nil
}

// checkoutBlocker returns a PaymentRequired error when eval forbids leaving.
func checkoutBlocker(eval *ChargeEvaluation) error {
	if eval.NeedsNewPayment && eval.NewCharge != nil && eval.NewCharge.Amount > 0 {
		return newError(ErrPaymentRequired, "outstanding charge of %.2f for %d hour(s)", eval.NewCharge.Amount, eval.NewCharge.ParkedHours)
	}
	if eval.unsettled != nil {
		return newError(ErrPaymentRequired, "payment %d has not been settled", eval.unsettled.ID)
	}
	return nil
}
