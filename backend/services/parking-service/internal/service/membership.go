package service

import (
	"context"
	"time"

	"parkwise/backend/services/parking-service/internal/models"
)

// MembershipLookup supplies the discount granted on a vehicle's first pending payment.
type MembershipLookup interface {
	EntryDiscount(ctx context.Context, v *models.Vehicle, now time.Time) (float64, error)
}

// VIPDiscount grants a flat discount while the vehicle's VIP status is active.
type VIPDiscount struct {
	Amount float64
}

func (d VIPDiscount) EntryDiscount(_ context.Context, v *models.Vehicle, now time.Time) (float64, error) {
	if d.Amount <= 0 || !v.IsVIP(now) {
		return 0, nil
	}
	return d.Amount, nil
}
