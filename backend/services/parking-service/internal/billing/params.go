package billing

import (
	"time"

	"parkwise/backend/services/parking-service/internal/models"
)

// Source tells where resolved parameters came from.
type Source string

const (
	SourceDatabase Source = "database"
	SourceDefault  Source = "default"
)

// Params are the billing parameters in effect for one evaluation.
type Params struct {
	RoundingThresholdMinutes int           `json:"rounding_threshold_minutes"`
	HourlyRate               float64       `json:"hourly_rate"`
	PaymentValidity          time.Duration `json:"payment_validity"`
	// ExitBufferMinutes is stored and reported but does not take part in fee computation.
	ExitBufferMinutes float64 `json:"exit_buffer_minutes"`
	Source            Source  `json:"source"`
	ConfigID          int64   `json:"config_id,omitempty"`
}

// Defaults is the static layer used when no configuration row exists.
type Defaults struct {
	RoundingThresholdMinutes int
	ExitBufferMinutes        float64
	HourlyRate               float64
	PaymentValidity          time.Duration
}

// BuiltinDefaults mirrors the values the facility ran with before configuration rows existed.
var BuiltinDefaults = Defaults{
	RoundingThresholdMinutes: 30,
	ExitBufferMinutes:        15,
	HourlyRate:               20,
	PaymentValidity:          time.Minute,
}

// Resolve layers cfg over d. A nil cfg yields the defaults.
func Resolve(cfg *models.BillingConfig, d Defaults) Params {
	d = d.withFallback()
	if cfg == nil {
		return Params{
			RoundingThresholdMinutes: d.RoundingThresholdMinutes,
			HourlyRate:               d.HourlyRate,
			PaymentValidity:          d.PaymentValidity,
			ExitBufferMinutes:        d.ExitBufferMinutes,
			Source:                   SourceDefault,
		}
	}

	p := Params{
		RoundingThresholdMinutes: cfg.RoundingThresholdMinutes,
		HourlyRate:               cfg.HourlyRate,
		PaymentValidity:          d.PaymentValidity,
		ExitBufferMinutes:        cfg.ExitBufferMinutes,
		Source:                   SourceDatabase,
		ConfigID:                 cfg.ID,
	}
	if p.RoundingThresholdMinutes < 0 {
		p.RoundingThresholdMinutes = d.RoundingThresholdMinutes
	}
	if p.HourlyRate <= 0 {
		p.HourlyRate = d.HourlyRate
	}
	return p
}

func (d Defaults) withFallback() Defaults {
	if d.RoundingThresholdMinutes < 0 {
		d.RoundingThresholdMinutes = BuiltinDefaults.RoundingThresholdMinutes
	}
	if d.HourlyRate <= 0 {
		d.HourlyRate = BuiltinDefaults.HourlyRate
	}
	if d.PaymentValidity <= 0 {
		d.PaymentValidity = BuiltinDefaults.PaymentValidity
	}
	if d.ExitBufferMinutes < 0 {
		d.ExitBufferMinutes = BuiltinDefaults.ExitBufferMinutes
	}
	return d
}

// Charge is the fee for one billing window.
type Charge struct {
	StartTime   time.Time `json:"start_time"`
	ParkedHours int       `json:"parked_hours"`
	Amount      float64   `json:"amount"`
	Discount    float64   `json:"discount"`
}

// Compute charges the window [start, now] under p.
func (p Params) Compute(start, now time.Time, discount float64) Charge {
	hours := BillableHours(now.Sub(start), p.RoundingThresholdMinutes)
	return Charge{
		StartTime:   start,
		ParkedHours: hours,
		Amount:      AmountDue(hours, p.HourlyRate, discount),
		Discount:    discount,
	}
}
