package models

import "time"

// BillingConfig is one stored version of the billing parameters. The newest row wins.
type BillingConfig struct {
	ID                       int64     `db:"id" json:"id"`
	Note                     string    `db:"note" json:"note,omitempty"`
	RoundingThresholdMinutes int       `db:"rounding_threshold_minutes" json:"rounding_threshold_minutes"`
	ExitBufferMinutes        float64   `db:"exit_buffer_minutes" json:"exit_buffer_minutes"`
	HourlyRate               float64   `db:"hourly_rate" json:"hourly_rate"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}
