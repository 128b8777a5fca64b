// Package billing holds the pure fee rules: billable hours, amount due and payment validity.
package billing

import (
	"math"
	"time"
)

// BillableHours converts a parked duration into whole billable hours. The partial hour is
// charged only when its minutes strictly exceed thresholdMinutes; a remainder equal to the
// threshold rounds down. Negative durations bill zero hours.
func BillableHours(elapsed time.Duration, thresholdMinutes int) int {
	if elapsed <= 0 {
		return 0
	}
	if thresholdMinutes < 0 {
		thresholdMinutes = 0
	}

	hours := elapsed / time.Hour
	remainder := elapsed - hours*time.Hour
	if remainder > time.Duration(thresholdMinutes)*time.Minute {
		hours++
	}
	return int(hours)
}

// AmountDue is hours*rate minus discount, floored at zero.
func AmountDue(hours int, hourlyRate, discount float64) float64 {
	amount := float64(hours)*hourlyRate - discount
	if amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	return amount
}

// IsPaymentWindowValid reports whether now is still inside the validity window that
// started at settledAt. The window end itself is still valid.
func IsPaymentWindowValid(settledAt, now time.Time, window time.Duration) bool {
	return !now.After(settledAt.Add(window))
}
