package models

import "time"

// Vehicle is identified by its license plate.
type Vehicle struct {
	ID           int64      `db:"id" json:"id"`
	LicensePlate string     `db:"license_plate" json:"license_plate"`
	MemberID     *int64     `db:"member_id" json:"member_id,omitempty"`
	VIPExpiresAt *time.Time `db:"vip_expires_at" json:"vip_expires_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IsVIP reports whether the VIP membership is still running at now.
func (v *Vehicle) IsVIP(now time.Time) bool {
	return v != nil && v.VIPExpiresAt != nil && v.VIPExpiresAt.After(now)
}
