package models

import "time"

// Session is an open visit: the vehicle is still inside the facility.
type Session struct {
	ID        int64     `db:"id" json:"id"`
	VehicleID int64     `db:"vehicle_id" json:"vehicle_id"`
	EntryTime time.Time `db:"entry_time" json:"entry_time"`
	PhotoPath string    `db:"photo_path" json:"photo_path,omitempty"`
}

// ArchivedSession is the immutable record of a completed visit.
type ArchivedSession struct {
	ID        int64     `db:"id" json:"id"`
	VehicleID int64     `db:"vehicle_id" json:"vehicle_id"`
	EntryTime time.Time `db:"entry_time" json:"entry_time"`
	ExitTime  time.Time `db:"exit_time" json:"exit_time"`
	PhotoPath string    `db:"photo_path" json:"photo_path,omitempty"`
}

// Archive builds the archived form of s closed at exit.
func (s Session) Archive(exit time.Time) ArchivedSession {
	if exit.Before(s.EntryTime) {
		exit = s.EntryTime
	}
	return ArchivedSession{
		VehicleID: s.VehicleID,
		EntryTime: s.EntryTime,
		ExitTime:  exit,
		PhotoPath: s.PhotoPath,
	}
}

// SessionDetail is an open session joined with its vehicle.
type SessionDetail struct {
	Session Session
	Vehicle Vehicle
}

// ArchiveDetail is a completed visit joined with its vehicle.
type ArchiveDetail struct {
	Archive ArchivedSession
	Vehicle Vehicle
}
