package service

import "time"

// EventType names a gate feed event.
type EventType string

const (
	EventVehicleArrived EventType = "vehicle_arrived"
	EventPaymentSettled EventType = "payment_settled"
	EventVehicleExited  EventType = "vehicle_exited"
)

// Event is published after the transaction that produced it commits.
type Event struct {
	Type              EventType `json:"type"`
	LicensePlate      string    `json:"license_plate"`
	SessionID         int64     `json:"session_id,omitempty"`
	ArchivedSessionID int64     `json:"archived_session_id,omitempty"`
	PaymentID         int64     `json:"payment_id,omitempty"`
	Amount            float64   `json:"amount,omitempty"`
	At                time.Time `json:"at"`
}

// Publisher delivers events to live subscribers.
type Publisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
