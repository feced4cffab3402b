package domain

import "time"

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationReleased  EventType = "reservation.released"
	EventReservationsSwept    EventType = "reservation.expired_swept"
	EventOrderTransitioned    EventType = "order.transitioned"
)

// Event is an outbound domain event. Publication is fire-and-forget: a failed
// publish never rolls back the state change it describes, and no event is
// emitted for a rejected operation.
type Event struct {
	Type          EventType   `json:"type"`
	TenantID      string      `json:"tenant_id,omitempty"`
	OrderID       string      `json:"order_id,omitempty"`
	VariantID     string      `json:"variant_id,omitempty"`
	ReservationID string      `json:"reservation_id,omitempty"`
	Quantity      int         `json:"quantity,omitempty"`
	FromStatus    OrderStatus `json:"from_status,omitempty"`
	ToStatus      OrderStatus `json:"to_status,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	// Count carries the number of reservations released by a sweep.
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
