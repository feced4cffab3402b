package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
)

// Reservation is a temporary, expiring claim on a quantity of variant stock.
// Stock on hand is untouched by an active reservation; only confirmation
// deducts it. Status moves active -> released or active -> confirmed and is
// then immutable. Rows are kept for audit, never deleted by the engine.
type Reservation struct {
	ID        string
	TenantID  string
	VariantID string
	// OrderID is empty until the reservation is tied to an order at checkout.
	OrderID   string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	// RestockedAt is set once when a confirmed reservation's quantity is
	// returned to stock after an order return. Guards double restocking.
	RestockedAt *time.Time
}

// Terminal reports whether the reservation can no longer change status.
func (r Reservation) Terminal() bool {
	return r.Status == ReservationStatusReleased || r.Status == ReservationStatusConfirmed
}

// Expired reports whether the reservation no longer binds capacity at now.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
