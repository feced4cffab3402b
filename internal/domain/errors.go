package domain

import "errors"

var (
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidTTL           = errors.New("invalid ttl")
	ErrInvalidID            = errors.New("invalid id")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrVariantAlreadyExists = errors.New("variant already exists")
	ErrSKURequired          = errors.New("sku required")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnknownStatus        = errors.New("unknown order status")
)
