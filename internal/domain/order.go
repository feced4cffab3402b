package domain

import "time"

type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusPacked          OrderStatus = "packed"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusReturned        OrderStatus = "returned"
	OrderStatusRefunded        OrderStatus = "refunded"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// validNext is the complete set of legal status transitions. Any (from, to)
// pair absent from this table is rejected; cancelled and refunded have no
// outgoing edges.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPendingPayment:  {OrderStatusConfirmed: true, OrderStatusCancelled: true},
	OrderStatusConfirmed:       {OrderStatusPacked: true, OrderStatusCancelled: true},
	OrderStatusPacked:          {OrderStatusShipped: true},
	OrderStatusShipped:         {OrderStatusDelivered: true},
	OrderStatusDelivered:       {OrderStatusReturnRequested: true},
	OrderStatusReturnRequested: {OrderStatusReturned: true},
	OrderStatusReturned:        {OrderStatusRefunded: true},
	OrderStatusRefunded:        {},
	OrderStatusCancelled:       {},
}

// CanTransitionTo reports whether the edge from s to target exists in the
// transition graph.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return validNext[s][target]
}

// Terminal reports whether the status has no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return len(validNext[s]) == 0
}

// OrderStatuses lists every known status, in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPendingPayment,
		OrderStatusConfirmed,
		OrderStatusPacked,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusReturnRequested,
		OrderStatusReturned,
		OrderStatusRefunded,
		OrderStatusCancelled,
	}
}

// ParseOrderStatus converts a wire value into a known status.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	for _, s := range OrderStatuses() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", ErrUnknownStatus
}

// Order is the status-bearing aggregate the lifecycle state machine drives.
// The per-transition timestamps exist for audit, not control flow.
type Order struct {
	ID       string
	TenantID string
	Status   OrderStatus

	ConfirmedAt       *time.Time
	PackedAt          *time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	ReturnRequestedAt *time.Time
	ReturnedAt        *time.Time
	RefundedAt        *time.Time
	CancelledAt       *time.Time

	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
