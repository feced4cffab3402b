package domain

import "time"

// Variant is the stock-bearing unit of the catalog. StockOnHand counts
// physical units owned; it is decremented only when a reservation is
// confirmed and incremented only by restocks (admin or order return).
type Variant struct {
	ID          string
	TenantID    string
	SKU         string
	StockOnHand int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
