package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	const query = `
SELECT id, tenant_id, status,
       confirmed_at, packed_at, shipped_at, delivered_at,
       return_requested_at, returned_at, refunded_at, cancelled_at,
       cancellation_reason, created_at, updated_at
FROM orders
WHERE id = $1 AND tenant_id = $2`

	var o domain.Order
	err := r.queryRow(ctx, query, orderID, tenantID).Scan(
		&o.ID,
		&o.TenantID,
		&o.Status,
		&o.ConfirmedAt,
		&o.PackedAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.ReturnRequestedAt,
		&o.ReturnedAt,
		&o.RefundedAt,
		&o.CancelledAt,
		&o.CancellationReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, tenant_id, status, cancellation_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		order.ID,
		order.TenantID,
		order.Status,
		order.CancellationReason,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// UpdateStatus is the state machine's single atomic write: the status and
// every audit timestamp land in one statement that only applies if the stored
// status still equals from. A zero rows-affected result means a concurrent
// transition won the race.
func (r *OrderRepository) UpdateStatus(ctx context.Context, order domain.Order, from domain.OrderStatus) (bool, error) {
	const stmt = `
UPDATE orders
SET status = $3,
    confirmed_at = $4, packed_at = $5, shipped_at = $6, delivered_at = $7,
    return_requested_at = $8, returned_at = $9, refunded_at = $10, cancelled_at = $11,
    cancellation_reason = $12, updated_at = $13
WHERE id = $1 AND tenant_id = $2 AND status = $14`

	tag, err := r.exec(ctx, stmt,
		order.ID,
		order.TenantID,
		order.Status,
		order.ConfirmedAt,
		order.PackedAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.ReturnRequestedAt,
		order.ReturnedAt,
		order.RefundedAt,
		order.CancelledAt,
		order.CancellationReason,
		order.UpdatedAt,
		from,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
