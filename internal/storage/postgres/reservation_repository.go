package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetVariantForUpdate takes the per-variant row lock. Every capacity check
// and stock mutation for the variant serializes behind this lock for the
// duration of the surrounding transaction.
func (r *ReservationRepository) GetVariantForUpdate(ctx context.Context, tenantID, variantID string) (domain.Variant, error) {
	const query = `
SELECT id, tenant_id, sku, stock_on_hand, created_at, updated_at
FROM variants
WHERE id = $1 AND tenant_id = $2
FOR UPDATE`

	var v domain.Variant
	err := r.queryRow(ctx, query, variantID, tenantID).
		Scan(&v.ID, &v.TenantID, &v.SKU, &v.StockOnHand, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Variant{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("get variant for update: %w", err)
	}
	return v, nil
}

// SumActiveReservations counts the quantity currently binding capacity.
// Expired rows are excluded here even if the sweeper has not flipped them yet.
func (r *ReservationRepository) SumActiveReservations(ctx context.Context, tenantID, variantID string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM reservations
WHERE tenant_id = $1 AND variant_id = $2 AND status = 'active' AND expires_at > $3`

	var total int
	if err := r.queryRow(ctx, query, tenantID, variantID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return total, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, tenant_id, variant_id, order_id, quantity, status, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.TenantID,
		res.VariantID,
		nullableID(res.OrderID),
		res.Quantity,
		res.Status,
		res.ExpiresAt,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrVariantNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, tenantID, reservationID string) (domain.Reservation, error) {
	const query = `
SELECT id, tenant_id, variant_id, order_id, quantity, status, expires_at, restocked_at, created_at, updated_at
FROM reservations
WHERE id = $1 AND tenant_id = $2`

	res, err := scanReservation(r.queryRow(ctx, query, reservationID, tenantID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) ListActiveByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Reservation, error) {
	return r.listByOrderStatus(ctx, tenantID, orderID, domain.ReservationStatusActive)
}

func (r *ReservationRepository) ListConfirmedByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Reservation, error) {
	return r.listByOrderStatus(ctx, tenantID, orderID, domain.ReservationStatusConfirmed)
}

func (r *ReservationRepository) listByOrderStatus(ctx context.Context, tenantID, orderID string, status domain.ReservationStatus) ([]domain.Reservation, error) {
	const query = `
SELECT id, tenant_id, variant_id, order_id, quantity, status, expires_at, restocked_at, created_at, updated_at
FROM reservations
WHERE tenant_id = $1 AND order_id = $2 AND status = $3
ORDER BY created_at ASC`

	rows, err := r.query(ctx, query, tenantID, orderID, status)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		if isInvalidUUID(rows.Err()) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

// MarkConfirmed flips an active reservation to confirmed. The status
// predicate in the statement is the idempotency guard: a row already released
// (e.g. by the sweeper) or confirmed reports false, not an error.
func (r *ReservationRepository) MarkConfirmed(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = 'confirmed', expires_at = NULL, updated_at = $3
WHERE id = $1 AND tenant_id = $2 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, reservationID, tenantID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark confirmed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRestocked stamps restocked_at exactly once on a confirmed reservation.
func (r *ReservationRepository) MarkRestocked(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations
SET restocked_at = $3, updated_at = $3
WHERE id = $1 AND tenant_id = $2 AND status = 'confirmed' AND restocked_at IS NULL`

	tag, err := r.exec(ctx, stmt, reservationID, tenantID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark restocked: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) ReleaseByID(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', updated_at = $3
WHERE id = $1 AND tenant_id = $2 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, reservationID, tenantID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("release reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) ReleaseByOrder(ctx context.Context, tenantID, orderID string, now time.Time) (int, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', updated_at = $3
WHERE tenant_id = $1 AND order_id = $2 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, tenantID, orderID, now)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("release by order: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReleaseExpired is the sweeper's bulk flip: one conditional update, no
// per-row locking. Rows confirmed or released in the same instant are
// excluded by the status predicate inside the statement itself.
func (r *ReservationRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	const stmt = `
UPDATE reservations
SET status = 'released', updated_at = $1
WHERE status = 'active' AND expires_at <= $1`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("release expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DecrementStock applies the bounded decrement that makes a confirmation
// permanent. The stock_on_hand >= quantity predicate keeps the column
// non-negative even if callers misbehave.
func (r *ReservationRepository) DecrementStock(ctx context.Context, tenantID, variantID string, quantity int, now time.Time) error {
	const stmt = `
UPDATE variants
SET stock_on_hand = stock_on_hand - $3, updated_at = $4
WHERE id = $1 AND tenant_id = $2 AND stock_on_hand >= $3`

	tag, err := r.exec(ctx, stmt, variantID, tenantID, quantity, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *ReservationRepository) IncrementStock(ctx context.Context, tenantID, variantID string, quantity int, now time.Time) error {
	const stmt = `
UPDATE variants
SET stock_on_hand = stock_on_hand + $3, updated_at = $4
WHERE id = $1 AND tenant_id = $2`

	tag, err := r.exec(ctx, stmt, variantID, tenantID, quantity, now)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVariantNotFound
	}
	return nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var orderID *string
	var expiresAt *time.Time
	err := row.Scan(
		&res.ID,
		&res.TenantID,
		&res.VariantID,
		&orderID,
		&res.Quantity,
		&res.Status,
		&expiresAt,
		&res.RestockedAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if orderID != nil {
		res.OrderID = *orderID
	}
	if expiresAt != nil {
		res.ExpiresAt = *expiresAt
	}
	return res, nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
