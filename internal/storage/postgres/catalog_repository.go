package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, variant domain.Variant) error {
	const stmt = `
INSERT INTO variants (id, tenant_id, sku, stock_on_hand, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, stmt,
		variant.ID,
		variant.TenantID,
		variant.SKU,
		variant.StockOnHand,
		variant.CreatedAt,
		variant.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrVariantAlreadyExists
		}
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListVariants(ctx context.Context, tenantID string) ([]domain.Variant, error) {
	const query = `
SELECT id, tenant_id, sku, stock_on_hand, created_at, updated_at
FROM variants
WHERE tenant_id = $1
ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.TenantID, &v.SKU, &v.StockOnHand, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate variants: %w", rows.Err())
	}
	return variants, nil
}

func (r *CatalogRepository) GetVariant(ctx context.Context, tenantID, variantID string) (domain.Variant, error) {
	const query = `
SELECT id, tenant_id, sku, stock_on_hand, created_at, updated_at
FROM variants
WHERE id = $1 AND tenant_id = $2`

	var v domain.Variant
	err := r.pool.QueryRow(ctx, query, variantID, tenantID).
		Scan(&v.ID, &v.TenantID, &v.SKU, &v.StockOnHand, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Variant{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func (r *CatalogRepository) AddStock(ctx context.Context, tenantID, variantID string, quantity int) (domain.Variant, error) {
	const stmt = `
UPDATE variants
SET stock_on_hand = stock_on_hand + $3, updated_at = NOW()
WHERE id = $1 AND tenant_id = $2
RETURNING id, tenant_id, sku, stock_on_hand, created_at, updated_at`

	var v domain.Variant
	err := r.pool.QueryRow(ctx, stmt, variantID, tenantID, quantity).
		Scan(&v.ID, &v.TenantID, &v.SKU, &v.StockOnHand, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Variant{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("add stock: %w", err)
	}
	return v, nil
}
