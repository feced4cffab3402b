package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/clock"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
)

type CatalogRepository interface {
	CreateVariant(ctx context.Context, variant domain.Variant) error
	ListVariants(ctx context.Context, tenantID string) ([]domain.Variant, error)
	GetVariant(ctx context.Context, tenantID, variantID string) (domain.Variant, error)
	// AddStock applies a positive stock adjustment and returns the updated row.
	AddStock(ctx context.Context, tenantID, variantID string, quantity int) (domain.Variant, error)
}

// CatalogService is the admin surface for seeding and adjusting the variant
// stock store. Reservation and confirmation never go through here.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateVariantInput struct {
	TenantID    string
	SKU         string
	StockOnHand int
}

func (s *CatalogService) CreateVariant(ctx context.Context, in CreateVariantInput) (domain.Variant, error) {
	if in.TenantID == "" {
		return domain.Variant{}, domain.ErrInvalidID
	}
	if in.SKU == "" {
		return domain.Variant{}, domain.ErrSKURequired
	}
	if in.StockOnHand < 0 {
		return domain.Variant{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	variant := domain.Variant{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		SKU:         in.SKU,
		StockOnHand: in.StockOnHand,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		return domain.Variant{}, err
	}
	return variant, nil
}

func (s *CatalogService) ListVariants(ctx context.Context, tenantID string) ([]domain.Variant, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListVariants(ctx, tenantID)
}

func (s *CatalogService) GetVariant(ctx context.Context, tenantID, variantID string) (domain.Variant, error) {
	if tenantID == "" || variantID == "" {
		return domain.Variant{}, domain.ErrInvalidID
	}
	return s.repo.GetVariant(ctx, tenantID, variantID)
}

func (s *CatalogService) Restock(ctx context.Context, tenantID, variantID string, quantity int) (domain.Variant, error) {
	if tenantID == "" || variantID == "" {
		return domain.Variant{}, domain.ErrInvalidID
	}
	if quantity <= 0 {
		return domain.Variant{}, domain.ErrInvalidQuantity
	}
	return s.repo.AddStock(ctx, tenantID, variantID, quantity)
}
