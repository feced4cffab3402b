package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/testutil"
)

func TestOrderRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewOrderRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetOrder scopes by tenant", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		orderID := testutil.InsertOrder(t, ctx, pool, "t1", domain.OrderStatusPendingPayment)

		order, err := repo.GetOrder(ctx, "t1", orderID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if order.Status != domain.OrderStatusPendingPayment {
			t.Fatalf("expected pending_payment, got %s", order.Status)
		}

		if _, err := repo.GetOrder(ctx, "other", orderID); err != domain.ErrOrderNotFound {
			t.Fatalf("expected ErrOrderNotFound across tenants, got %v", err)
		}
		if _, err := repo.GetOrder(ctx, "t1", "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("UpdateStatus applies only from the expected source state", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		orderID := testutil.InsertOrder(t, ctx, pool, "t1", domain.OrderStatusPendingPayment)

		order, err := repo.GetOrder(ctx, "t1", orderID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		order.Status = domain.OrderStatusConfirmed
		order.ConfirmedAt = &now
		order.UpdatedAt = now

		applied, err := repo.UpdateStatus(ctx, order, domain.OrderStatusPendingPayment)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !applied {
			t.Fatalf("expected update to apply")
		}

		// Replaying the same compare-and-set loses: the stored status moved on.
		applied, err = repo.UpdateStatus(ctx, order, domain.OrderStatusPendingPayment)
		if err != nil {
			t.Fatalf("replay update: %v", err)
		}
		if applied {
			t.Fatalf("expected replay to be rejected")
		}

		got, err := repo.GetOrder(ctx, "t1", orderID)
		if err != nil {
			t.Fatalf("get after update: %v", err)
		}
		if got.Status != domain.OrderStatusConfirmed {
			t.Fatalf("expected confirmed, got %s", got.Status)
		}
		if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(now) {
			t.Fatalf("expected confirmed_at %v, got %v", now, got.ConfirmedAt)
		}
	})

	t.Run("CreateOrder round-trips", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Now().UTC().Truncate(time.Microsecond)
		order := domain.Order{
			ID:        "6dfe7c53-94f4-4ac3-bc0b-8e6f0fca54e8",
			TenantID:  "t1",
			Status:    domain.OrderStatusPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := repo.GetOrder(ctx, "t1", order.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ID != order.ID || got.Status != order.Status {
			t.Fatalf("unexpected order: %+v", got)
		}
	})
}
