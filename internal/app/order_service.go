package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/clock"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/metrics"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	// UpdateStatus persists the order's new status and timestamps only if the
	// stored status still equals from, and reports whether it did.
	UpdateStatus(ctx context.Context, order domain.Order, from domain.OrderStatus) (bool, error)
}

// StockReleaser is what the state machine needs from the reservation engine.
// The state machine never touches stock or reservation rows itself; these two
// idempotent calls are its only way in.
type StockReleaser interface {
	Release(ctx context.Context, orderID, tenantID string) error
	Restock(ctx context.Context, orderID, tenantID string) error
}

// OrderService drives the order lifecycle state machine. Transition validity
// is decided purely by the domain adjacency table; persistence uses a
// compare-and-set on the source status so a concurrent transition loses
// cleanly instead of overwriting.
type OrderService struct {
	repo   OrderRepository
	stock  StockReleaser
	clock  clock.Clock
	events EventPublisher
	logger *zap.Logger
}

func NewOrderService(repo OrderRepository, stock StockReleaser, clk clock.Clock, events EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		stock:  stock,
		clock:  clk,
		events: events,
		logger: logger,
	}
}

// CreateOrder opens a new order in pending_payment, the state machine's
// initial state.
func (s *OrderService) CreateOrder(ctx context.Context, tenantID string) (domain.Order, error) {
	if tenantID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Status:    domain.OrderStatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

type TransitionInput struct {
	OrderID  string
	TenantID string
	Target   domain.OrderStatus
	Reason   string
}

// TransitionTo validates and applies one status transition. Rejected
// transitions write nothing and publish nothing. Entering cancelled releases
// the order's reservations; entering returned restocks confirmed quantities
// and releases leftovers. Both side effects are separate idempotent calls
// made after the status write commits, so a failure partway is fixed by
// retrying the call, not by compensating the order.
func (s *OrderService) TransitionTo(ctx context.Context, in TransitionInput) (domain.Order, error) {
	if in.OrderID == "" || in.TenantID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}

	order, err := s.repo.GetOrder(ctx, in.TenantID, in.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !order.Status.CanTransitionTo(in.Target) {
		metrics.OrderTransitionsRejected.Inc()
		return domain.Order{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	from := order.Status
	order.Status = in.Target
	order.UpdatedAt = now
	stampTransition(&order, in.Target, in.Reason, now)

	applied, err := s.repo.UpdateStatus(ctx, order, from)
	if err != nil {
		return domain.Order{}, err
	}
	if !applied {
		// A concurrent transition won; the source state no longer matches,
		// which is the same rejection a stale request gets.
		metrics.OrderTransitionsRejected.Inc()
		return domain.Order{}, domain.ErrInvalidTransition
	}

	switch in.Target {
	case domain.OrderStatusCancelled:
		if err := s.stock.Release(ctx, in.OrderID, in.TenantID); err != nil {
			// The transition is committed; release is idempotent and can be
			// retried by the operator or reclaimed by the sweeper on expiry.
			s.logger.Error("release reservations after cancel",
				zap.String("tenant_id", in.TenantID),
				zap.String("order_id", in.OrderID),
				zap.Error(err),
			)
		}
	case domain.OrderStatusReturned:
		if err := s.stock.Restock(ctx, in.OrderID, in.TenantID); err != nil {
			s.logger.Error("restock after return",
				zap.String("tenant_id", in.TenantID),
				zap.String("order_id", in.OrderID),
				zap.Error(err),
			)
		}
		if err := s.stock.Release(ctx, in.OrderID, in.TenantID); err != nil {
			s.logger.Error("release reservations after return",
				zap.String("tenant_id", in.TenantID),
				zap.String("order_id", in.OrderID),
				zap.Error(err),
			)
		}
	}

	metrics.OrderTransitions.WithLabelValues(string(in.Target)).Inc()
	s.events.Publish(ctx, domain.Event{
		Type:       domain.EventOrderTransitioned,
		TenantID:   in.TenantID,
		OrderID:    in.OrderID,
		FromStatus: from,
		ToStatus:   in.Target,
		Reason:     in.Reason,
		OccurredAt: now,
	})
	s.logger.Info("order transitioned",
		zap.String("tenant_id", in.TenantID),
		zap.String("order_id", in.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(in.Target)),
	)
	return order, nil
}

// GetOrder loads an order scoped to its tenant.
func (s *OrderService) GetOrder(ctx context.Context, orderID, tenantID string) (domain.Order, error) {
	if orderID == "" || tenantID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.repo.GetOrder(ctx, tenantID, orderID)
}

func stampTransition(order *domain.Order, target domain.OrderStatus, reason string, now time.Time) {
	switch target {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusPacked:
		order.PackedAt = &now
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusReturnRequested:
		order.ReturnRequestedAt = &now
	case domain.OrderStatusReturned:
		order.ReturnedAt = &now
	case domain.OrderStatusRefunded:
		order.RefundedAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
		order.CancellationReason = reason
	}
}
