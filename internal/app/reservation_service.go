package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/clock"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/metrics"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetVariantForUpdate(ctx context.Context, tenantID, variantID string) (domain.Variant, error)
	SumActiveReservations(ctx context.Context, tenantID, variantID string, now time.Time) (int, error)
	CreateReservation(ctx context.Context, res domain.Reservation) error
	GetReservation(ctx context.Context, tenantID, reservationID string) (domain.Reservation, error)
	ListActiveByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Reservation, error)
	ListConfirmedByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Reservation, error)
	// MarkConfirmed flips an active reservation to confirmed and reports
	// whether this call did the flip. A false return with no error means the
	// row was already terminal.
	MarkConfirmed(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error)
	// MarkRestocked stamps restocked_at on a confirmed reservation exactly
	// once; false means another caller already restocked it.
	MarkRestocked(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error)
	ReleaseByID(ctx context.Context, tenantID, reservationID string, now time.Time) (bool, error)
	ReleaseByOrder(ctx context.Context, tenantID, orderID string, now time.Time) (int, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
	DecrementStock(ctx context.Context, tenantID, variantID string, quantity int, now time.Time) error
	IncrementStock(ctx context.Context, tenantID, variantID string, quantity int, now time.Time) error
}

// EventPublisher is the outbound side of the engine. Implementations must not
// block state changes on delivery; see events.KafkaPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// ReservationService is the single writer path into variant stock and the
// reservation ledger. All capacity math happens under a per-variant row lock
// held only for the check-and-write, never across a whole business flow.
type ReservationService struct {
	repo   ReservationRepository
	clock  clock.Clock
	events EventPublisher
	logger *zap.Logger
}

func NewReservationService(repo ReservationRepository, clk clock.Clock, events EventPublisher, logger *zap.Logger) *ReservationService {
	return &ReservationService{
		repo:   repo,
		clock:  clk,
		events: events,
		logger: logger,
	}
}

type ReserveInput struct {
	TenantID  string
	VariantID string
	// OrderID may be empty at checkout start and is stamped on the
	// reservation so later confirm/release calls can find it by order.
	OrderID  string
	Quantity int
	TTL      time.Duration
}

// Reserve claims quantity units of a variant for the TTL window. The capacity
// check and the ledger insert run inside one transaction holding the variant
// row lock, so two concurrent callers can never both observe the same
// available count.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if in.TTL < 0 {
		return domain.Reservation{}, domain.ErrInvalidTTL
	}
	if in.TenantID == "" || in.VariantID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		variant, err := s.repo.GetVariantForUpdate(txCtx, in.TenantID, in.VariantID)
		if err != nil {
			return err
		}

		// Expired rows still marked active do not bind capacity; the sum
		// predicate excludes them the same way the sweeper does.
		reserved, err := s.repo.SumActiveReservations(txCtx, in.TenantID, in.VariantID, now)
		if err != nil {
			return err
		}

		available := variant.StockOnHand - reserved
		if in.Quantity > available {
			return domain.ErrInsufficientStock
		}

		res := domain.Reservation{
			ID:        uuid.NewString(),
			TenantID:  in.TenantID,
			VariantID: in.VariantID,
			OrderID:   in.OrderID,
			Quantity:  in.Quantity,
			Status:    domain.ReservationStatusActive,
			ExpiresAt: now.Add(in.TTL),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateReservation(txCtx, res); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.ReservationsRejected.Inc()
		}
		return domain.Reservation{}, err
	}

	metrics.ReservationsCreated.Inc()
	s.events.Publish(ctx, domain.Event{
		Type:          domain.EventReservationCreated,
		TenantID:      result.TenantID,
		OrderID:       result.OrderID,
		VariantID:     result.VariantID,
		ReservationID: result.ID,
		Quantity:      result.Quantity,
		OccurredAt:    now,
	})
	s.logger.Info("reservation created",
		zap.String("tenant_id", result.TenantID),
		zap.String("variant_id", result.VariantID),
		zap.String("reservation_id", result.ID),
		zap.Int("quantity", result.Quantity),
	)
	return result, nil
}

// Confirm permanently consumes stock for every active reservation tied to the
// order. Each reservation is flipped and its stock decremented inside one
// transaction under the variant row lock; rows already terminal (released by
// the sweeper, or confirmed by an earlier call) are skipped, which makes the
// operation idempotent. This is the only path that decrements stock.
func (s *ReservationService) Confirm(ctx context.Context, orderID, tenantID string) error {
	if orderID == "" || tenantID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	active, err := s.repo.ListActiveByOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	for _, res := range active {
		res := res
		var flipped bool
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.repo.GetVariantForUpdate(txCtx, tenantID, res.VariantID); err != nil {
				return err
			}
			var err error
			flipped, err = s.repo.MarkConfirmed(txCtx, tenantID, res.ID, now)
			if err != nil {
				return err
			}
			if !flipped {
				// Lost the race to a release or an earlier confirm.
				return nil
			}
			return s.repo.DecrementStock(txCtx, tenantID, res.VariantID, res.Quantity, now)
		})
		if err != nil {
			return err
		}
		if !flipped {
			continue
		}

		metrics.ReservationsConfirmed.Inc()
		s.events.Publish(ctx, domain.Event{
			Type:          domain.EventReservationConfirmed,
			TenantID:      tenantID,
			OrderID:       orderID,
			VariantID:     res.VariantID,
			ReservationID: res.ID,
			Quantity:      res.Quantity,
			OccurredAt:    now,
		})
		s.logger.Info("reservation confirmed",
			zap.String("tenant_id", tenantID),
			zap.String("order_id", orderID),
			zap.String("reservation_id", res.ID),
			zap.Int("quantity", res.Quantity),
		)
	}
	return nil
}

// Release returns every active reservation of the order to available
// capacity. Stock on hand is untouched; the rows flip via a conditional
// update so repeated or concurrent releases are no-ops.
func (s *ReservationService) Release(ctx context.Context, orderID, tenantID string) error {
	if orderID == "" || tenantID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	released, err := s.repo.ReleaseByOrder(ctx, tenantID, orderID, now)
	if err != nil {
		return err
	}
	if released == 0 {
		return nil
	}

	metrics.ReservationsReleased.Add(float64(released))
	s.events.Publish(ctx, domain.Event{
		Type:       domain.EventReservationReleased,
		TenantID:   tenantID,
		OrderID:    orderID,
		Count:      released,
		OccurredAt: now,
	})
	s.logger.Info("reservations released",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", orderID),
		zap.Int("count", released),
	)
	return nil
}

// ReleaseReservation releases a single reservation by id. Releasing a row
// that is already released or confirmed is a no-op; an unknown id is an
// error so operators can tell a typo from an idempotent retry.
func (s *ReservationService) ReleaseReservation(ctx context.Context, reservationID, tenantID string) error {
	if reservationID == "" || tenantID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	flipped, err := s.repo.ReleaseByID(ctx, tenantID, reservationID, now)
	if err != nil {
		return err
	}
	if !flipped {
		// Distinguish an idempotent retry from an unknown id.
		if _, err := s.repo.GetReservation(ctx, tenantID, reservationID); err != nil {
			return err
		}
		return nil
	}

	metrics.ReservationsReleased.Inc()
	s.events.Publish(ctx, domain.Event{
		Type:          domain.EventReservationReleased,
		TenantID:      tenantID,
		ReservationID: reservationID,
		Count:         1,
		OccurredAt:    now,
	})
	return nil
}

// CleanupExpired flips every active reservation whose expiry has passed to
// released in one conditional update and returns how many rows it touched.
// Safe to run concurrently with reserve/confirm/release: a row confirmed in
// the same instant is excluded by the status predicate inside the statement.
func (s *ReservationService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	released, err := s.repo.ReleaseExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if released == 0 {
		return 0, nil
	}

	metrics.ReservationsReleased.Add(float64(released))
	s.events.Publish(ctx, domain.Event{
		Type:       domain.EventReservationsSwept,
		Count:      released,
		OccurredAt: now,
	})
	s.logger.Info("expired reservations released", zap.Int("count", released))
	return released, nil
}

// Restock returns the confirmed quantities of an order to stock, used when a
// returned order's goods arrive back. Each reservation restocks at most once
// (restocked_at is stamped under the same transaction as the increment), so
// retries cannot inflate stock.
func (s *ReservationService) Restock(ctx context.Context, orderID, tenantID string) error {
	if orderID == "" || tenantID == "" {
		return domain.ErrInvalidID
	}

	now := s.clock.Now()
	confirmed, err := s.repo.ListConfirmedByOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	for _, res := range confirmed {
		res := res
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.repo.GetVariantForUpdate(txCtx, tenantID, res.VariantID); err != nil {
				return err
			}
			stamped, err := s.repo.MarkRestocked(txCtx, tenantID, res.ID, now)
			if err != nil {
				return err
			}
			if !stamped {
				return nil
			}
			return s.repo.IncrementStock(txCtx, tenantID, res.VariantID, res.Quantity, now)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
