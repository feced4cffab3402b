package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/clock"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/domain"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/events"
)

func TestReservationService_Reserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	makeSvc := func(variants []domain.Variant, reservations []domain.Reservation) (*ReservationService, *fakeReservationRepo, *events.Recorder) {
		repo := newFakeReservationRepo(variants, reservations)
		rec := events.NewRecorder()
		svc := NewReservationService(repo, clock.NewFixed(now), rec, zap.NewNop())
		return svc, repo, rec
	}

	t.Run("creates reservation when stock available", func(t *testing.T) {
		svc, repo, rec := makeSvc(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 100}},
			[]domain.Reservation{
				{ID: "r-1", TenantID: "t1", VariantID: "var-1", Quantity: 30, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(10 * time.Minute)},
			},
		)

		res, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID:  "t1",
			VariantID: "var-1",
			OrderID:   "ord-1",
			Quantity:  10,
			TTL:       ttl,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.ID == "" {
			t.Fatalf("expected reservation ID to be set")
		}
		if res.Status != domain.ReservationStatusActive {
			t.Fatalf("expected status %s, got %s", domain.ReservationStatusActive, res.Status)
		}
		if !res.ExpiresAt.Equal(now.Add(ttl)) {
			t.Fatalf("expected expires_at %v, got %v", now.Add(ttl), res.ExpiresAt)
		}
		if len(repo.reservations) != 2 {
			t.Fatalf("expected 2 reservations in repo, got %d", len(repo.reservations))
		}
		if got := len(rec.ByType(domain.EventReservationCreated)); got != 1 {
			t.Fatalf("expected 1 created event, got %d", got)
		}
		// Stock on hand never moves on reserve.
		if repo.variants["t1|var-1"].StockOnHand != 100 {
			t.Fatalf("reserve must not touch stock, got %d", repo.variants["t1|var-1"].StockOnHand)
		}
	})

	t.Run("fails with insufficient stock and writes nothing", func(t *testing.T) {
		svc, repo, rec := makeSvc(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 100}},
			[]domain.Reservation{
				{ID: "r-1", TenantID: "t1", VariantID: "var-1", Quantity: 90, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(5 * time.Minute)},
			},
		)

		_, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID:  "t1",
			VariantID: "var-1",
			Quantity:  20,
			TTL:       ttl,
		})
		if err != domain.ErrInsufficientStock {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		if len(repo.reservations) != 1 {
			t.Fatalf("expected reservations unchanged on failure, got %d", len(repo.reservations))
		}
		if len(rec.Events()) != 0 {
			t.Fatalf("expected no events on failure, got %d", len(rec.Events()))
		}
	})

	t.Run("expired active reservations free capacity before any sweep", func(t *testing.T) {
		svc, _, _ := makeSvc(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
			[]domain.Reservation{
				{ID: "r-1", TenantID: "t1", VariantID: "var-1", Quantity: 3, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(-1 * time.Minute)},
			},
		)

		res, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID:  "t1",
			VariantID: "var-1",
			Quantity:  10,
			TTL:       ttl,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Quantity != 10 {
			t.Fatalf("expected quantity 10, got %d", res.Quantity)
		}
	})

	t.Run("zero ttl yields an immediately expired reservation", func(t *testing.T) {
		svc, _, _ := makeSvc(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
			nil,
		)

		first, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID: "t1", VariantID: "var-1", Quantity: 10, TTL: 0,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !first.ExpiresAt.Equal(now) {
			t.Fatalf("expected expires_at == now, got %v", first.ExpiresAt)
		}

		// The zero-TTL claim does not bind capacity for the next caller.
		if _, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID: "t1", VariantID: "var-1", Quantity: 10, TTL: ttl,
		}); err != nil {
			t.Fatalf("expected expired reservation to be non-binding, got %v", err)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		svc, _, _ := makeSvc([]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}}, nil)

		if _, err := svc.Reserve(context.Background(), ReserveInput{TenantID: "t1", VariantID: "var-1", Quantity: 0, TTL: ttl}); err != domain.ErrInvalidQuantity {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
		if _, err := svc.Reserve(context.Background(), ReserveInput{TenantID: "t1", VariantID: "var-1", Quantity: 1, TTL: -time.Minute}); err != domain.ErrInvalidTTL {
			t.Fatalf("expected ErrInvalidTTL, got %v", err)
		}
		if _, err := svc.Reserve(context.Background(), ReserveInput{VariantID: "var-1", Quantity: 1, TTL: ttl}); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		svc, _, _ := makeSvc(nil, nil)

		_, err := svc.Reserve(context.Background(), ReserveInput{
			TenantID: "t1", VariantID: "nope", Quantity: 1, TTL: ttl,
		})
		if err != domain.ErrVariantNotFound {
			t.Fatalf("expected ErrVariantNotFound, got %v", err)
		}
	})
}

func TestReservationService_Reserve_NoOversellUnderConcurrency(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeReservationRepo(
		[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
		nil,
	)
	svc := NewReservationService(repo, clock.NewFixed(now), events.NewRecorder(), zap.NewNop())

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), ReserveInput{
				TenantID:  "t1",
				VariantID: "var-1",
				Quantity:  1,
				TTL:       15 * time.Minute,
			})
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch err {
		case nil:
			succeeded++
		case domain.ErrInsufficientStock:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 10 || insufficient != 10 {
		t.Fatalf("expected 10 successes and 10 rejections, got %d/%d", succeeded, insufficient)
	}

	total := 0
	for _, r := range repo.reservations {
		if r.Status == domain.ReservationStatusActive {
			total += r.Quantity
		}
	}
	if total != 10 {
		t.Fatalf("expected active quantity 10, got %d", total)
	}
}

func TestReservationService_Confirm(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("decrements stock exactly once", func(t *testing.T) {
		repo := newFakeReservationRepo(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
			[]domain.Reservation{
				{ID: "r-1", TenantID: "t1", VariantID: "var-1", OrderID: "ord-1", Quantity: 2, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(10 * time.Minute)},
			},
		)
		rec := events.NewRecorder()
		svc := NewReservationService(repo, clock.NewFixed(now), rec, zap.NewNop())

		if err := svc.Confirm(context.Background(), "ord-1", "t1"); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if got := repo.variants["t1|var-1"].StockOnHand; got != 8 {
			t.Fatalf("expected stock 8, got %d", got)
		}
		if repo.reservations[0].Status != domain.ReservationStatusConfirmed {
			t.Fatalf("expected confirmed, got %s", repo.reservations[0].Status)
		}

		// Second confirm and a late release are both no-ops.
		if err := svc.Confirm(context.Background(), "ord-1", "t1"); err != nil {
			t.Fatalf("second confirm: %v", err)
		}
		if err := svc.Release(context.Background(), "ord-1", "t1"); err != nil {
			t.Fatalf("release after confirm: %v", err)
		}
		if got := repo.variants["t1|var-1"].StockOnHand; got != 8 {
			t.Fatalf("stock must decrement exactly once, got %d", got)
		}
		if repo.reservations[0].Status != domain.ReservationStatusConfirmed {
			t.Fatalf("confirmed is immutable, got %s", repo.reservations[0].Status)
		}
		if got := len(rec.ByType(domain.EventReservationConfirmed)); got != 1 {
			t.Fatalf("expected 1 confirmed event, got %d", got)
		}
	})

	t.Run("skips reservations released by a concurrent sweep", func(t *testing.T) {
		repo := newFakeReservationRepo(
			[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
			[]domain.Reservation{
				{ID: "r-1", TenantID: "t1", VariantID: "var-1", OrderID: "ord-1", Quantity: 2, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(-time.Second)},
			},
		)
		rec := events.NewRecorder()
		svc := NewReservationService(repo, clock.NewFixed(now), rec, zap.NewNop())

		// Sweep wins the race, then confirm arrives.
		if _, err := svc.CleanupExpired(context.Background()); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
		if err := svc.Confirm(context.Background(), "ord-1", "t1"); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		if repo.reservations[0].Status != domain.ReservationStatusReleased {
			t.Fatalf("expected released, got %s", repo.reservations[0].Status)
		}
		if got := repo.variants["t1|var-1"].StockOnHand; got != 10 {
			t.Fatalf("stock must not move for a released reservation, got %d", got)
		}
		if got := len(rec.ByType(domain.EventReservationConfirmed)); got != 0 {
			t.Fatalf("expected no confirmed event, got %d", got)
		}
	})

	t.Run("no-op for order without reservations", func(t *testing.T) {
		repo := newFakeReservationRepo(nil, nil)
		svc := NewReservationService(repo, clock.NewFixed(now), events.NewRecorder(), zap.NewNop())

		if err := svc.Confirm(context.Background(), "ord-none", "t1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestReservationService_Release(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeReservationRepo(
		[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
		[]domain.Reservation{
			{ID: "r-1", TenantID: "t1", VariantID: "var-1", OrderID: "ord-1", Quantity: 2, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(10 * time.Minute)},
			{ID: "r-2", TenantID: "t1", VariantID: "var-1", OrderID: "ord-1", Quantity: 3, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(10 * time.Minute)},
		},
	)
	rec := events.NewRecorder()
	svc := NewReservationService(repo, clock.NewFixed(now), rec, zap.NewNop())

	if err := svc.Release(context.Background(), "ord-1", "t1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	for _, r := range repo.reservations {
		if r.Status != domain.ReservationStatusReleased {
			t.Fatalf("expected released, got %s", r.Status)
		}
	}
	if got := repo.variants["t1|var-1"].StockOnHand; got != 10 {
		t.Fatalf("release must not touch stock, got %d", got)
	}
	if got := len(rec.ByType(domain.EventReservationReleased)); got != 1 {
		t.Fatalf("expected 1 released event, got %d", got)
	}

	// Idempotent: second release changes nothing and publishes nothing new.
	if err := svc.Release(context.Background(), "ord-1", "t1"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if got := len(rec.ByType(domain.EventReservationReleased)); got != 1 {
		t.Fatalf("expected still 1 released event, got %d", got)
	}
}

func TestReservationService_ReleaseReservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeReservationRepo(
		[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
		[]domain.Reservation{
			{ID: "r-1", TenantID: "t1", VariantID: "var-1", Quantity: 2, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(10 * time.Minute)},
			{ID: "r-2", TenantID: "t1", VariantID: "var-1", Quantity: 1, Status: domain.ReservationStatusConfirmed},
		},
	)
	svc := NewReservationService(repo, clock.NewFixed(now), events.NewRecorder(), zap.NewNop())

	if err := svc.ReleaseReservation(context.Background(), "r-1", "t1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if repo.reservations[0].Status != domain.ReservationStatusReleased {
		t.Fatalf("expected released, got %s", repo.reservations[0].Status)
	}

	// Terminal rows are a no-op, unknown ids are an error.
	if err := svc.ReleaseReservation(context.Background(), "r-2", "t1"); err != nil {
		t.Fatalf("release confirmed: %v", err)
	}
	if err := svc.ReleaseReservation(context.Background(), "missing", "t1"); err != domain.ErrReservationNotFound {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestReservationService_CleanupExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeReservationRepo(
		[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 10}},
		[]domain.Reservation{
			{ID: "r-1", TenantID: "t1", VariantID: "var-1", Quantity: 2, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(-time.Minute)},
			{ID: "r-2", TenantID: "t1", VariantID: "var-1", Quantity: 3, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(time.Minute)},
			{ID: "r-3", TenantID: "t1", VariantID: "var-1", Quantity: 1, Status: domain.ReservationStatusConfirmed},
			{ID: "r-4", TenantID: "t2", VariantID: "var-9", Quantity: 4, Status: domain.ReservationStatusActive, ExpiresAt: now.Add(-time.Hour)},
		},
	)
	rec := events.NewRecorder()
	svc := NewReservationService(repo, clock.NewFixed(now), rec, zap.NewNop())

	released, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released, got %d", released)
	}
	if repo.reservations[0].Status != domain.ReservationStatusReleased {
		t.Fatalf("expected r-1 released, got %s", repo.reservations[0].Status)
	}
	if repo.reservations[1].Status != domain.ReservationStatusActive {
		t.Fatalf("unexpired row must stay active, got %s", repo.reservations[1].Status)
	}
	if repo.reservations[2].Status != domain.ReservationStatusConfirmed {
		t.Fatalf("confirmed row must stay confirmed, got %s", repo.reservations[2].Status)
	}
	if got := len(rec.ByType(domain.EventReservationsSwept)); got != 1 {
		t.Fatalf("expected 1 sweep event, got %d", got)
	}

	// A second sweep finds nothing and stays silent.
	released, err = svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected 0 released, got %d", released)
	}
	if got := len(rec.ByType(domain.EventReservationsSwept)); got != 1 {
		t.Fatalf("expected still 1 sweep event, got %d", got)
	}
}

func TestReservationService_Restock(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeReservationRepo(
		[]domain.Variant{{ID: "var-1", TenantID: "t1", StockOnHand: 8}},
		[]domain.Reservation{
			{ID: "r-1", TenantID: "t1", VariantID: "var-1", OrderID: "ord-1", Quantity: 2, Status: domain.ReservationStatusConfirmed},
		},
	)
	svc := NewReservationService(repo, clock.NewFixed(now), events.NewRecorder(), zap.NewNop())

	if err := svc.Restock(context.Background(), "ord-1", "t1"); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if got := repo.variants["t1|var-1"].StockOnHand; got != 10 {
		t.Fatalf("expected stock 10, got %d", got)
	}

	// Restocking the same order again must not inflate stock.
	if err := svc.Restock(context.Background(), "ord-1", "t1"); err != nil {
		t.Fatalf("second restock: %v", err)
	}
	if got := repo.variants["t1|var-1"].StockOnHand; got != 10 {
		t.Fatalf("restock must apply once, got %d", got)
	}
}

// fakeReservationRepo emulates the Postgres repository, including the
// per-variant serialization the row lock provides: WithTx holds a mutex for
// the whole closure, and the conditional updates check status inline.
type fakeReservationRepo struct {
	mu           sync.Mutex
	variants     map[string]*domain.Variant
	reservations []*domain.Reservation
}

func newFakeReservationRepo(variants []domain.Variant, reservations []domain.Reservation) *fakeReservationRepo {
	v := make(map[string]*domain.Variant)
	for i := range variants {
		variant := variants[i]
		v[variantKey(variant.TenantID, variant.ID)] = &variant
	}
	rs := make([]*domain.Reservation, 0, len(reservations))
	for i := range reservations {
		res := reservations[i]
		rs = append(rs, &res)
	}
	return &fakeReservationRepo{variants: v, reservations: rs}
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeReservationRepo) GetVariantForUpdate(_ context.Context, tenantID, variantID string) (domain.Variant, error) {
	v, ok := f.variants[variantKey(tenantID, variantID)]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return *v, nil
}

func (f *fakeReservationRepo) SumActiveReservations(_ context.Context, tenantID, variantID string, now time.Time) (int, error) {
	total := 0
	for _, r := range f.reservations {
		if r.TenantID != tenantID || r.VariantID != variantID {
			continue
		}
		if r.Status != domain.ReservationStatusActive {
			continue
		}
		if !r.ExpiresAt.After(now) {
			continue
		}
		total += r.Quantity
	}
	return total, nil
}

func (f *fakeReservationRepo) CreateReservation(_ context.Context, res domain.Reservation) error {
	f.reservations = append(f.reservations, &res)
	return nil
}

func (f *fakeReservationRepo) GetReservation(_ context.Context, tenantID, reservationID string) (domain.Reservation, error) {
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.ID == reservationID {
			return *r, nil
		}
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

func (f *fakeReservationRepo) ListActiveByOrder(_ context.Context, tenantID, orderID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.OrderID == orderID && r.Status == domain.ReservationStatusActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListConfirmedByOrder(_ context.Context, tenantID, orderID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.OrderID == orderID && r.Status == domain.ReservationStatusConfirmed {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) MarkConfirmed(_ context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.ID == reservationID && r.Status == domain.ReservationStatusActive {
			r.Status = domain.ReservationStatusConfirmed
			r.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) MarkRestocked(_ context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.ID == reservationID && r.Status == domain.ReservationStatusConfirmed && r.RestockedAt == nil {
			at := now
			r.RestockedAt = &at
			r.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) ReleaseByID(_ context.Context, tenantID, reservationID string, now time.Time) (bool, error) {
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.ID == reservationID && r.Status == domain.ReservationStatusActive {
			r.Status = domain.ReservationStatusReleased
			r.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) ReleaseByOrder(_ context.Context, tenantID, orderID string, now time.Time) (int, error) {
	count := 0
	for _, r := range f.reservations {
		if r.TenantID == tenantID && r.OrderID == orderID && r.Status == domain.ReservationStatusActive {
			r.Status = domain.ReservationStatusReleased
			r.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (f *fakeReservationRepo) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	count := 0
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusActive && !r.ExpiresAt.After(now) {
			r.Status = domain.ReservationStatusReleased
			r.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (f *fakeReservationRepo) DecrementStock(_ context.Context, tenantID, variantID string, quantity int, now time.Time) error {
	v, ok := f.variants[variantKey(tenantID, variantID)]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if v.StockOnHand < quantity {
		return domain.ErrInsufficientStock
	}
	v.StockOnHand -= quantity
	v.UpdatedAt = now
	return nil
}

func (f *fakeReservationRepo) IncrementStock(_ context.Context, tenantID, variantID string, quantity int, now time.Time) error {
	v, ok := f.variants[variantKey(tenantID, variantID)]
	if !ok {
		return domain.ErrVariantNotFound
	}
	v.StockOnHand += quantity
	v.UpdatedAt = now
	return nil
}

func variantKey(tenantID, variantID string) string {
	return tenantID + "|" + variantID
}
