package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/metrics"
)

// Cleaner releases expired reservations and reports how many it touched.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Sweeper periodically reclaims expired reservations so abandoned checkouts
// return to available capacity without any client calling release. The sweep
// itself is one conditional update, so overlapping runs and manual cleanup
// calls cannot double-release.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *zap.Logger
}

func New(cleaner Cleaner, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	metrics.SweepRuns.Inc()
	released, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if released > 0 {
		metrics.SweepReleased.Add(float64(released))
		s.logger.Info("sweep reclaimed reservations", zap.Int("released", released))
	}
}
