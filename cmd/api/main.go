package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sonic7adarsh/bharat-shop-sub002/internal/app"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/clock"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/config"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/events"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/storage/postgres"
	"github.com/sonic7adarsh/bharat-shop-sub002/internal/sweeper"
	transporthttp "github.com/sonic7adarsh/bharat-shop-sub002/internal/transport/http"
	"github.com/sonic7adarsh/bharat-shop-sub002/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventTopic, logger)
	defer func() { _ = publisher.Close() }()

	clk := clock.NewSystem()
	reservationRepo := postgres.NewReservationRepository(pool)
	reservationSvc := app.NewReservationService(reservationRepo, clk, publisher, logger)
	orderRepo := postgres.NewOrderRepository(pool)
	orderSvc := app.NewOrderService(orderRepo, reservationSvc, clk, publisher, logger)
	catalogRepo := postgres.NewCatalogRepository(pool)
	catalogSvc := app.NewCatalogService(catalogRepo, clk)

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Orders:      orderSvc,
		Reservation: reservationSvc,
		Stock:       reservationSvc,
		Catalog:     catalogSvc,
		DefaultTTL:  cfg.DefaultTTL(),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.New(reservationSvc, cfg.SweepInterval(), logger).Run(sweepCtx)

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
