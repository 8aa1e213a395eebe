package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricolancheros/movie-reservation-system/api/routes"
	"github.com/ricolancheros/movie-reservation-system/internal/coordinator"
	"github.com/ricolancheros/movie-reservation-system/internal/inventory"
	"github.com/ricolancheros/movie-reservation-system/internal/ledger"
	"github.com/ricolancheros/movie-reservation-system/internal/showtimes"
	"github.com/ricolancheros/movie-reservation-system/pkg/config"
	"github.com/ricolancheros/movie-reservation-system/pkg/db"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
	"github.com/ricolancheros/movie-reservation-system/pkg/metrics"
	"github.com/ricolancheros/movie-reservation-system/pkg/migrate"
	"github.com/ricolancheros/movie-reservation-system/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	showtimeService, err := showtimes.NewService(
		showtimes.NewRepository(dbClient.DB()),
		inventoryService,
		dbClient,
		redisClient,
		cfg.Cache.ShowtimeBrowseTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create showtime service", err)
		os.Exit(1)
	}

	reservationService, err := coordinator.NewService(
		coordinator.NewRepository(dbClient.DB()),
		inventoryService,
		ledgerService,
		showtimeService,
		reservationMetrics,
		logg,
		cfg.Saga,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation coordinator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, showtimeService, reservationService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
