package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/api"
	"laundry-reservation-backend/internal/db"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/notify"
	"laundry-reservation-backend/internal/reserve"
	"laundry-reservation-backend/internal/store"
	"laundry-reservation-backend/internal/sweep"
)

func main() {
	logger := log.New(os.Stdout, "laundryd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Notify.Timezone)
	if err != nil {
		logger.Fatalf("invalid notify timezone %q: %v", cfg.Notify.Timezone, err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := seedMachines(ctx, appStore, cfg.Machines); err != nil {
		logger.Fatalf("failed to seed machines: %v", err)
	}

	// Outbound mail goes through a worker pool so SMTP latency never blocks
	// scheduler timers or request handlers.
	notifier := notify.NewSMTPNotifier(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password,
		cfg.SMTP.FromName, cfg.SMTP.FromAddress,
	)
	pool := notify.NewPool(cfg.Notify.WorkerPoolSize)
	pool.Start(ctx)

	engine := reserve.NewEngine(appStore, notifier, pool, reserve.Options{
		Lead:       cfg.Notify.Lead,
		MinMinutes: cfg.Reservation.MinMinutes,
		MaxMinutes: cfg.Reservation.MaxMinutes,
		Location:   loc,
	})
	defer engine.Close()
	logger.Println("reservation engine initialized")

	// Optional periodic cleanup; lazy expiry on list reads is the default.
	sweepSvc := sweep.NewService(&cfg.Sweep, engine)
	go sweepSvc.Run(ctx)

	router := api.NewRouter(engine, cfg)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// seedMachines provisions the configured default machines when the store is
// empty, so a fresh deployment starts with a usable laundry room.
func seedMachines(ctx context.Context, s store.Store, seeds []config.SeedMachine) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	machines := make([]model.Machine, 0, len(seeds))
	for _, seed := range seeds {
		machines = append(machines, model.Machine{
			Name:        seed.Name,
			DefaultTime: seed.DefaultTime,
		})
	}
	if err := s.InsertMany(ctx, machines); err != nil {
		return err
	}
	log.Printf("Seeded %d default machines", len(machines))
	return nil
}
