package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/locationprivacy/backend/internal/config"
	"github.com/locationprivacy/backend/internal/delivery/http"
	"github.com/locationprivacy/backend/internal/observability"
	"github.com/locationprivacy/backend/internal/repository/postgres"
	"github.com/locationprivacy/backend/internal/service"
)

func main() {
	// Configuration
	cfg := config.Load(logrus.StandardLogger())
	log := cfg.NewLogger()

	// Run log storage
	dataRepo, closeRepo := openRepository(cfg, log)
	defer closeRepo()

	// Metrics
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewEngineMetrics(registry)
	if err != nil {
		log.WithError(err).Fatal("Failed to register metrics")
	}

	// Dependency Injection: Engine
	rng := service.NewLockedSource(cfg.RandomSeed)
	synth := service.NewTrajectorySynthesizer(cfg.SynthesizerConfig(), rng, service.NewMemoryDatasetCache(), log, metrics)
	inferencer := service.NewPlaceInferencer(cfg.InferenceConfig(), service.NewDBSCAN())
	scorer := service.NewRiskScorer(inferencer, cfg.ScoringWorkers)
	engine := service.NewAnonymizationEngine(rng)
	evaluator := service.NewUtilityEvaluator(scorer, cfg.UtilityReferenceMeters)
	privacySvc := service.NewPrivacyService(synth, scorer, engine, evaluator, dataRepo, log, metrics)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Location Privacy API v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		BodyLimit:    64 * 1024 * 1024,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, privacySvc, metrics.Gatherer())

	// Graceful shutdown
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}
	privacySvc.WaitBackground()
	log.Info("Server exited gracefully")
}

// openRepository connects to PostgreSQL when DATABASE_URL is set and falls
// back to the in-memory run log otherwise
func openRepository(cfg *config.Config, log *logrus.Logger) (service.DataRepository, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, keeping analysis runs in memory")
		return postgres.NewMockRepository(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		log.WithError(err).Warn("Could not connect to database, keeping analysis runs in memory")
		if pool != nil {
			pool.Close()
		}
		return postgres.NewMockRepository(), func() {}
	}

	repo := postgres.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.WithError(err).Warn("Could not create schema, keeping analysis runs in memory")
		pool.Close()
		return postgres.NewMockRepository(), func() {}
	}
	log.Info("Connected to PostgreSQL")
	return repo, pool.Close
}
