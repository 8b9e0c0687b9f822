package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lfgarc/giftcode-redeemer/internal/config"
	"github.com/lfgarc/giftcode-redeemer/internal/handler"
	"github.com/lfgarc/giftcode-redeemer/internal/repository"
	"github.com/lfgarc/giftcode-redeemer/internal/service"
	"github.com/lfgarc/giftcode-redeemer/internal/upstream"
	"github.com/lfgarc/giftcode-redeemer/internal/validator"
	"github.com/lfgarc/giftcode-redeemer/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup and background jobs
	ctx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database schema")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Gift Code Redeemer",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Repositories over the shared pool
	rosterRepo := repository.NewRosterRepository(pool)
	pairRepo := repository.NewPairRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	jobRepo := repository.NewJobRepository(pool)

	// A job left running by a dead process holds the lease forever; park it
	// as paused so it can be resumed or cancelled.
	if recovered, err := jobRepo.RecoverInterrupted(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to recover interrupted jobs")
	} else if recovered > 0 {
		log.Warn().Int("jobs", recovered).Msg("recovered interrupted jobs as paused")
	}

	// Upstream client and services
	client := upstream.New(cfg.Upstream)
	redeemService := service.NewRedeemService(ctx, cfg.Redeem, client, rosterRepo, pairRepo, historyRepo, jobRepo)
	rosterService := service.NewRosterService(rosterRepo)

	// Handlers
	jobHandler := handler.NewJobHandler(redeemService, validate)
	rosterHandler := handler.NewRosterHandler(rosterService, validate)
	historyHandler := handler.NewHistoryHandler(historyRepo)
	healthHandler := handler.NewHealthHandler(pool)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api", handler.AdminAuth(cfg.Admin.Pass))

	// Job control surface
	api.Post("/jobs", jobHandler.CreateJob)
	api.Post("/jobs/cancel", jobHandler.CancelJobs)
	api.Post("/jobs/:id/start", jobHandler.StartJob)
	api.Get("/jobs/:id", jobHandler.GetJob)
	api.Get("/jobs", jobHandler.ListJobs)

	// Roster and history
	api.Get("/players", rosterHandler.ListPlayers)
	api.Post("/players", rosterHandler.AddPlayer)
	api.Delete("/players/:id", rosterHandler.RemovePlayer)
	api.Get("/codes", rosterHandler.ListCodes)
	api.Post("/codes", rosterHandler.AddCode)
	api.Patch("/codes/:code", rosterHandler.UpdateCode)
	api.Delete("/codes/:code", rosterHandler.RemoveCode)
	api.Get("/history", historyHandler.List)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Pause any running job loop and wait for it to park itself before
	// closing the pool it writes through.
	cancelJobs()
	log.Info().Msg("waiting for background jobs to pause...")
	redeemService.Wait()

	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
