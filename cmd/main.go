package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencourt/tournament-engine/config"
	"github.com/opencourt/tournament-engine/db"
	"github.com/opencourt/tournament-engine/handlers"
	"github.com/opencourt/tournament-engine/ledger"
	"github.com/opencourt/tournament-engine/location"
	"github.com/opencourt/tournament-engine/repositories"
	"github.com/opencourt/tournament-engine/routes"
	"github.com/opencourt/tournament-engine/services"
	"github.com/opencourt/tournament-engine/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	transactor := repositories.NewSQLTransactor(dbConn)
	creditLedger := ledger.NewPostgresLedger(dbConn)
	locationSvc := location.NewStaticService(nil)
	locks := services.NewTournamentLocks()
	logger.Info("repositories initialized")

	tournamentService := services.NewTournamentService(
		transactor,
		tournamentRepo,
		participantRepo,
		matchRepo,
		creditLedger,
		locationSvc,
		locks,
		logger,
	)
	registrationService := services.NewRegistrationService(
		transactor,
		tournamentRepo,
		participantRepo,
		creditLedger,
		locks,
		logger,
	)
	matchService := services.NewMatchService(
		transactor,
		tournamentRepo,
		participantRepo,
		matchRepo,
		creditLedger,
		locks,
		logger,
	)
	logger.Info("services initialized")

	scheduler := workers.NewLifecycleScheduler(tournamentService, cfg.SchedulerInterval, logger)
	if err := scheduler.Start(context.Background()); err != nil {
		logger.Error("failed to start lifecycle scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to shut down lifecycle scheduler", slog.Any("error", err))
		}
	}()

	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	participantHandler := handlers.NewParticipantHandler(registrationService)
	matchHandler := handlers.NewMatchHandler(matchService)

	router := routes.SetupRoutes(tournamentHandler, participantHandler, matchHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
