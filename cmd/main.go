package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/cue-tournaments/brackets"
	"github.com/Dosada05/cue-tournaments/config"
	"github.com/Dosada05/cue-tournaments/db"
	"github.com/Dosada05/cue-tournaments/handlers"
	"github.com/Dosada05/cue-tournaments/metrics"
	"github.com/Dosada05/cue-tournaments/repositories"
	api "github.com/Dosada05/cue-tournaments/routes"
	"github.com/Dosada05/cue-tournaments/services"
	"github.com/Dosada05/cue-tournaments/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.Bool("archive_enabled", cfg.ArchiveEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tournamentRepo, userRepo, closeStore, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	archiver, err := openArchiver(ctx, cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycleMetrics := metrics.NewLifecycle(registry)

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	locks := services.NewTournamentLocks()
	gate := services.NewOfficialGate(tournamentRepo)

	authService := services.NewAuthService(userRepo)
	tournamentService := services.NewTournamentService(tournamentRepo, userRepo, locks, logger)
	participantService := services.NewParticipantService(tournamentRepo, userRepo, gate, locks, lifecycleMetrics, logger)
	bracketService := services.NewBracketService(services.BracketServiceDeps{
		TournamentRepo: tournamentRepo,
		UserRepo:       userRepo,
		Gate:           gate,
		Locks:          locks,
		Notifier:       wsHub,
		Archiver:       archiver,
		Metrics:        lifecycleMetrics,
		Logger:         logger,
	})
	logger.Info("Services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:        handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Tournament:  handlers.NewTournamentHandler(tournamentService),
		Participant: handlers.NewParticipantHandler(participantService),
		Bracket:     handlers.NewBracketHandler(bracketService),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, bracketService, cfg.AllowedOrigins),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       registry,
	})
	logger.Info("Routes configured")

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

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

func openRepositories(cfg *config.Config, logger *slog.Logger) (repositories.TournamentRepository, repositories.UserRepository, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repositories.NewMemoryTournamentRepository(), repositories.NewMemoryUserRepository(), func() {}, nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")

	version, err := db.Migrate(dbConn)
	if err != nil {
		closeDB(dbConn, logger)
		return nil, nil, nil, err
	}
	logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	return repositories.NewPostgresTournamentRepository(dbConn),
		repositories.NewPostgresUserRepository(dbConn),
		func() { closeDB(dbConn, logger) },
		nil
}

func closeDB(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	logger.Info("database connection closed")
}

// openArchiver returns nil when R2 is not configured; completed brackets are then not archived.
func openArchiver(ctx context.Context, cfg *config.Config) (services.BracketArchiver, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	store, err := storage.NewCloudflareR2Store(ctx, storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudflare R2 store: %w", err)
	}
	return storage.NewBracketArchiver(store), nil
}
