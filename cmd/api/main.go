package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"hubbroker/internal/config"
	"hubbroker/internal/connections"
	transporthttp "hubbroker/internal/http"
	"hubbroker/internal/identity"
	"hubbroker/internal/metrics"
	"hubbroker/internal/platform/database"
	"hubbroker/internal/platform/logging"
	"hubbroker/internal/platform/migrate"
	"hubbroker/internal/provider"
)

const cleanupInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	identityRepo, tokenRepo, stateRepo, cleanup, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	identitySvc := identity.NewService(identityRepo, cfg.SessionTTL)
	connectionSvc := connections.NewService(tokenRepo, stateRepo)

	google, err := buildGoogleProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize google provider", "error", err)
		os.Exit(1)
	}
	if google != nil {
		connectionSvc.RegisterRefresher(provider.ServiceGoogle, google)
	}

	motionClient := &http.Client{Timeout: 12 * time.Second}
	var motionOpts []provider.MotionOption
	if cfg.MotionAPIURL != "" {
		motionOpts = append(motionOpts, provider.WithMotionURL(cfg.MotionAPIURL))
	}
	if cfg.MotionKeyPrefix != "" {
		motionOpts = append(motionOpts, provider.WithMotionKeyPrefix(cfg.MotionKeyPrefix))
	}
	motion := provider.NewMotionProvider(motionClient, motionOpts...)

	m := metrics.New("hubbroker")

	var router http.Handler
	if google != nil {
		router = transporthttp.NewRouter(cfg, google, motion, connectionSvc, identitySvc, m, logger)
	} else {
		router = transporthttp.NewRouter(cfg, nil, motion, connectionSvc, identitySvc, m, logger)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go runCleanupLoop(ctx, identitySvc, connectionSvc, logger)

	go func() {
		logger.Info("hub broker listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (identity.Repository, connections.TokenRepository, connections.StateRepository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repositories")
		return identity.NewInMemoryRepository(), connections.NewInMemoryTokenRepository(), connections.NewInMemoryStateRepository(), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	logger.Info("connected to postgres")
	return identity.NewPostgresRepository(db), connections.NewPostgresTokenRepository(db), connections.NewPostgresStateRepository(db), cleanup, nil
}

// buildGoogleProvider returns nil without error when the Google flow is
// not configured, which only development allows.
func buildGoogleProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (*provider.GoogleProvider, error) {
	if !cfg.GoogleEnabled() {
		logger.Warn("google oauth credentials not set; google flow disabled")
		return nil, nil
	}
	return provider.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
}

// runCleanupLoop sweeps expired sessions and state tokens so the stores
// do not accumulate rows from abandoned flows.
func runCleanupLoop(ctx context.Context, identitySvc *identity.Service, connectionSvc *connections.Service, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)

			sessions, err := identitySvc.CleanupExpiredSessions(sweepCtx)
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
			}
			states, err := connectionSvc.CleanupExpiredStates(sweepCtx)
			if err != nil {
				logger.Error("state cleanup failed", "error", err)
			}
			cancel()

			if sessions > 0 || states > 0 {
				logger.Info("cleanup sweep finished", "sessions_removed", sessions, "states_removed", states)
			}
		}
	}
}
