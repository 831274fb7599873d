package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chefia/internal/agents"
	"chefia/internal/api"
	"chefia/internal/auth"
	"chefia/internal/config"
	"chefia/internal/llm"
	"chefia/internal/monitoring"
	"chefia/internal/observability"
	"chefia/internal/session"
	"chefia/internal/storage"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

// chatHistoryTurns bounds how many stored messages are replayed to the CFO agent.
const chatHistoryTurns = 10

func main() {
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = secret
		logger.Warn("CHEFIA_JWT_SECRET is not set, session tokens will not survive a restart")
	}
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	archive, err := storage.NewObjectStore(ctx, cfg.Backup)
	if err != nil {
		return fmt.Errorf("failed to initialize backup store: %w", err)
	}

	registry := llm.NewRegistry(cfg.LLM)
	for _, p := range registry.Providers() {
		logger.Info("llm provider", "provider", p.ID, "configured", registry.HasKey(p.ID))
	}

	monitor := monitoring.NewMonitor()
	server := api.NewServer(api.Deps{
		Config:   cfg,
		Sessions: session.NewManager(store, registry, cfg.LLM.Provider, cfg.LLM.Model, logger),
		Issuer:   issuer,
		Models:   registry,
		Consultant: agents.NewConsultant(agents.Options{
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			HistoryTurns: chatHistoryTurns,
		}, logger),
		Archive: archive,
		Monitor: monitor,
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics, monitor, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "port", cfg.Server.Port, "database", cfg.Database.Driver, "backup_store", cfg.Backup.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown error: %w", err)
	}
	return nil
}

func startMetricsServer(cfg config.MetricsConfig, monitor *monitoring.Monitor, logger *slog.Logger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET(cfg.Path, gin.WrapH(monitor.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Port, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
