// Package main provides the entry point for the generation API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maauso/i2v-orchestrator/internal/bootstrap"
	"github.com/maauso/i2v-orchestrator/internal/config"
	"github.com/maauso/i2v-orchestrator/internal/generation"
	"github.com/maauso/i2v-orchestrator/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting i2v orchestrator API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("a2e_base_url", cfg.A2EBaseURL),
		slog.Bool("archive_results", cfg.ArchiveResults),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("redis_enabled", cfg.RedisEnabled()),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(context.Background(), cfg, logger,
		generation.WithRenderer(server.LogRenderer(logger)))
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	handlers := server.NewHandlers(deps.Orchestrator, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPTimeout() + 30*time.Second, // submit waits for the service
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		_ = deps.Close(context.Background())
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	deps.Orchestrator.Reset()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := deps.Close(ctx); err != nil {
		logger.Warn("failed to release dependencies", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
