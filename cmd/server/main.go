// Package main is the entry point for the turnclock server. It loads
// configuration, opens the record store, wires the calendar engine and
// starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/keyxmakerx/turnclock/internal/app"
	"github.com/keyxmakerx/turnclock/internal/backup"
	"github.com/keyxmakerx/turnclock/internal/config"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting turnclock",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.Store.Driver),
	)
	if cfg.Auth.APIKeyHash == "" {
		slog.Warn("API_KEY_HASH is empty; mutating endpoints are open")
	}

	// --- Open Record Store ---
	store, err := app.OpenStore(cfg)
	if err != nil {
		slog.Error("failed to open record store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	// --- Create Application ---
	application, err := app.New(cfg, store)
	if err != nil {
		slog.Error("failed to create application", slog.Any("error", err))
		os.Exit(1)
	}

	// Write the seed for the default calendar so the status page works on
	// first start.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := application.Calendars.EnsureDefaults(ctx, cfg.Calendar.DefaultName); err != nil {
		slog.Error("failed to write default calendar", slog.Any("error", err))
	}
	cancel()

	application.RegisterRoutes()

	// --- Scheduled Backups ---
	var backups *backup.Scheduler
	if cfg.Backup.Schedule != "" {
		backups, err = backup.NewScheduler(application.Calendars, cfg.Backup.Dir, cfg.Backup.Schedule, cfg.Backup.Keep)
		if err != nil {
			slog.Error("failed to schedule backups", slog.Any("error", err))
			os.Exit(1)
		}
		backups.Start()
		slog.Info("scheduled backups enabled",
			slog.String("schedule", cfg.Backup.Schedule),
			slog.String("dir", cfg.Backup.Dir),
		)
	}

	// --- Graceful Shutdown ---
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
		if backups != nil {
			backups.Stop(ctx)
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger. Development uses text
// format for readability, production JSON. LOG_LEVEL sets the level.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
