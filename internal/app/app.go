// Package app is the application bootstrap and dependency injection root.
// It opens the record store, creates the Echo instance and wires the
// calendar engine, its websocket hub and its HTTP handler together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/turnclock/internal/apperror"
	"github.com/keyxmakerx/turnclock/internal/config"
	"github.com/keyxmakerx/turnclock/internal/middleware"
	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
	"github.com/keyxmakerx/turnclock/internal/templates/layouts"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Store is the opened record store backend.
	Store *Store

	// Calendars is the calendar engine shared by the HTTP handlers.
	Calendars calendar.CalendarService

	// Hub fans turn results out to websocket subscribers.
	Hub *calendar.Hub

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given store and configures the
// Echo server with global middleware and error handling.
func New(cfg *config.Config, store *Store) (*App, error) {
	seed := calendar.DefaultSeed()
	if cfg.Calendar.SeedPath != "" {
		var err error
		if seed, err = calendar.LoadSeed(cfg.Calendar.SeedPath); err != nil {
			return nil, fmt.Errorf("loading calendar seed: %w", err)
		}
		slog.Info("loaded calendar seed", slog.String("path", cfg.Calendar.SeedPath))
	}

	svc := calendar.NewCalendarService(store.Records, seed)
	hub := calendar.NewHub()
	svc.SetPublisher(hub)

	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Resolve the real client IP behind reverse proxies; the rate limiter
	// keys on it.
	middleware.TrustedProxies(e, cfg.HTTP.TrustedProxies)

	app := &App{
		Config:    cfg,
		Store:     store,
		Calendars: svc,
		Hub:       hub,
		Echo:      e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	a.Echo.Use(middleware.RequestID())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())

	// Make the calendar name and path visible to the page layout.
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetCalendar(ctx, c.Param("name"))
		ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)
		if n, err := strconv.Atoi(c.QueryParam("refresh")); err == nil {
			ctx = layouts.SetRefreshSeconds(ctx, n)
		}
		return ctx
	}
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to HTTP responses: JSON for the API, an HTML page otherwise.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	errType := "internal_error"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		errType = appErr.Type

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Echo's built-in HTTP errors (e.g., 404 from router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			errType = strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_"))
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = defaultErrorMessage(code)
			}
		} else {
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
	}

	if isAPIRequest(c) {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{
			"error":   errType,
			"message": message,
		})
		return
	}

	// HTMX swaps the error into the polled fragment's target.
	page := layouts.ErrorMessage(code, message)
	if !middleware.IsHTMX(c) {
		page = layouts.Page(http.StatusText(code), page)
	}
	_ = middleware.Render(c, code, page)
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "A valid API key is required."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusConflict:
		return "This action conflicts with the current state."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The calendar is temporarily unavailable."
	default:
		return "An unexpected error occurred."
	}
}

// isAPIRequest returns true if the request is targeting the API (JSON response expected).
func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting turnclock server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("store", a.Store.Driver),
	)
	return a.Echo.Start(addr)
}
