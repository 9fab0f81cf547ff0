package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/turnclock/internal/middleware"
	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
)

// RegisterRoutes sets up all application routes. This is the single place
// where routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Landing route goes to the default calendar's status page.
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/calendars/"+a.Config.Calendar.DefaultName)
	})

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"store":  a.Store.Driver,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"store":  a.Store.Driver,
		})
	})

	// Mutating calendar routes need the API key and are rate limited per IP.
	limiter := middleware.NewRateLimiter(a.Config.HTTP.RateLimit, a.Config.HTTP.RateWindow)
	calendar.RegisterRoutes(e, calendar.NewHandler(a.Calendars, a.Hub, a.Config.Calendar.DefaultName),
		[]echo.MiddlewareFunc{middleware.Compress(1024)},
		[]echo.MiddlewareFunc{
			limiter.Middleware(),
			middleware.RequireAPIKey(a.Config.Auth.APIKeyHash),
		},
	)
}
