package calendar

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all calendar routes. JSON reads are public and go
// through the read middleware; everything that changes a calendar goes
// through the mutate middleware (see app/routes.go).
func RegisterRoutes(e *echo.Echo, h *Handler, read, mutate []echo.MiddlewareFunc) {
	api := e.Group("/api/v1")
	api.GET("/calendars", h.ListCalendars, read...)

	// The feed upgrades to a websocket and must bypass response wrappers.
	api.GET("/calendars/:name/feed", h.Feed)

	cg := api.Group("/calendars/:name", read...)
	cg.GET("/now", h.NowAPI)
	cg.GET("/events", h.ListEventsAPI)
	cg.GET("/events/today", h.TodayEventsAPI)
	cg.GET("/events/active", h.ActiveEventsAPI)
	cg.GET("/events/upcoming", h.UpcomingEventsAPI)
	cg.GET("/export", h.ExportAPI)

	mg := api.Group("/calendars/:name", mutate...)
	mg.DELETE("", h.DeleteCalendarAPI)
	mg.POST("/turns", h.ProcessTurnAPI)
	mg.POST("/events", h.CreateEventAPI)
	mg.DELETE("/events/:event", h.DeleteEventAPI)
	mg.POST("/advance", h.AdvanceAPI)
	mg.PUT("/time", h.SetTimeAPI)
	mg.PUT("/day", h.SetDayAPI)
	mg.PUT("/settings", h.UpdateSettingsAPI)
	mg.POST("/commands", h.CommandAPI)
	mg.POST("/reload", h.ReloadAPI)
	mg.POST("/import", h.ImportAPI)

	// Server-rendered status page.
	e.GET("/calendars/:name", h.Status)
}
