package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/turnclock/internal/apperror"
	"github.com/keyxmakerx/turnclock/internal/middleware"
)

// maxImportBytes bounds uploaded import files.
const maxImportBytes = 10 * 1024 * 1024

// Handler processes HTTP requests for the calendar engine.
type Handler struct {
	svc CalendarService
	hub *Hub

	// defaultName is the calendar the landing page shows; it cannot be
	// deleted.
	defaultName string
}

// NewHandler creates a new calendar Handler. hub may be nil, in which case
// the feed endpoint is not served.
func NewHandler(svc CalendarService, hub *Hub, defaultName string) *Handler {
	return &Handler{svc: svc, hub: hub, defaultName: defaultName}
}

// calendarParam returns the validated :name path parameter.
func calendarParam(c echo.Context) (string, error) {
	name := c.Param("name")
	if !ValidCalendarName(name) {
		return "", apperror.NewBadRequest(fmt.Sprintf("invalid calendar name %q", name))
	}
	return name, nil
}

// ListCalendars returns the names of every calendar with stored records.
// GET /api/v1/calendars
func (h *Handler) ListCalendars(c echo.Context) error {
	names, err := h.svc.Calendars(c.Request().Context())
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"calendars": names})
}

// DeleteCalendarAPI removes a calendar and all of its records.
// DELETE /api/v1/calendars/:name
func (h *Handler) DeleteCalendarAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	if cal == h.defaultName {
		return apperror.NewForbidden(fmt.Sprintf("the default calendar %q cannot be deleted", cal))
	}
	if err := h.svc.DeleteCalendar(c.Request().Context(), cal); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ProcessTurnAPI runs one host turn against the calendar.
// POST /api/v1/calendars/:name/turns
func (h *Handler) ProcessTurnAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Turn  *int   `json:"turn"`
		Input string `json:"input"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Turn == nil {
		return apperror.NewValidation("turn is required")
	}

	res, err := h.svc.ProcessTurn(c.Request().Context(), cal, *req.Turn, req.Input)
	if err != nil {
		return err
	}
	if res == nil {
		return apperror.NewUnavailable(fmt.Sprintf("calendar %s has no usable configuration", cal))
	}
	return c.JSON(http.StatusOK, res)
}

// NowAPI returns the calendar's current date and time.
// GET /api/v1/calendars/:name/now
func (h *Handler) NowAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	now, err := h.svc.Now(c.Request().Context(), cal)
	if err != nil {
		return err
	}
	if now == nil {
		return apperror.NewUnavailable(fmt.Sprintf("calendar %s has no usable configuration", cal))
	}
	return c.JSON(http.StatusOK, now)
}

// ListEventsAPI returns every valid event definition.
// GET /api/v1/calendars/:name/events
func (h *Handler) ListEventsAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	events, err := h.svc.AllEvents(c.Request().Context(), cal)
	if err != nil {
		return err
	}
	if events == nil {
		events = []EventView{}
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

// TodayEventsAPI returns the events occurring on the current day.
// GET /api/v1/calendars/:name/events/today
func (h *Handler) TodayEventsAPI(c echo.Context) error {
	return h.statusEvents(c, h.svc.TodayEvents)
}

// ActiveEventsAPI returns the events whose window contains the current time.
// GET /api/v1/calendars/:name/events/active
func (h *Handler) ActiveEventsAPI(c echo.Context) error {
	return h.statusEvents(c, h.svc.ActiveEvents)
}

func (h *Handler) statusEvents(c echo.Context, query func(ctx context.Context, cal string) ([]EventStatusView, error)) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	events, err := query(c.Request().Context(), cal)
	if err != nil {
		return err
	}
	if events == nil {
		events = []EventStatusView{}
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

// UpcomingEventsAPI returns events starting within the next days.
// GET /api/v1/calendars/:name/events/upcoming?days=N
func (h *Handler) UpcomingEventsAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	days := 30
	if q := c.QueryParam("days"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			return apperror.NewValidation("days must be a number")
		}
		days = v
	}
	events, err := h.svc.UpcomingEvents(c.Request().Context(), cal, days)
	if err != nil {
		return err
	}
	if events == nil {
		events = []UpcomingView{}
	}
	return c.JSON(http.StatusOK, map[string]any{"days": days, "events": events})
}

// CreateEventAPI adds an event from its text line.
// POST /api/v1/calendars/:name/events
func (h *Handler) CreateEventAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Line string `json:"line"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	ev, err := h.svc.AddEvent(c.Request().Context(), cal, req.Line)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ev)
}

// DeleteEventAPI removes every event with the given name.
// DELETE /api/v1/calendars/:name/events/:event
func (h *Handler) DeleteEventAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	n, err := h.svc.RemoveEvent(c.Request().Context(), cal, c.Param("event"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"removed": n})
}

// AdvanceAPI moves the clock by a relative span. Negative values rewind.
// POST /api/v1/calendars/:name/advance
func (h *Handler) AdvanceAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var span Span
	if err := c.Bind(&span); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	res, err := h.svc.Advance(c.Request().Context(), cal, span)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SetTimeAPI sets the time of day, keeping the current day.
// PUT /api/v1/calendars/:name/time
func (h *Handler) SetTimeAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Hour   *int `json:"hour"`
		Minute int  `json:"minute"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.Hour == nil {
		return apperror.NewValidation("hour is required")
	}
	res, err := h.svc.SetTime(c.Request().Context(), cal, ClockTime{Hour: *req.Hour, Minute: req.Minute})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// SetDayAPI jumps to a day, given either as an absolute day number or as a
// date with a 1-based month.
// PUT /api/v1/calendars/:name/day
func (h *Handler) SetDayAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		DayNumber *int  `json:"day_number"`
		Date      *Date `json:"date"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	ctx := c.Request().Context()
	var res *TurnResult
	switch {
	case req.DayNumber != nil && req.Date != nil:
		return apperror.NewValidation("give either day_number or date, not both")
	case req.DayNumber != nil:
		res, err = h.svc.SetDay(ctx, cal, *req.DayNumber)
	case req.Date != nil:
		d := *req.Date
		d.Month--
		res, err = h.svc.SetDate(ctx, cal, d)
	default:
		return apperror.NewValidation("day_number or date is required")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateSettingsAPI changes the day length in turns or hours.
// PUT /api/v1/calendars/:name/settings
func (h *Handler) UpdateSettingsAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		ActionsPerDay *int `json:"actions_per_day"`
		HoursPerDay   *int `json:"hours_per_day"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if req.ActionsPerDay == nil && req.HoursPerDay == nil {
		return apperror.NewValidation("actions_per_day or hours_per_day is required")
	}

	ctx := c.Request().Context()
	var now *NowView
	if req.HoursPerDay != nil {
		if now, err = h.svc.SetHoursPerDay(ctx, cal, *req.HoursPerDay); err != nil {
			return err
		}
	}
	if req.ActionsPerDay != nil {
		if now, err = h.svc.SetActionsPerDay(ctx, cal, *req.ActionsPerDay); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, now)
}

// CommandAPI executes a time command such as "advance 2 hours".
// POST /api/v1/calendars/:name/commands
func (h *Handler) CommandAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	res, err := h.svc.ExecuteCommand(c.Request().Context(), cal, req.Command)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ReloadAPI drops cached records after they were edited outside the server.
// POST /api/v1/calendars/:name/reload
func (h *Handler) ReloadAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	h.svc.Invalidate(cal)
	return c.NoContent(http.StatusNoContent)
}

// ExportAPI downloads the calendar as a JSON document.
// GET /api/v1/calendars/:name/export
func (h *Handler) ExportAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	exp, err := h.svc.Export(c.Request().Context(), cal)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-calendar.json"`, cal))
	return c.JSON(http.StatusOK, exp)
}

// ImportAPI replaces the calendar from an uploaded native or Simple Calendar
// export. With ?preview=true the parsed result is returned without saving.
// POST /api/v1/calendars/:name/import
func (h *Handler) ImportAPI(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}

	// Read uploaded file (multipart form or raw JSON body).
	var data []byte
	if file, fileErr := c.FormFile("file"); fileErr == nil {
		src, openErr := file.Open()
		if openErr != nil {
			return apperror.NewBadRequest("could not read uploaded file")
		}
		defer src.Close()
		data, err = io.ReadAll(io.LimitReader(src, maxImportBytes))
		if err != nil {
			return apperror.NewBadRequest("could not read uploaded file")
		}
	} else {
		data, err = io.ReadAll(io.LimitReader(c.Request().Body, maxImportBytes))
		if err != nil || len(data) == 0 {
			return apperror.NewBadRequest("no file uploaded and no JSON body")
		}
	}

	exp, format, err := DetectAndParse(data)
	if err != nil {
		return err
	}

	var res *ImportResult
	if c.QueryParam("preview") == "true" {
		res, err = exp.toImportResult()
	} else {
		res, err = h.svc.Import(c.Request().Context(), cal, exp)
	}
	if err != nil {
		return err
	}
	res.Format = format
	return c.JSON(http.StatusOK, res)
}

// Status renders the current date, time and today's events as HTML. HTMX
// requests get the fragment alone so a page can poll it.
// GET /calendars/:name
func (h *Handler) Status(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	now, err := h.svc.Now(ctx, cal)
	if err != nil {
		return err
	}
	fragment := UnavailableFragment(cal)
	if now != nil {
		today, err := h.svc.TodayEvents(ctx, cal)
		if err != nil {
			return err
		}
		fragment = StatusFragment(now, today)
	}

	if middleware.IsHTMX(c) {
		return middleware.Render(c, http.StatusOK, fragment)
	}
	return middleware.Render(c, http.StatusOK, StatusPage(fragment))
}

// Feed streams turn results of the calendar over a websocket.
// GET /api/v1/calendars/:name/feed
func (h *Handler) Feed(c echo.Context) error {
	cal, err := calendarParam(c)
	if err != nil {
		return err
	}
	if h.hub == nil {
		return apperror.NewNotFound("feed is not enabled")
	}
	return h.hub.Serve(c.Response(), c.Request(), cal)
}
