package calendar

import "math"

// NowView is the current date and time of a calendar instance as returned
// by queries and the HTTP API.
type NowView struct {
	Calendar      string  `json:"calendar"`
	TimeOfDay     string  `json:"time_of_day"`
	Time          string  `json:"time"`
	Time12h       string  `json:"time_12h"`
	Date          string  `json:"date"`
	ShortDate     string  `json:"short_date"`
	Weekday       string  `json:"weekday"`
	Month         string  `json:"month"`
	MonthNumber   int     `json:"month_number"`
	Day           int     `json:"day"`
	Year          int     `json:"year"`
	DayNumber     int     `json:"day_number"`
	DayOfYear     int     `json:"day_of_year"`
	Season        string  `json:"season"`
	YearProgress  float64 `json:"year_progress"`
	DayProgress   float64 `json:"day_progress"`
	Progress      int     `json:"progress"`
	ActionsPerDay int     `json:"actions_per_day"`
	HoursPerDay   int     `json:"hours_per_day"`
	LastTurn      *int    `json:"last_turn"`
}

// buildNow derives the view of a state.
func buildNow(calendar string, c *Config, s TimeState) *NowView {
	snap := TakeSnapshot(c, s)
	clock := c.ClockAt(s)
	wd := c.DayOfWeek(s.DayNumber)
	v := &NowView{
		Calendar:      calendar,
		TimeOfDay:     snap.Period,
		Time:          clock.String(),
		Time12h:       c.Format12h(clock),
		Date:          FormatDate(c, snap.Date, wd),
		ShortDate:     snap.Date.String(),
		Weekday:       nameAt(c.Weekdays, wd),
		Month:         c.Months[snap.Date.Month].Name,
		MonthNumber:   snap.Date.Month + 1,
		Day:           snap.Date.Day,
		Year:          snap.Date.Year,
		DayNumber:     s.DayNumber,
		DayOfYear:     snap.DayOfYear + 1,
		Season:        snap.Season,
		YearProgress:  round4(snap.YearProgress),
		DayProgress:   round4(snap.DayProgress),
		Progress:      s.Progress,
		ActionsPerDay: c.ActionsPerDay,
		HoursPerDay:   c.HoursPerDay,
	}
	if s.Processed() {
		turn := s.LastProcessedTurn
		v.LastTurn = &turn
	}
	return v
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// EventView is an event as shown to clients.
type EventView struct {
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Schedule     string   `json:"schedule"`
	DurationDays int      `json:"duration_days"`
	AllDay       bool     `json:"all_day"`
	TimeRanges   []string `json:"time_ranges,omitempty"`
	Line         string   `json:"line"`
}

func buildEventView(c *Config, e Event) EventView {
	v := EventView{
		Name:         e.Name,
		Schedule:     formatSchedule(c, e.Schedule),
		DurationDays: e.Duration(),
		AllDay:       e.AllDay(),
		Line:         FormatEvent(c, e),
	}
	if e.Schedule != nil {
		v.Kind = e.Schedule.Kind()
	}
	for _, r := range e.TimeRanges {
		v.TimeRanges = append(v.TimeRanges, r.String())
	}
	return v
}

// EventStatusView is an event occurring today with its window status.
type EventStatusView struct {
	EventView
	Status Status `json:"status"`
}

// UpcomingView is an event starting on a later day.
type UpcomingView struct {
	EventView
	Date      string `json:"date"`
	DayNumber int    `json:"day_number"`
	DaysUntil int    `json:"days_until"`
}

// TurnResult is the outcome of a processed turn or a manual mutation.
type TurnResult struct {
	Calendar      string         `json:"calendar"`
	Turn          int            `json:"turn"`
	Transition    Transition     `json:"transition"`
	Notifications []Notification `json:"notifications"`
	Now           *NowView       `json:"now"`
	Command       *Command       `json:"command,omitempty"`
	Message       string         `json:"message,omitempty"`
}
