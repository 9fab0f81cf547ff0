package calendar

// RangeState is where the current time sits relative to an event's windows.
type RangeState string

// Range states.
const (
	RangeActive    RangeState = "active"
	RangeUpcoming  RangeState = "upcoming"
	RangeCompleted RangeState = "completed"
)

// Status is an event's time-window status at one instant.
type Status struct {
	State  RangeState `json:"state"`
	AllDay bool       `json:"all_day"`

	// Range is the index into Event.TimeRanges of the window that is active
	// or upcoming; -1 otherwise.
	Range int `json:"range"`

	// Progress is the fraction (0-1) of the active window elapsed.
	Progress float64 `json:"progress,omitempty"`

	MinutesRemaining int `json:"minutes_remaining,omitempty"`
	MinutesUntil     int `json:"minutes_until,omitempty"`
}

// Active reports whether the event is currently running.
func (s Status) Active() bool {
	return s.State == RangeActive
}

// EventStatus pairs an event with its status.
type EventStatus struct {
	Event  Event
	Status Status
}

// TimeRangeStatus evaluates an event's windows at dayProgress. Events with no
// windows are active all day. Otherwise the first window containing the
// current minute wins; failing that, the earliest window still ahead is
// upcoming; otherwise the event is completed for the day.
func TimeRangeStatus(e Event, dayProgress float64, hoursPerDay int) Status {
	if e.AllDay() {
		return Status{State: RangeActive, AllDay: true, Range: -1}
	}
	now := MinuteOfDay(dayProgress, hoursPerDay)

	for i, r := range e.TimeRanges {
		start, end := r.Start.Minutes(), r.End.Minutes()
		if now >= start && now < end {
			return Status{
				State:            RangeActive,
				Range:            i,
				Progress:         float64(now-start) / float64(end-start),
				MinutesRemaining: end - now,
			}
		}
	}

	next := -1
	for i, r := range e.TimeRanges {
		start := r.Start.Minutes()
		if start > now && (next < 0 || start < e.TimeRanges[next].Start.Minutes()) {
			next = i
		}
	}
	if next >= 0 {
		return Status{
			State:        RangeUpcoming,
			Range:        next,
			MinutesUntil: e.TimeRanges[next].Start.Minutes() - now,
		}
	}
	return Status{State: RangeCompleted, Range: -1}
}

// EventsOnDate returns the events occurring on d in catalog order. An event
// occurs on its start dates and, for multi-day events, on the days that
// follow a start within its duration. Dates that do not exist yield nothing.
func EventsOnDate(c *Config, cat *Catalog, d Date) []Event {
	if !c.ValidDate(d) {
		return nil
	}
	var (
		out       []Event
		dayNumber int
		numbered  bool
	)
	for _, e := range cat.Events() {
		if e.Schedule == nil {
			continue
		}
		if e.Schedule.startsOn(c, d) {
			out = append(out, e)
			continue
		}
		if e.Duration() == 1 {
			continue
		}
		if !numbered {
			dayNumber = c.DayNumberFromDate(d)
			numbered = true
		}
		for k := 1; k < e.Duration(); k++ {
			if e.Schedule.startsOn(c, c.DateFromDayNumber(dayNumber-k)) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// EventsOnDay is EventsOnDate for a day-number.
func EventsOnDay(c *Config, cat *Catalog, dayNumber int) []Event {
	return EventsOnDate(c, cat, c.DateFromDayNumber(dayNumber))
}

// StatusesOnDay returns every event occurring on the state's day with its
// window status at the state's progress.
func StatusesOnDay(c *Config, cat *Catalog, s TimeState) []EventStatus {
	events := EventsOnDay(c, cat, s.DayNumber)
	progress := c.DayProgress(s)
	out := make([]EventStatus, 0, len(events))
	for _, e := range events {
		out = append(out, EventStatus{Event: e, Status: TimeRangeStatus(e, progress, c.HoursPerDay)})
	}
	return out
}

// ActiveTimedEvents returns the events with time windows that are active at
// the state's position. All-day events are excluded.
func ActiveTimedEvents(c *Config, cat *Catalog, s TimeState) []EventStatus {
	var out []EventStatus
	for _, es := range StatusesOnDay(c, cat, s) {
		if !es.Event.AllDay() && es.Status.Active() {
			out = append(out, es)
		}
	}
	return out
}

// Upcoming is an event starting on a future day.
type Upcoming struct {
	Event     Event
	DayNumber int
	Date      Date
	DaysUntil int
}

// UpcomingEvents lists events starting within the days after fromDay, up to
// and including fromDay+days, ordered by day and then catalog order.
func UpcomingEvents(c *Config, cat *Catalog, fromDay, days int) []Upcoming {
	var out []Upcoming
	events := cat.Events()
	for i := 1; i <= days; i++ {
		dn := fromDay + i
		d := c.DateFromDayNumber(dn)
		for _, e := range events {
			if e.Schedule != nil && e.Schedule.startsOn(c, d) {
				out = append(out, Upcoming{Event: e, DayNumber: dn, Date: d, DaysUntil: i})
			}
		}
	}
	return out
}
