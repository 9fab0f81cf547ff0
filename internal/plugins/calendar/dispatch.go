package calendar

import (
	"fmt"
	"strings"
)

// NotificationType names a change reported after a turn.
type NotificationType string

// Notification types, in the order they are emitted.
const (
	NotifyTimeReversed          NotificationType = "timeReversed"
	NotifyTimeOfDayChanged      NotificationType = "timeOfDayChanged"
	NotifyDayChanged            NotificationType = "dayChanged"
	NotifySeasonChanged         NotificationType = "seasonChanged"
	NotifyTimeRangeEventEnded   NotificationType = "timeRangeEventEnded"
	NotifyTimeRangeEventStarted NotificationType = "timeRangeEventStarted"
	NotifyTimeRangeEventEnding  NotificationType = "timeRangeEventEnding"
	NotifyEventDay              NotificationType = "eventDay"
)

// EndingThresholdMinutes is how close to a window's end an active event must
// be to report it as ending.
const EndingThresholdMinutes = 5

// Notification is one discrete change. Exactly one payload field is set,
// matching Type.
type Notification struct {
	Type NotificationType `json:"type"`

	Change   *NameChange   `json:"change,omitempty"`
	Day      *DayChange    `json:"day,omitempty"`
	Window   *WindowChange `json:"window,omitempty"`
	EventDay *EventDayList `json:"event_day,omitempty"`
}

// NameChange carries the previous and current name of a period or season.
type NameChange struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// DayChange carries the previous and current day-number.
type DayChange struct {
	Previous int `json:"previous"`
	Current  int `json:"current"`
}

// WindowChange describes an event window crossing.
type WindowChange struct {
	Event            string    `json:"event"`
	Range            TimeRange `json:"range"`
	MinutesRemaining int       `json:"minutes_remaining,omitempty"`
}

// EventDayList lists the events occurring on a date.
type EventDayList struct {
	Events []string `json:"events"`
	Date   string   `json:"date"`
}

// Snapshot is a state with the values derived from it that change detection
// compares.
type Snapshot struct {
	State        TimeState `json:"state"`
	Date         Date      `json:"date"`
	DayOfYear    int       `json:"day_of_year"`
	YearProgress float64   `json:"year_progress"`
	DayProgress  float64   `json:"day_progress"`
	Period       string    `json:"period"`
	Season       string    `json:"season"`
}

// TakeSnapshot derives a Snapshot from a state.
func TakeSnapshot(c *Config, s TimeState) Snapshot {
	date := c.DateFromDayNumber(s.DayNumber)
	doy := c.ordinal(date)
	yp := c.YearProgress(doy, date.Year)
	dp := c.DayProgress(s)
	return Snapshot{
		State:        s,
		Date:         date,
		DayOfYear:    doy,
		YearProgress: yp,
		DayProgress:  dp,
		Period:       c.PeriodAt(dp),
		Season:       c.SeasonAt(yp),
	}
}

// Dispatch compares two snapshots and returns the notifications for the
// transition between them. A reversal reports only NotifyTimeReversed; an
// unchanged transition reports nothing. NotifyEventDay is included when the
// day changed (or on the first anchored turn) and something occurs that day.
func Dispatch(c *Config, cat *Catalog, before, after Snapshot, tr Transition) []Notification {
	switch tr.Kind {
	case TransitionUnchanged:
		return nil
	case TransitionReversed:
		return []Notification{{
			Type: NotifyTimeReversed,
			Day:  &DayChange{Previous: before.State.DayNumber, Current: after.State.DayNumber},
		}}
	}

	var out []Notification
	dayChanged := before.State.DayNumber != after.State.DayNumber

	if before.Period != after.Period && before.Period != UnknownName && after.Period != UnknownName {
		out = append(out, Notification{
			Type:   NotifyTimeOfDayChanged,
			Change: &NameChange{Previous: before.Period, Current: after.Period},
		})
	}
	if dayChanged {
		out = append(out, Notification{
			Type: NotifyDayChanged,
			Day:  &DayChange{Previous: before.State.DayNumber, Current: after.State.DayNumber},
		})
		if before.Season != after.Season {
			out = append(out, Notification{
				Type:   NotifySeasonChanged,
				Change: &NameChange{Previous: before.Season, Current: after.Season},
			})
		}
	}

	if tr.Kind != TransitionAnchored {
		out = append(out, windowChanges(c, cat, before, after)...)
	}

	if dayChanged || tr.Kind == TransitionAnchored {
		if events := EventsOnDate(c, cat, after.Date); len(events) > 0 {
			names := make([]string, len(events))
			for i, e := range events {
				names[i] = e.Name
			}
			out = append(out, Notification{
				Type:     NotifyEventDay,
				EventDay: &EventDayList{Events: names, Date: after.Date.String()},
			})
		}
	}
	return out
}

// activeWindow identifies one occurrence of an event window.
type activeWindow struct {
	day    int
	status Status
}

// windowChanges reports timed events whose active window started, is about to
// end, or ended between the two snapshots. A window on a different day is a
// different occurrence even when the range index matches.
func windowChanges(c *Config, cat *Catalog, before, after Snapshot) []Notification {
	prev := activeWindows(c, cat, before)
	next := activeWindows(c, cat, after)

	var out []Notification
	for _, e := range cat.Events() {
		if e.AllDay() {
			continue
		}
		k := e.Key()
		b, wasActive := prev[k]
		a, isActive := next[k]
		same := wasActive && isActive && b.day == a.day && b.status.Range == a.status.Range

		if wasActive && !same {
			out = append(out, Notification{
				Type:   NotifyTimeRangeEventEnded,
				Window: &WindowChange{Event: e.Name, Range: e.TimeRanges[b.status.Range]},
			})
		}
		if isActive && !same {
			out = append(out, Notification{
				Type:   NotifyTimeRangeEventStarted,
				Window: &WindowChange{Event: e.Name, Range: e.TimeRanges[a.status.Range], MinutesRemaining: a.status.MinutesRemaining},
			})
		}
		if isActive && a.status.MinutesRemaining <= EndingThresholdMinutes &&
			!(same && b.status.MinutesRemaining <= EndingThresholdMinutes) {
			out = append(out, Notification{
				Type:   NotifyTimeRangeEventEnding,
				Window: &WindowChange{Event: e.Name, Range: e.TimeRanges[a.status.Range], MinutesRemaining: a.status.MinutesRemaining},
			})
		}
	}
	return out
}

func activeWindows(c *Config, cat *Catalog, s Snapshot) map[string]activeWindow {
	out := make(map[string]activeWindow)
	for _, e := range EventsOnDate(c, cat, s.Date) {
		if e.AllDay() {
			continue
		}
		st := TimeRangeStatus(e, s.DayProgress, c.HoursPerDay)
		if st.Active() {
			out[e.Key()] = activeWindow{day: s.State.DayNumber, status: st}
		}
	}
	return out
}

// String describes the notification in one line, e.g.
// "timeOfDayChanged: Morning -> Afternoon".
func (n Notification) String() string {
	switch {
	case n.Change != nil:
		return fmt.Sprintf("%s: %s -> %s", n.Type, n.Change.Previous, n.Change.Current)
	case n.Day != nil:
		return fmt.Sprintf("%s: day %d -> %d", n.Type, n.Day.Previous, n.Day.Current)
	case n.Window != nil:
		if n.Window.MinutesRemaining > 0 {
			return fmt.Sprintf("%s: %s (%s, %d min left)", n.Type, n.Window.Event, n.Window.Range, n.Window.MinutesRemaining)
		}
		return fmt.Sprintf("%s: %s (%s)", n.Type, n.Window.Event, n.Window.Range)
	case n.EventDay != nil:
		return fmt.Sprintf("%s: %s on %s", n.Type, strings.Join(n.EventDay.Events, ", "), n.EventDay.Date)
	}
	return string(n.Type)
}
