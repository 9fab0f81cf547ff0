// Package calendar provides a turn-driven custom calendar engine. A host
// supplies a monotonically increasing turn counter; the engine converts it
// into a civil date and time under a fully configurable calendar (variable
// month lengths, any week length, configurable leap years, named
// time-of-day periods and seasons) and reports which events are happening.
//
// Configuration, the event catalog and the time state are persisted as text
// records in an external store (see the records plugin). One turn is
// processed to completion before the next begins.
package calendar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnknownName is reported when no time period or season covers a value.
const UnknownName = "Unknown"

// NeverProcessed is the LastProcessedTurn sentinel for a state that has not
// yet seen a turn counter.
const NeverProcessed = -1

// Last selects the final occurrence of a weekday within a month.
const Last = -1

// Month is a named month with its length in a common year.
type Month struct {
	Name     string `json:"name" yaml:"name"`
	BaseDays int    `json:"base_days" yaml:"days"`
}

// LeapYearRule describes which years are leap years and how month lengths
// change in them. A year is a leap year when (year-StartYear) is divisible by
// Frequency, unless it is also divisible by SkipFrequency and not by
// SkipExceptionFrequency (zero disables either refinement).
type LeapYearRule struct {
	Enabled                bool        `json:"enabled"`
	Frequency              int         `json:"frequency"`
	SkipFrequency          int         `json:"skip_frequency"`
	SkipExceptionFrequency int         `json:"skip_exception_frequency"`
	StartYear              int         `json:"start_year"`
	Adjustments            map[int]int `json:"adjustments"` // month index -> signed day delta
}

// NamedRange is a named fraction range used for time periods (fraction of a
// day) and seasons (fraction of a year). Start > End wraps around the end of
// the cycle, e.g. a night running from 0.875 to 0.25.
type NamedRange struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Wraps reports whether the range crosses the end of its cycle.
func (r NamedRange) Wraps() bool {
	return r.Start > r.End
}

// Contains reports whether x (0.0-1.0) falls inside the range. The start is
// inclusive and the end exclusive.
func (r NamedRange) Contains(x float64) bool {
	if r.Wraps() {
		return x >= r.Start || x < r.End
	}
	return x >= r.Start && x < r.End
}

// Date is a civil date. Month is a 0-based index into Config.Months; Day is
// 1-based. Text formats and the HTTP API use 1-based months.
type Date struct {
	Month int `json:"month"`
	Day   int `json:"day"`
	Year  int `json:"year"`
}

// Before reports whether d precedes o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// String formats the date as M/D/Y with a 1-based month.
func (d Date) String() string {
	return fmt.Sprintf("%d/%d/%d", d.Month+1, d.Day, d.Year)
}

// Config is the parsed description of a calendar. It is never mutated by
// evaluation; reconfiguration replaces the whole value.
type Config struct {
	Name          string        `json:"name"`
	Weekdays      []string      `json:"weekdays"`
	Months        []Month       `json:"months"`
	LeapYear      *LeapYearRule `json:"leap_year,omitempty"`
	TimePeriods   []NamedRange  `json:"time_periods"`
	Seasons       []NamedRange  `json:"seasons"`
	ActionsPerDay int           `json:"actions_per_day"`
	HoursPerDay   int           `json:"hours_per_day"`
	Epoch         Date          `json:"epoch"`
}

// WeekLength returns the number of days in a week.
func (c *Config) WeekLength() int {
	return len(c.Weekdays)
}

// MinutesPerDay returns the number of clock minutes in one day.
func (c *Config) MinutesPerDay() int {
	return c.HoursPerDay * 60
}

// Clone returns a deep copy so callers can derive a new configuration
// without touching one that may be cached.
func (c *Config) Clone() *Config {
	out := *c
	out.Weekdays = append([]string(nil), c.Weekdays...)
	out.Months = append([]Month(nil), c.Months...)
	out.TimePeriods = append([]NamedRange(nil), c.TimePeriods...)
	out.Seasons = append([]NamedRange(nil), c.Seasons...)
	if c.LeapYear != nil {
		rule := *c.LeapYear
		rule.Adjustments = make(map[int]int, len(c.LeapYear.Adjustments))
		for k, v := range c.LeapYear.Adjustments {
			rule.Adjustments[k] = v
		}
		out.LeapYear = &rule
	}
	return &out
}

// PeriodAt returns the name of the time period covering dayProgress, or
// UnknownName when none does. Periods are checked in configured order.
func (c *Config) PeriodAt(dayProgress float64) string {
	for _, p := range c.TimePeriods {
		if p.Contains(dayProgress) {
			return p.Name
		}
	}
	return UnknownName
}

// SeasonAt returns the name of the season covering yearProgress, or
// UnknownName when none does.
func (c *Config) SeasonAt(yearProgress float64) string {
	for _, s := range c.Seasons {
		if s.Contains(yearProgress) {
			return s.Name
		}
	}
	return UnknownName
}

// WeekdayIndex resolves a weekday name (case-insensitive) to its index.
func (c *Config) WeekdayIndex(name string) (int, bool) {
	return indexOfName(c.Weekdays, name)
}

// MonthIndex resolves a month name (case-insensitive) or a 1-based month
// number to its 0-based index.
func (c *Config) MonthIndex(name string) (int, bool) {
	names := make([]string, len(c.Months))
	for i, m := range c.Months {
		names[i] = m.Name
	}
	if i, ok := indexOfName(names, name); ok {
		return i, true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(name)); err == nil && n >= 1 && n <= len(c.Months) {
		return n - 1, true
	}
	return 0, false
}

// ClockTime is a wall-clock time of day in the calendar's hour system.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes since midnight.
func (t ClockTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

// String formats the time as HH:MM.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ClockFromMinutes converts minutes since midnight to a ClockTime.
func ClockFromMinutes(m int) ClockTime {
	return ClockTime{Hour: m / 60, Minute: m % 60}
}

// TimeState is the persisted position of a calendar instance.
//
// TurnOffset ties the host's counter to the calendar: once a turn has been
// processed, DayNumber*actionsPerDay + Progress == LastProcessedTurn +
// TurnOffset. It is zero for a calendar that started at turn 0 on day 0
// and has not been moved by hand.
type TimeState struct {
	DayNumber         int `json:"day_number"`
	Progress          int `json:"progress"`
	LastProcessedTurn int `json:"last_processed_turn"`
	TurnOffset        int `json:"turn_offset,omitempty"`
}

// NewTimeState returns the state used when nothing has been persisted yet.
func NewTimeState() TimeState {
	return TimeState{LastProcessedTurn: NeverProcessed}
}

// Processed reports whether the state has seen at least one turn counter.
func (s TimeState) Processed() bool {
	return s.LastProcessedTurn != NeverProcessed
}

// Position returns the state as a count of turns since the epoch.
func (s TimeState) Position(actionsPerDay int) int {
	return s.DayNumber*actionsPerDay + s.Progress
}

// Reanchor recomputes TurnOffset so the current position lines up with the
// last processed turn. Manual time changes call it so a later rewind of the
// counter moves back from where the calendar is now.
func Reanchor(c *Config, s TimeState) TimeState {
	if s.Processed() {
		s.TurnOffset = s.Position(c.ActionsPerDay) - s.LastProcessedTurn
	}
	return s
}

// DayProgress returns the fraction of the current day that has elapsed.
func (c *Config) DayProgress(s TimeState) float64 {
	if c.ActionsPerDay <= 0 {
		return 0
	}
	return float64(s.Progress) / float64(c.ActionsPerDay)
}

// MinuteOfDay converts a day-progress fraction to whole minutes since
// midnight for a day of hoursPerDay hours.
func MinuteOfDay(dayProgress float64, hoursPerDay int) int {
	m := int(math.Floor(dayProgress*float64(hoursPerDay*60) + 1e-9))
	if last := hoursPerDay*60 - 1; m > last {
		m = last
	}
	if m < 0 {
		m = 0
	}
	return m
}

// ClockAt returns the wall-clock time for a state.
func (c *Config) ClockAt(s TimeState) ClockTime {
	return ClockFromMinutes(MinuteOfDay(c.DayProgress(s), c.HoursPerDay))
}

// Format12h formats a clock time on a two-half-day dial. For calendars with
// an odd number of hours the first half is the shorter one.
func (c *Config) Format12h(t ClockTime) string {
	half := c.HoursPerDay / 2
	if half == 0 {
		return t.String()
	}
	suffix := "AM"
	h := t.Hour
	if h >= half {
		suffix = "PM"
		h -= half
	}
	if h == 0 {
		h = half
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute, suffix)
}

// indexOfName finds name in names ignoring case and surrounding space.
func indexOfName(names []string, name string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(name)) {
			return i, true
		}
	}
	return 0, false
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns the non-negative remainder of a/b for b > 0.
func mod(a, b int) int {
	return ((a % b) + b) % b
}
