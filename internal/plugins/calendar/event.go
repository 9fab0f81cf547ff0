package calendar

import (
	"fmt"
	"strings"
)

// Kind names an event schedule variant.
type Kind string

// Schedule kinds.
const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindAnnual   Kind = "annual"
	KindOnce     Kind = "once"
	KindPeriodic Kind = "periodic"
	KindRelative Kind = "relative"
)

// Schedule decides on which dates an event starts. The set of
// implementations is closed: Daily, Weekly, Annual, Once, Periodic and
// Relative.
type Schedule interface {
	Kind() Kind
	startsOn(c *Config, d Date) bool
	key() string
}

// Daily starts every day.
type Daily struct{}

// Weekly starts on a fixed weekday index.
type Weekly struct {
	Weekday int
}

// Annual starts every year on a fixed month and day. Years in which that day
// does not exist are skipped.
type Annual struct {
	Month int
	Day   int
}

// Once starts on exactly one date.
type Once struct {
	Date Date
}

// Periodic starts on Start's month and day every Frequency years, beginning
// in Start.Year.
type Periodic struct {
	Start     Date
	Frequency int
}

// Relative starts on the Nth (or Last) occurrence of a weekday in a month,
// in the years its gate allows.
type Relative struct {
	Month   int
	Nth     int
	Weekday int
	Years   YearGate
}

func (Daily) Kind() Kind    { return KindDaily }
func (Weekly) Kind() Kind   { return KindWeekly }
func (Annual) Kind() Kind   { return KindAnnual }
func (Once) Kind() Kind     { return KindOnce }
func (Periodic) Kind() Kind { return KindPeriodic }
func (Relative) Kind() Kind { return KindRelative }

func (Daily) startsOn(*Config, Date) bool { return true }

func (s Weekly) startsOn(c *Config, d Date) bool {
	return c.DayOfWeekForDate(d) == s.Weekday
}

func (s Annual) startsOn(_ *Config, d Date) bool {
	return d.Month == s.Month && d.Day == s.Day
}

func (s Once) startsOn(_ *Config, d Date) bool {
	return d == s.Date
}

func (s Periodic) startsOn(_ *Config, d Date) bool {
	if d.Month != s.Start.Month || d.Day != s.Start.Day || s.Frequency < 1 {
		return false
	}
	n := d.Year - s.Start.Year
	return n >= 0 && n%s.Frequency == 0
}

func (s Relative) startsOn(c *Config, d Date) bool {
	if d.Month != s.Month || !s.gate().Allows(d.Year) {
		return false
	}
	day, ok := c.NthWeekdayOfMonth(s.Nth, s.Weekday, s.Month, d.Year)
	return ok && day == d.Day
}

func (s Relative) gate() YearGate {
	if s.Years == nil {
		return EveryYear{}
	}
	return s.Years
}

func (Daily) key() string      { return "" }
func (s Weekly) key() string   { return fmt.Sprintf("%d", s.Weekday) }
func (s Annual) key() string   { return fmt.Sprintf("%d/%d", s.Month, s.Day) }
func (s Once) key() string     { return s.Date.String() }
func (s Periodic) key() string { return fmt.Sprintf("%s/%d", s.Start, s.Frequency) }
func (s Relative) key() string {
	return fmt.Sprintf("%d/%d/%d/%s", s.Month, s.Nth, s.Weekday, s.gate().key())
}

// YearGate restricts a relative event to certain years. Implementations are
// EveryYear, OnlyYear and EveryNYears.
type YearGate interface {
	Allows(year int) bool
	key() string
}

// EveryYear allows every year.
type EveryYear struct{}

// OnlyYear allows a single year.
type OnlyYear struct {
	Year int
}

// EveryNYears allows Start and every Frequency-th year after it.
type EveryNYears struct {
	Start     int
	Frequency int
}

func (EveryYear) Allows(int) bool { return true }

func (g OnlyYear) Allows(year int) bool { return year == g.Year }

func (g EveryNYears) Allows(year int) bool {
	if g.Frequency < 1 {
		return false
	}
	n := year - g.Start
	return n >= 0 && n%g.Frequency == 0
}

func (EveryYear) key() string     { return "every" }
func (g OnlyYear) key() string    { return fmt.Sprintf("in%d", g.Year) }
func (g EveryNYears) key() string { return fmt.Sprintf("from%d/%d", g.Start, g.Frequency) }

// TimeRange is a same-day window during which an event is active. End is
// never before Start.
type TimeRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// String formats the range as HH:MM-HH:MM.
func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Event is one catalog entry: a named schedule with an optional set of daily
// time windows and a duration in days.
type Event struct {
	Name         string
	DurationDays int
	TimeRanges   []TimeRange
	Schedule     Schedule
}

// AllDay reports whether the event has no time windows.
func (e Event) AllDay() bool {
	return len(e.TimeRanges) == 0
}

// Duration returns DurationDays floored at 1.
func (e Event) Duration() int {
	if e.DurationDays < 1 {
		return 1
	}
	return e.DurationDays
}

// Key identifies an event for deduplication: two events with the same name,
// schedule and time windows are the same event.
func (e Event) Key() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(e.Name)))
	b.WriteByte('|')
	if e.Schedule != nil {
		b.WriteString(string(e.Schedule.Kind()))
		b.WriteByte('|')
		b.WriteString(e.Schedule.key())
	}
	b.WriteByte('|')
	for i, r := range e.TimeRanges {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.String())
	}
	return b.String()
}

// Catalog is an ordered, deduplicated set of events.
type Catalog struct {
	events []Event
	keys   map[string]struct{}
}

// NewCatalog builds a catalog, dropping duplicates after the first.
func NewCatalog(events ...Event) *Catalog {
	c := &Catalog{keys: make(map[string]struct{}, len(events))}
	for _, e := range events {
		c.Add(e)
	}
	return c
}

// Add appends e unless an event with the same key is already present.
func (c *Catalog) Add(e Event) bool {
	if c.keys == nil {
		c.keys = make(map[string]struct{})
	}
	k := e.Key()
	if _, dup := c.keys[k]; dup {
		return false
	}
	c.keys[k] = struct{}{}
	c.events = append(c.events, e)
	return true
}

// Remove deletes every event with the given name (case-insensitive) and
// returns how many were removed.
func (c *Catalog) Remove(name string) int {
	kept := c.events[:0]
	removed := 0
	for _, e := range c.events {
		if strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			delete(c.keys, e.Key())
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.events = kept
	return removed
}

// Events returns a copy of the events in insertion order.
func (c *Catalog) Events() []Event {
	if c == nil {
		return nil
	}
	return append([]Event(nil), c.events...)
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}
