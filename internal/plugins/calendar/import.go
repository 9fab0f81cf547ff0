// Package calendar -- import.go provides calendar import from two formats:
// turnclock native JSON and Simple Calendar (Foundry VTT).
//
// # Supported Formats
//
// ## turnclock (turnclock-calendar-v1)
// Native format produced by Export. Round-trips exactly.
//
// ## Simple Calendar (Foundry VTT)
// Identified by a top-level "calendar" key, or "exportVersion" plus a
// "calendars" array for v2 exports. Months use numberOfDays and
// numberOfLeapYearDays, time uses hoursInDay, seasons have a starting month
// and day. Moons, notes and year names have no counterpart and are dropped.
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// ImportFormat identifies which JSON format was detected.
type ImportFormat string

// Detectable import formats.
const (
	FormatNative    ImportFormat = "turnclock"
	FormatSimpleCal ImportFormat = "simple_calendar"
	FormatUnknown   ImportFormat = "unknown"
)

// ImportResult is a parsed import ready to be written to a calendar.
type ImportResult struct {
	Format       ImportFormat `json:"format"`
	Calendar     string       `json:"calendar"`
	CalendarName string       `json:"calendar_name"`
	Config       *Config      `json:"config"`
	EventCount   int          `json:"event_count"`
	State        *TimeState   `json:"state,omitempty"`
	Issues       []ParseIssue `json:"issues,omitempty"`

	events []Event
}

// DetectAndParse auto-detects the format of raw JSON bytes and converts it
// into a native export.
func DetectAndParse(data []byte) (*TurnclockExport, ImportFormat, error) {
	format := detectFormat(data)
	switch format {
	case FormatNative:
		if err := validateExportJSON(data); err != nil {
			return nil, format, err
		}
		var exp TurnclockExport
		if err := json.Unmarshal(data, &exp); err != nil {
			return nil, format, apperror.NewValidation("invalid export JSON: " + err.Error())
		}
		return &exp, format, nil
	case FormatSimpleCal:
		exp, err := parseSimpleCalendar(data)
		return exp, format, err
	}
	return nil, FormatUnknown, apperror.NewValidation("unrecognized calendar format: expected turnclock or Simple Calendar JSON")
}

// detectFormat inspects the raw JSON to determine which calendar format it is.
func detectFormat(data []byte) ImportFormat {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return FormatUnknown
	}
	if formatVal, ok := raw["format"]; ok {
		var f string
		if json.Unmarshal(formatVal, &f) == nil && f == ExportFormat {
			return FormatNative
		}
	}
	if _, ok := raw["calendar"]; ok {
		if _, hasConfig := raw["config"]; !hasConfig {
			return FormatSimpleCal
		}
	}
	if _, ok := raw["exportVersion"]; ok {
		if _, hasCalendars := raw["calendars"]; hasCalendars {
			return FormatSimpleCal
		}
	}
	return FormatUnknown
}

// --- Simple Calendar Parser ---

type scData struct {
	Calendar scCalendar `json:"calendar"`
}

// scCalendar holds the Simple Calendar fields that map onto a Config.
// Supports v2 field names and v1 legacy aliases via UnmarshalJSON.
type scCalendar struct {
	Name        string        `json:"name"`
	CurrentDate scCurrentDate `json:"currentDate"`
	LeapYear    scLeapYear    `json:"leapYear"`
	Months      []scMonth     `json:"months"`
	Seasons     []scSeason    `json:"seasons"`
	Time        scTime        `json:"time"`
	Weekdays    []scWeekday   `json:"weekdays"`
}

// UnmarshalJSON handles Simple Calendar v1 legacy field names as aliases.
func (c *scCalendar) UnmarshalJSON(data []byte) error {
	type Alias scCalendar
	var v2 Alias
	if err := json.Unmarshal(data, &v2); err != nil {
		return err
	}
	*c = scCalendar(v2)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	aliases := []struct {
		key   string
		empty bool
		dst   any
	}{
		{"monthSettings", len(c.Months) == 0, &c.Months},
		{"weekdaySettings", len(c.Weekdays) == 0, &c.Weekdays},
		{"seasonSettings", len(c.Seasons) == 0, &c.Seasons},
		{"timeSettings", c.Time.HoursInDay == 0, &c.Time},
		{"leapYearSettings", c.LeapYear.Rule == "", &c.LeapYear},
	}
	for _, a := range aliases {
		if v, ok := raw[a.key]; ok && a.empty {
			_ = json.Unmarshal(v, a.dst)
		}
	}
	return nil
}

type scCurrentDate struct {
	Year    int `json:"year"`
	Month   int `json:"month"`   // 0-indexed
	Day     int `json:"day"`     // 0-indexed
	Seconds int `json:"seconds"` // seconds since midnight
}

type scLeapYear struct {
	Rule      string `json:"rule"`      // "none", "gregorian", "custom"
	CustomMod int    `json:"customMod"` // interval for custom rule
}

type scMonth struct {
	Name                 string `json:"name"`
	NumberOfDays         int    `json:"numberOfDays"`
	NumberOfLeapYearDays int    `json:"numberOfLeapYearDays"`
}

type scWeekday struct {
	Name string `json:"name"`
}

type scSeason struct {
	Name          string `json:"name"`
	StartingMonth int    `json:"startingMonth"` // 0-indexed month
	StartingDay   int    `json:"startingDay"`   // 0-indexed day
}

type scTime struct {
	HoursInDay    int `json:"hoursInDay"`
	MinutesInHour int `json:"minutesInHour"`
}

// parseSimpleCalendar converts a Simple Calendar JSON export. Handles both
// the v1 layout (single "calendar" key) and v2 ("calendars" array).
func parseSimpleCalendar(data []byte) (*TurnclockExport, error) {
	var v2 struct {
		ExportVersion int          `json:"exportVersion"`
		Calendars     []scCalendar `json:"calendars"`
	}
	if err := json.Unmarshal(data, &v2); err == nil && len(v2.Calendars) > 0 {
		return convertSimpleCalendar(v2.Calendars[0])
	}

	var sc scData
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, apperror.NewValidation("invalid Simple Calendar JSON: " + err.Error())
	}
	return convertSimpleCalendar(sc.Calendar)
}

// convertSimpleCalendar maps a Simple Calendar onto a Config. Time periods
// are taken from the built-in default calendar since Simple Calendar has
// none. The current date becomes the initial time state.
func convertSimpleCalendar(sc scCalendar) (*TurnclockExport, error) {
	defaults := DefaultSeed().Config
	cfg := &Config{
		Name:          stripLocalizationKey(sc.Name),
		ActionsPerDay: defaults.ActionsPerDay,
		HoursPerDay:   sc.Time.HoursInDay,
		TimePeriods:   append([]NamedRange(nil), defaults.TimePeriods...),
		Epoch:         Date{Day: 1, Year: sc.CurrentDate.Year},
	}
	if cfg.Name == "" {
		cfg.Name = "Imported Calendar"
	}
	if cfg.HoursPerDay <= 0 {
		cfg.HoursPerDay = 24
	}

	adjust := make(map[int]int)
	for i, m := range sc.Months {
		cfg.Months = append(cfg.Months, Month{Name: stripLocalizationKey(m.Name), BaseDays: m.NumberOfDays})
		if m.NumberOfLeapYearDays > 0 && m.NumberOfLeapYearDays != m.NumberOfDays {
			adjust[i] = m.NumberOfLeapYearDays - m.NumberOfDays
		}
	}
	for _, w := range sc.Weekdays {
		cfg.Weekdays = append(cfg.Weekdays, stripLocalizationKey(w.Name))
	}

	switch sc.LeapYear.Rule {
	case "gregorian":
		cfg.LeapYear = &LeapYearRule{Enabled: true, Frequency: 4, SkipFrequency: 100, SkipExceptionFrequency: 400, Adjustments: adjust}
	case "custom":
		if sc.LeapYear.CustomMod > 0 {
			cfg.LeapYear = &LeapYearRule{Enabled: true, Frequency: sc.LeapYear.CustomMod, Adjustments: adjust}
		}
	}

	// Seasons start at a month/day; each runs until the next one starts and
	// the last wraps to the first.
	if len(cfg.Months) > 0 {
		common := cfg.Clone()
		common.LeapYear = nil
		yearLen := float64(common.DaysInYear(0))
		starts := make([]float64, len(sc.Seasons))
		for i, s := range sc.Seasons {
			d := Date{Month: s.StartingMonth, Day: s.StartingDay + 1}
			if !common.ValidDate(d) {
				return nil, apperror.NewValidation(fmt.Sprintf("season %q starts on a day that does not exist", s.Name))
			}
			starts[i] = float64(common.ordinal(d)) / yearLen
		}
		for i, s := range sc.Seasons {
			r := NamedRange{
				Name:  stripLocalizationKey(s.Name),
				Start: round4(starts[i]),
				End:   round4(starts[(i+1)%len(starts)]),
			}
			if len(starts) == 1 {
				r.Start, r.End = 0, 1
			}
			cfg.Seasons = append(cfg.Seasons, r)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exp := &TurnclockExport{Format: ExportFormat, Version: 1, Calendar: cfg.Name, Config: cfg}
	cur := Date{Month: sc.CurrentDate.Month, Day: sc.CurrentDate.Day + 1, Year: sc.CurrentDate.Year}
	if cfg.ValidDate(cur) {
		secsPerDay := cfg.HoursPerDay * 3600
		progress := 0
		if secsPerDay > 0 {
			progress = int(int64(sc.CurrentDate.Seconds) * int64(cfg.ActionsPerDay) / int64(secsPerDay))
		}
		st := NewTimeState()
		st.DayNumber = cfg.DayNumberFromDate(cur)
		st.Progress = progress
		st, _ = NormalizeState(cfg, st)
		exp.State = &st
	}
	return exp, nil
}

// stripLocalizationKey removes Foundry localization prefixes like
// "FSC.Months.January" and returns just the display part.
func stripLocalizationKey(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ".") {
		return name
	}
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
