package calendar

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/keyxmakerx/turnclock/internal/apperror"
	"github.com/keyxmakerx/turnclock/internal/sanitize"
)

// Records are plain text: "Key: value" lines grouped under "## Section"
// headers. Lines starting with a single '#' are comments.

const (
	sectionMonths      = "months"
	sectionLeapYear    = "leap year"
	sectionTimePeriods = "time periods"
	sectionSeasons     = "seasons"
)

// recordLines splits a record entry into (section, key, value) triples.
func recordLines(entry string, fn func(lineNo int, section, key, value string)) {
	section := ""
	for i, raw := range strings.Split(entry, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			section = normKey(strings.TrimLeft(line, "# "))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			fn(i+1, section, "", line)
			continue
		}
		fn(i+1, section, strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

// normKey lowercases and collapses whitespace so "Actions  per day" matches.
func normKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// --- Configuration ---

// FormatConfig renders a configuration as record text.
func FormatConfig(c *Config) string {
	var b strings.Builder
	if c.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", c.Name)
	}
	fmt.Fprintf(&b, "Actions Per Day: %d\n", c.ActionsPerDay)
	fmt.Fprintf(&b, "Hours Per Day: %d\n", c.HoursPerDay)
	fmt.Fprintf(&b, "Epoch: %s\n", c.Epoch)
	fmt.Fprintf(&b, "Weekdays: %s\n", strings.Join(c.Weekdays, ", "))

	b.WriteString("\n## Months\n")
	for _, m := range c.Months {
		fmt.Fprintf(&b, "%s: %d\n", m.Name, m.BaseDays)
	}

	if r := c.LeapYear; r != nil {
		b.WriteString("\n## Leap Year\n")
		fmt.Fprintf(&b, "Enabled: %t\n", r.Enabled)
		fmt.Fprintf(&b, "Frequency: %d\n", r.Frequency)
		fmt.Fprintf(&b, "Skip Frequency: %d\n", r.SkipFrequency)
		fmt.Fprintf(&b, "Skip Exception Frequency: %d\n", r.SkipExceptionFrequency)
		fmt.Fprintf(&b, "Start Year: %d\n", r.StartYear)
		idx := make([]int, 0, len(r.Adjustments))
		for i := range r.Adjustments {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		for _, i := range idx {
			if i >= 0 && i < len(c.Months) {
				fmt.Fprintf(&b, "Adjust %s: %+d\n", c.Months[i].Name, r.Adjustments[i])
			}
		}
	}

	b.WriteString("\n## Time Periods\n")
	writeRanges(&b, c.TimePeriods)
	if len(c.Seasons) > 0 {
		b.WriteString("\n## Seasons\n")
		writeRanges(&b, c.Seasons)
	}
	return b.String()
}

func writeRanges(b *strings.Builder, ranges []NamedRange) {
	for _, r := range ranges {
		fmt.Fprintf(b, "%s: %s - %s\n", r.Name,
			strconv.FormatFloat(r.Start, 'f', -1, 64),
			strconv.FormatFloat(r.End, 'f', -1, 64))
	}
}

// ParseConfig parses configuration record text and validates the result.
// Missing or unparseable required fields produce a validation error.
func ParseConfig(entry string) (*Config, error) {
	c := &Config{}
	var (
		problems    []string
		hasEpoch    bool
		adjustments = map[string]int{}
		leap        LeapYearRule
		hasLeap     bool
	)
	fail := func(line int, msg string) {
		problems = append(problems, fmt.Sprintf("line %d: %s", line, msg))
	}

	recordLines(entry, func(n int, section, key, value string) {
		if key == "" {
			fail(n, "expected 'key: value'")
			return
		}
		switch section {
		case "":
			switch normKey(key) {
			case "name":
				c.Name = value
			case "actions per day":
				v, err := strconv.Atoi(value)
				if err != nil {
					fail(n, "actions per day must be a number")
					return
				}
				c.ActionsPerDay = v
			case "hours per day":
				v, err := strconv.Atoi(value)
				if err != nil {
					fail(n, "hours per day must be a number")
					return
				}
				c.HoursPerDay = v
			case "epoch", "epoch date":
				d, err := parseNumericDate(value, true)
				if err != nil {
					fail(n, err.Error())
					return
				}
				c.Epoch = d
				hasEpoch = true
			case "weekdays":
				for _, w := range strings.Split(value, ",") {
					if w = strings.TrimSpace(w); w != "" {
						c.Weekdays = append(c.Weekdays, w)
					}
				}
			}

		case sectionMonths:
			v, err := strconv.Atoi(value)
			if err != nil {
				fail(n, fmt.Sprintf("month %q: days must be a number", key))
				return
			}
			c.Months = append(c.Months, Month{Name: key, BaseDays: v})

		case sectionLeapYear:
			hasLeap = true
			k := normKey(key)
			if strings.HasPrefix(k, "adjust ") {
				v, err := strconv.Atoi(strings.TrimPrefix(value, "+"))
				if err != nil {
					fail(n, "leap adjustment must be a signed number")
					return
				}
				adjustments[strings.TrimSpace(key[len("adjust "):])] = v
				return
			}
			if k == "enabled" {
				leap.Enabled = parseBool(value)
				return
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				fail(n, fmt.Sprintf("leap year %s must be a number", k))
				return
			}
			switch k {
			case "frequency":
				leap.Frequency = v
			case "skip frequency":
				leap.SkipFrequency = v
			case "skip exception frequency":
				leap.SkipExceptionFrequency = v
			case "start year":
				leap.StartYear = v
			}

		case sectionTimePeriods, sectionSeasons:
			r, err := parseNamedRange(key, value)
			if err != nil {
				fail(n, err.Error())
				return
			}
			if section == sectionTimePeriods {
				c.TimePeriods = append(c.TimePeriods, r)
			} else {
				c.Seasons = append(c.Seasons, r)
			}
		}
	})

	if c.ActionsPerDay == 0 {
		problems = append(problems, "actions per day is required")
	}
	if c.HoursPerDay == 0 {
		problems = append(problems, "hours per day is required")
	}
	if !hasEpoch {
		problems = append(problems, "epoch date is required")
	}
	if hasLeap {
		leap.Adjustments = make(map[int]int, len(adjustments))
		for name, v := range adjustments {
			idx, ok := c.MonthIndex(name)
			if !ok {
				problems = append(problems, fmt.Sprintf("leap adjustment for unknown month %q", name))
				continue
			}
			leap.Adjustments[idx] = v
		}
		c.LeapYear = &leap
	}
	if len(problems) > 0 {
		return nil, apperror.NewValidation("invalid calendar configuration: " + strings.Join(problems, "; "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

func parseNamedRange(name, value string) (NamedRange, error) {
	lo, hi, ok := strings.Cut(value, "-")
	if !ok {
		return NamedRange{}, fmt.Errorf("range %q: expected 'start - end'", name)
	}
	start, err1 := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	end, err2 := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err1 != nil || err2 != nil {
		return NamedRange{}, fmt.Errorf("range %q: bounds must be numbers", name)
	}
	return NamedRange{Name: name, Start: start, End: end}, nil
}

// parseNumericDate parses "M/D" or "M/D/Y" with a 1-based month.
func parseNumericDate(s string, needYear bool) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 2 || len(parts) > 3 || (needYear && len(parts) != 3) {
		if needYear {
			return Date{}, fmt.Errorf("date %q: expected M/D/Y", s)
		}
		return Date{}, fmt.Errorf("date %q: expected M/D", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Date{}, fmt.Errorf("date %q: %q is not a number", s, p)
		}
		nums[i] = v
	}
	d := Date{Month: nums[0] - 1, Day: nums[1]}
	if len(nums) == 3 {
		d.Year = nums[2]
	}
	return d, nil
}

// --- Events ---

// ParseIssue records a catalog line that was dropped.
type ParseIssue struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

var (
	eventLineRe = regexp.MustCompile(`(?i)^(.+?)(?:\s+for\s+(\d+)\s+days?)?(?:\s+at\s+(.+))?$`)
	weeklyRe    = regexp.MustCompile(`(?i)^weekly\s+(.+)$`)
	annualRe    = regexp.MustCompile(`(?i)^annual\s+(\d+/\d+)$`)
	onceRe      = regexp.MustCompile(`(?i)^once\s+(\d+/\d+/-?\d+)$`)
	periodicRe  = regexp.MustCompile(`(?i)^every\s+(\d+)\s+years?\s+from\s+(\d+/\d+/-?\d+)$`)
	relativeRe  = regexp.MustCompile(`(?i)^(1st|2nd|3rd|4th|5th|last)\s+(.+?)\s+of\s+(.+?)(?:\s+in\s+(-?\d+)|\s+every\s+(\d+)\s+years?\s+from\s+(-?\d+))?$`)
	rangeRe     = regexp.MustCompile(`^(\d{1,3}):(\d{2})\s*-\s*(\d{1,3}):(\d{2})$`)
)

var ordinals = []string{"1st", "2nd", "3rd", "4th", "5th"}

// ParseEvents parses catalog record text. Lines that do not match the
// grammar are dropped and reported as issues; duplicates are dropped
// silently.
func ParseEvents(c *Config, entry string) (*Catalog, []ParseIssue) {
	cat := NewCatalog()
	var issues []ParseIssue
	recordLines(entry, func(n int, section, key, value string) {
		line := key + ": " + value
		if key == "" {
			line = value
		}
		e, err := ParseEventLine(c, line)
		if err != nil {
			issues = append(issues, ParseIssue{Line: n, Text: line, Reason: err.Error()})
			return
		}
		cat.Add(e)
	})
	return cat, issues
}

// ParseEventLine parses a single "Name: schedule [for N days] [at ranges]"
// line.
func ParseEventLine(c *Config, line string) (Event, error) {
	rawName, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Event{}, apperror.NewValidation("expected 'Name: schedule'")
	}
	name := sanitize.Text(rawName)
	if name == "" {
		return Event{}, apperror.NewValidation("event name is required")
	}
	m := eventLineRe.FindStringSubmatch(strings.TrimSpace(rest))
	if m == nil {
		return Event{}, apperror.NewValidation("missing schedule")
	}

	e := Event{Name: name, DurationDays: 1}
	if m[2] != "" {
		d, _ := strconv.Atoi(m[2])
		if d < 1 {
			return Event{}, apperror.NewValidation("duration must be at least 1 day")
		}
		e.DurationDays = d
	}
	if m[3] != "" {
		ranges, err := parseTimeRanges(c, m[3])
		if err != nil {
			return Event{}, err
		}
		e.TimeRanges = ranges
	}
	sched, err := parseSchedule(c, strings.TrimSpace(m[1]))
	if err != nil {
		return Event{}, err
	}
	e.Schedule = sched
	return e, nil
}

func parseSchedule(c *Config, s string) (Schedule, error) {
	if strings.EqualFold(s, "daily") {
		return Daily{}, nil
	}
	if m := weeklyRe.FindStringSubmatch(s); m != nil {
		wd, ok := c.WeekdayIndex(m[1])
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("unknown weekday %q", m[1]))
		}
		return Weekly{Weekday: wd}, nil
	}
	if m := annualRe.FindStringSubmatch(s); m != nil {
		d, err := parseNumericDate(m[1], false)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		if err := checkMonthDay(c, d); err != nil {
			return nil, err
		}
		return Annual{Month: d.Month, Day: d.Day}, nil
	}
	if m := onceRe.FindStringSubmatch(s); m != nil {
		d, err := parseNumericDate(m[1], true)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		if err := checkMonthDay(c, d); err != nil {
			return nil, err
		}
		return Once{Date: d}, nil
	}
	if m := periodicRe.FindStringSubmatch(s); m != nil {
		freq, _ := strconv.Atoi(m[1])
		if freq < 1 {
			return nil, apperror.NewValidation("frequency must be at least 1 year")
		}
		d, err := parseNumericDate(m[2], true)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		if err := checkMonthDay(c, d); err != nil {
			return nil, err
		}
		return Periodic{Start: d, Frequency: freq}, nil
	}
	if m := relativeRe.FindStringSubmatch(s); m != nil {
		nth := Last
		for i, o := range ordinals {
			if strings.EqualFold(o, m[1]) {
				nth = i + 1
			}
		}
		wd, ok := c.WeekdayIndex(m[2])
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("unknown weekday %q", m[2]))
		}
		month, ok := c.MonthIndex(m[3])
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("unknown month %q", m[3]))
		}
		r := Relative{Month: month, Nth: nth, Weekday: wd, Years: EveryYear{}}
		switch {
		case m[4] != "":
			y, _ := strconv.Atoi(m[4])
			r.Years = OnlyYear{Year: y}
		case m[5] != "":
			freq, _ := strconv.Atoi(m[5])
			start, _ := strconv.Atoi(m[6])
			if freq < 1 {
				return nil, apperror.NewValidation("frequency must be at least 1 year")
			}
			r.Years = EveryNYears{Start: start, Frequency: freq}
		}
		return r, nil
	}
	return nil, apperror.NewValidation(fmt.Sprintf("unrecognized schedule %q", s))
}

// checkMonthDay rejects a month/day that can never exist. Days that only
// exist in leap years are accepted.
func checkMonthDay(c *Config, d Date) error {
	if d.Month < 0 || d.Month >= len(c.Months) {
		return apperror.NewValidation(fmt.Sprintf("month %d does not exist", d.Month+1))
	}
	maxDays := c.Months[d.Month].BaseDays
	if c.LeapYear != nil && c.LeapYear.Adjustments[d.Month] > 0 {
		maxDays += c.LeapYear.Adjustments[d.Month]
	}
	if d.Day < 1 || d.Day > maxDays {
		return apperror.NewValidation(fmt.Sprintf("%s has no day %d", c.Months[d.Month].Name, d.Day))
	}
	return nil
}

func parseTimeRanges(c *Config, s string) ([]TimeRange, error) {
	var out []TimeRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		m := rangeRe.FindStringSubmatch(part)
		if m == nil {
			return nil, apperror.NewValidation(fmt.Sprintf("time range %q: expected HH:MM-HH:MM", part))
		}
		n := make([]int, 4)
		for i := range n {
			n[i], _ = strconv.Atoi(m[i+1])
		}
		r := TimeRange{Start: ClockTime{Hour: n[0], Minute: n[1]}, End: ClockTime{Hour: n[2], Minute: n[3]}}
		if r.Start.Minute > 59 || r.End.Minute > 59 {
			return nil, apperror.NewValidation(fmt.Sprintf("time range %q: minutes must be below 60", part))
		}
		if r.Start.Hour >= c.HoursPerDay || r.End.Minutes() > c.MinutesPerDay() {
			return nil, apperror.NewValidation(fmt.Sprintf("time range %q: outside a %d-hour day", part, c.HoursPerDay))
		}
		if r.End.Minutes() < r.Start.Minutes() {
			return nil, apperror.NewValidation(fmt.Sprintf("time range %q: ends before it starts", part))
		}
		out = append(out, r)
	}
	return out, nil
}

// FormatEvent renders one event as a catalog line.
func FormatEvent(c *Config, e Event) string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(": ")
	b.WriteString(formatSchedule(c, e.Schedule))
	if e.Duration() > 1 {
		fmt.Fprintf(&b, " for %d days", e.Duration())
	}
	if len(e.TimeRanges) > 0 {
		parts := make([]string, len(e.TimeRanges))
		for i, r := range e.TimeRanges {
			parts[i] = r.String()
		}
		b.WriteString(" at ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}

// FormatEvents renders a catalog as record text, one event per line.
func FormatEvents(c *Config, cat *Catalog) string {
	var b strings.Builder
	for _, e := range cat.Events() {
		b.WriteString(FormatEvent(c, e))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatSchedule(c *Config, s Schedule) string {
	switch v := s.(type) {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly " + nameAt(c.Weekdays, v.Weekday)
	case Annual:
		return fmt.Sprintf("annual %d/%d", v.Month+1, v.Day)
	case Once:
		return "once " + v.Date.String()
	case Periodic:
		return fmt.Sprintf("every %d years from %s", v.Frequency, v.Start)
	case Relative:
		nth := "last"
		if v.Nth >= 1 && v.Nth <= len(ordinals) {
			nth = ordinals[v.Nth-1]
		}
		month := fmt.Sprint(v.Month + 1)
		if v.Month >= 0 && v.Month < len(c.Months) {
			month = c.Months[v.Month].Name
		}
		out := fmt.Sprintf("%s %s of %s", nth, nameAt(c.Weekdays, v.Weekday), month)
		switch g := v.gate().(type) {
		case OnlyYear:
			out += fmt.Sprintf(" in %d", g.Year)
		case EveryNYears:
			out += fmt.Sprintf(" every %d years from %d", g.Frequency, g.Start)
		}
		return out
	}
	return ""
}

func nameAt(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return strconv.Itoa(i)
}

// --- State ---

// FormatState renders a time state as record text. ParseState reverses it
// exactly.
func FormatState(s TimeState) string {
	last := "never"
	if s.Processed() {
		last = strconv.Itoa(s.LastProcessedTurn)
	}
	out := fmt.Sprintf("Day: %d\nProgress: %d\nLast Turn: %s\n", s.DayNumber, s.Progress, last)
	if s.TurnOffset != 0 {
		out += fmt.Sprintf("Turn Offset: %d\n", s.TurnOffset)
	}
	return out
}

// ParseState parses a state record. Day, progress and last turn are
// required; a missing turn offset is zero.
func ParseState(entry string) (TimeState, error) {
	s := NewTimeState()
	var hasDay, hasProgress, hasTurn bool
	var bad []string
	recordLines(entry, func(_ int, _ string, key, value string) {
		k := normKey(key)
		if k == "last turn" && strings.EqualFold(value, "never") {
			s.LastProcessedTurn = NeverProcessed
			hasTurn = true
			return
		}
		v, err := strconv.Atoi(value)
		switch k {
		case "day", "progress", "last turn", "turn offset":
			if err != nil {
				bad = append(bad, k)
				return
			}
		default:
			return
		}
		switch k {
		case "day":
			s.DayNumber, hasDay = v, true
		case "progress":
			s.Progress, hasProgress = v, true
		case "last turn":
			s.LastProcessedTurn, hasTurn = v, true
		case "turn offset":
			s.TurnOffset = v
		}
	})
	if len(bad) > 0 {
		return s, apperror.NewValidation("invalid time state fields: " + strings.Join(bad, ", "))
	}
	if !hasDay || !hasProgress || !hasTurn {
		return s, apperror.NewValidation("time state requires day, progress and last turn")
	}
	return s, nil
}

// DescribeState renders a one-line human summary used as the state record's
// description.
func DescribeState(c *Config, s TimeState) string {
	snap := TakeSnapshot(c, s)
	clock := c.ClockAt(s)
	return fmt.Sprintf("%s, %s (%s, %s)", FormatDate(c, snap.Date, c.DayOfWeek(s.DayNumber)), clock, snap.Period, snap.Season)
}

// FormatDate renders a date as "Weekday, Month D, Y".
func FormatDate(c *Config, d Date, weekday int) string {
	month := fmt.Sprint(d.Month + 1)
	if d.Month >= 0 && d.Month < len(c.Months) {
		month = c.Months[d.Month].Name
	}
	return fmt.Sprintf("%s, %s %d, %d", nameAt(c.Weekdays, weekday), month, d.Day, d.Year)
}
