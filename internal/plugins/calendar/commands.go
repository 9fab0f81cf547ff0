package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// CommandKind identifies a manual time command.
type CommandKind string

// Command kinds.
const (
	CommandAdvance CommandKind = "advance"
	CommandSetTime CommandKind = "set_time"
	CommandSetDay  CommandKind = "set_day"
	CommandSetDate CommandKind = "set_date"
)

// CommandPrefix marks a line of turn input as a time command.
const CommandPrefix = "/time"

// Command is a parsed manual time command. Rewinds are advances with a
// negative span.
type Command struct {
	Kind CommandKind `json:"kind"`
	Span Span        `json:"span,omitempty"`
	Time ClockTime   `json:"time,omitempty"`
	Day  int         `json:"day,omitempty"`
	Date Date        `json:"date,omitempty"`
}

var (
	moveCmdRe    = regexp.MustCompile(`(?i)^(advance|rewind|skip)\s+(\d+)\s+(minutes?|mins?|hours?|days?)$`)
	setTimeCmdRe = regexp.MustCompile(`(?i)^set\s+time\s+(?:to\s+)?(\d{1,3}):(\d{2})$`)
	setDayCmdRe  = regexp.MustCompile(`(?i)^set\s+day\s+(?:to\s+)?(-?\d+)$`)
	setDateCmdRe = regexp.MustCompile(`(?i)^set\s+date\s+(?:to\s+)?(\d+/\d+/-?\d+)$`)
)

// ParseCommand parses a time command, with or without the /time prefix.
// Text that matches no command is rejected with a validation error.
func ParseCommand(text string) (Command, error) {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) >= len(CommandPrefix) && strings.EqualFold(s[:len(CommandPrefix)], CommandPrefix) {
		s = strings.TrimSpace(s[len(CommandPrefix):])
	}

	if m := moveCmdRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Command{}, apperror.NewValidation("amount is too large")
		}
		var span Span
		switch unit := strings.ToLower(m[3]); {
		case strings.HasPrefix(unit, "min"):
			span.Minutes = n
		case strings.HasPrefix(unit, "hour"):
			span.Hours = n
		default:
			span.Days = n
		}
		if strings.EqualFold(m[1], "rewind") {
			span = span.Negate()
		}
		return Command{Kind: CommandAdvance, Span: span}, nil
	}
	if m := setTimeCmdRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return Command{Kind: CommandSetTime, Time: ClockTime{Hour: h, Minute: min}}, nil
	}
	if m := setDayCmdRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Command{}, apperror.NewValidation("day number is too large")
		}
		return Command{Kind: CommandSetDay, Day: n}, nil
	}
	if m := setDateCmdRe.FindStringSubmatch(s); m != nil {
		d, err := parseNumericDate(m[1], true)
		if err != nil {
			return Command{}, apperror.NewValidation(err.Error())
		}
		return Command{Kind: CommandSetDate, Date: d}, nil
	}
	return Command{}, apperror.NewValidation(fmt.Sprintf("unrecognized time command %q", text))
}

// ExtractCommand returns the first line of turn input that starts with the
// /time prefix.
func ExtractCommand(input string) (string, bool) {
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len(CommandPrefix) || !strings.EqualFold(line[:len(CommandPrefix)], CommandPrefix) {
			continue
		}
		if len(line) > len(CommandPrefix) && line[len(CommandPrefix)] != ' ' && line[len(CommandPrefix)] != '\t' {
			continue
		}
		return line, true
	}
	return "", false
}

// Apply runs the command against a state and re-anchors its turn offset.
func (cmd Command) Apply(c *Config, s TimeState) (TimeState, Transition, error) {
	next, tr, err := cmd.apply(c, s)
	if err != nil {
		return s, tr, err
	}
	return Reanchor(c, next), tr, nil
}

func (cmd Command) apply(c *Config, s TimeState) (TimeState, Transition, error) {
	switch cmd.Kind {
	case CommandAdvance:
		next, tr := AdvanceBy(c, s, cmd.Span)
		return next, tr, nil
	case CommandSetTime:
		return SetTime(c, s, cmd.Time)
	case CommandSetDay:
		next, tr := SetDay(s, cmd.Day)
		return next, tr, nil
	case CommandSetDate:
		return SetDate(c, s, cmd.Date)
	}
	return s, Transition{}, apperror.NewValidation(fmt.Sprintf("unknown command kind %q", cmd.Kind))
}

// Describe returns a confirmation line for an applied command.
func (cmd Command) Describe(c *Config, after TimeState) string {
	now := fmt.Sprintf("%s at %s", FormatDate(c, c.DateFromDayNumber(after.DayNumber), c.DayOfWeek(after.DayNumber)), c.ClockAt(after))
	switch cmd.Kind {
	case CommandAdvance:
		verb, span := "Advanced", cmd.Span
		if span.Days < 0 || span.Hours < 0 || span.Minutes < 0 {
			verb, span = "Rewound", span.Negate()
		}
		return fmt.Sprintf("%s %s. It is now %s.", verb, span, now)
	case CommandSetTime:
		return fmt.Sprintf("Time set to %s. It is now %s.", cmd.Time, now)
	case CommandSetDay:
		return fmt.Sprintf("Day set to %d. It is now %s.", cmd.Day, now)
	case CommandSetDate:
		return fmt.Sprintf("Date set to %s. It is now %s.", cmd.Date, now)
	}
	return "It is now " + now + "."
}
