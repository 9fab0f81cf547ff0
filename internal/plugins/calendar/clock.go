package calendar

import (
	"fmt"
	"math"
	"strings"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// TransitionKind classifies how a state moved.
type TransitionKind string

// Transition kinds.
const (
	// TransitionAnchored is the first turn a state has seen: the counter is
	// adopted, time does not move and the turn offset is fixed.
	TransitionAnchored TransitionKind = "anchored"
	// TransitionAdvanced is ordinary forward movement by elapsed turns.
	TransitionAdvanced TransitionKind = "advanced"
	// TransitionReversed means the host rewound its counter and the state was
	// recomputed from the absolute turn.
	TransitionReversed TransitionKind = "reversed"
	// TransitionUnchanged means the counter matched the last processed turn.
	TransitionUnchanged TransitionKind = "unchanged"
	// TransitionManual is an explicit time skip that is not turn driven.
	TransitionManual TransitionKind = "manual"
)

// Transition describes one state change.
type Transition struct {
	Kind       TransitionKind `json:"kind"`
	Elapsed    int            `json:"elapsed"`
	DayChanged bool           `json:"day_changed"`
}

// Reconcile moves a state to match the host's turn counter.
//
// The first counter ever seen anchors the state: time stays where it is and
// TurnOffset records the difference between position and counter. A counter
// ahead of the last processed turn advances progress by the elapsed turns,
// rolling whole days over. A counter behind it is an absolute position,
// shifted by TurnOffset: day = floor((turn+offset)/actionsPerDay). With a
// zero offset that is floor(turn/actionsPerDay). An equal counter changes
// nothing.
func Reconcile(c *Config, s TimeState, turn int) (TimeState, Transition) {
	apd := c.ActionsPerDay
	switch {
	case !s.Processed():
		s.LastProcessedTurn = turn
		s.TurnOffset = s.Position(apd) - turn
		return s, Transition{Kind: TransitionAnchored}

	case turn == s.LastProcessedTurn:
		return s, Transition{Kind: TransitionUnchanged}

	case turn > s.LastProcessedTurn:
		elapsed := turn - s.LastProcessedTurn
		prev := s.DayNumber
		s.Progress += elapsed
		s.DayNumber += s.Progress / apd
		s.Progress %= apd
		s.LastProcessedTurn = turn
		return s, Transition{Kind: TransitionAdvanced, Elapsed: elapsed, DayChanged: s.DayNumber != prev}

	default:
		prev := s.DayNumber
		elapsed := turn - s.LastProcessedTurn
		pos := turn + s.TurnOffset
		s.DayNumber = floorDiv(pos, apd)
		s.Progress = mod(pos, apd)
		s.LastProcessedTurn = turn
		return s, Transition{Kind: TransitionReversed, Elapsed: elapsed, DayChanged: s.DayNumber != prev}
	}
}

// Span is a relative amount of calendar time. Negative values rewind.
type Span struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// IsZero reports whether the span moves nothing.
func (s Span) IsZero() bool {
	return s.Days == 0 && s.Hours == 0 && s.Minutes == 0
}

// Negate returns the span pointing the other way.
func (s Span) Negate() Span {
	return Span{Days: -s.Days, Hours: -s.Hours, Minutes: -s.Minutes}
}

// String describes the span in words, e.g. "1 day 3 hours".
func (s Span) String() string {
	var parts []string
	add := func(n int, unit string) {
		if n == 0 {
			return
		}
		if n == 1 || n == -1 {
			parts = append(parts, fmt.Sprintf("%d %s", n, unit))
			return
		}
		parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
	}
	add(s.Days, "day")
	add(s.Hours, "hour")
	add(s.Minutes, "minute")
	if len(parts) == 0 {
		return "0 minutes"
	}
	return strings.Join(parts, " ")
}

// actionsForMinutes converts clock minutes to turns, rounding to the nearest
// turn.
func (c *Config) actionsForMinutes(minutes int) int {
	return int(math.Round(float64(minutes) * float64(c.ActionsPerDay) / float64(c.MinutesPerDay())))
}

// AdvanceBy moves a state by a span. Whole days move the day-number
// directly; hours and minutes are converted to turns. LastProcessedTurn is
// left alone.
func AdvanceBy(c *Config, s TimeState, span Span) (TimeState, Transition) {
	prev := s.DayNumber
	actions := s.Progress + c.actionsForMinutes(span.Hours*60+span.Minutes)
	s.DayNumber += span.Days + floorDiv(actions, c.ActionsPerDay)
	s.Progress = mod(actions, c.ActionsPerDay)
	return s, Transition{Kind: TransitionManual, DayChanged: s.DayNumber != prev}
}

// SetTime moves a state to a wall-clock time on its current day.
func SetTime(c *Config, s TimeState, t ClockTime) (TimeState, Transition, error) {
	if t.Hour < 0 || t.Hour >= c.HoursPerDay || t.Minute < 0 || t.Minute > 59 {
		return s, Transition{}, apperror.NewValidation(fmt.Sprintf("time %s is outside a %d-hour day", t, c.HoursPerDay))
	}
	p := c.actionsForMinutes(t.Minutes())
	if p >= c.ActionsPerDay {
		p = c.ActionsPerDay - 1
	}
	s.Progress = p
	return s, Transition{Kind: TransitionManual}, nil
}

// SetDay moves a state to an absolute day-number, keeping the time of day.
func SetDay(s TimeState, dayNumber int) (TimeState, Transition) {
	changed := s.DayNumber != dayNumber
	s.DayNumber = dayNumber
	return s, Transition{Kind: TransitionManual, DayChanged: changed}
}

// SetDate moves a state to a civil date, keeping the time of day.
func SetDate(c *Config, s TimeState, d Date) (TimeState, Transition, error) {
	if !c.ValidDate(d) {
		return s, Transition{}, apperror.NewValidation(fmt.Sprintf("date %s does not exist", d))
	}
	next, tr := SetDay(s, c.DayNumberFromDate(d))
	return next, tr, nil
}

// Rescale converts progress recorded under oldActions turns per day to the
// same fraction of a day under newActions, and re-anchors the turn offset
// in the new unit.
func Rescale(s TimeState, oldActions, newActions int) TimeState {
	if oldActions <= 0 || newActions <= 0 || oldActions == newActions {
		return s
	}
	p := int(math.Floor(float64(s.Progress) * float64(newActions) / float64(oldActions)))
	if p >= newActions {
		p = newActions - 1
	}
	s.Progress = p
	if s.Processed() {
		s.TurnOffset = s.Position(newActions) - s.LastProcessedTurn
	}
	return s
}

// NormalizeState repairs a state read from a record that may have been
// edited by hand: progress outside [0, actionsPerDay) is folded into whole
// days and any negative turn becomes NeverProcessed with no offset. It
// reports whether anything changed.
func NormalizeState(c *Config, s TimeState) (TimeState, bool) {
	out := s
	if c.ActionsPerDay > 0 && (out.Progress < 0 || out.Progress >= c.ActionsPerDay) {
		out.DayNumber += floorDiv(out.Progress, c.ActionsPerDay)
		out.Progress = mod(out.Progress, c.ActionsPerDay)
	}
	if out.LastProcessedTurn < 0 {
		out.LastProcessedTurn = NeverProcessed
		out.TurnOffset = 0
	}
	return out, out != s
}
