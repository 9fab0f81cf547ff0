package calendar

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// Validate checks that a configuration is complete enough to drive the
// engine. Errors are apperror validation errors naming the first problem.
func (c *Config) Validate() error {
	if c.ActionsPerDay < 1 {
		return apperror.NewValidation("actions per day must be at least 1")
	}
	if c.HoursPerDay < 1 {
		return apperror.NewValidation("hours per day must be at least 1")
	}
	if strings.ContainsFunc(c.Name, unicode.IsControl) {
		return apperror.NewValidation("calendar name cannot contain line breaks or control characters")
	}
	if len(c.Weekdays) == 0 {
		return apperror.NewValidation("calendar must have at least one weekday")
	}
	seen := make(map[string]bool, len(c.Weekdays))
	for i, w := range c.Weekdays {
		key := strings.ToLower(strings.TrimSpace(w))
		if key == "" {
			return apperror.NewValidation(fmt.Sprintf("weekday %d: name is required", i+1))
		}
		if err := checkName("weekday", w, ","); err != nil {
			return err
		}
		if seen[key] {
			return apperror.NewValidation(fmt.Sprintf("weekday %q is listed twice", w))
		}
		seen[key] = true
	}
	if len(c.Months) == 0 {
		return apperror.NewValidation("calendar must have at least one month")
	}
	months := make(map[string]bool, len(c.Months))
	for i, m := range c.Months {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if key == "" {
			return apperror.NewValidation(fmt.Sprintf("month %d: name is required", i+1))
		}
		if err := checkName("month", m.Name, ""); err != nil {
			return err
		}
		if months[key] {
			return apperror.NewValidation(fmt.Sprintf("month %q is listed twice", m.Name))
		}
		months[key] = true
		if m.BaseDays < 1 {
			return apperror.NewValidation(fmt.Sprintf("month %q: days must be at least 1", m.Name))
		}
	}
	if r := c.LeapYear; r != nil && r.Enabled {
		if r.Frequency < 1 {
			return apperror.NewValidation("leap year frequency must be at least 1")
		}
		if r.SkipFrequency < 0 || r.SkipExceptionFrequency < 0 {
			return apperror.NewValidation("leap year skip frequencies cannot be negative")
		}
		for idx := range r.Adjustments {
			if idx < 0 || idx >= len(c.Months) {
				return apperror.NewValidation(fmt.Sprintf("leap year adjustment for unknown month %d", idx+1))
			}
		}
	}
	if len(c.TimePeriods) == 0 {
		return apperror.NewValidation("calendar must have at least one time period")
	}
	if err := validateRanges("time period", c.TimePeriods); err != nil {
		return err
	}
	if err := validateRanges("season", c.Seasons); err != nil {
		return err
	}
	if !c.ValidDate(c.Epoch) {
		return apperror.NewValidation(fmt.Sprintf("epoch date %s does not exist", c.Epoch))
	}
	return nil
}

func validateRanges(kind string, ranges []NamedRange) error {
	for _, r := range ranges {
		if strings.TrimSpace(r.Name) == "" {
			return apperror.NewValidation(kind + " name is required")
		}
		if err := checkName(kind, r.Name, ""); err != nil {
			return err
		}
		if r.Start < 0 || r.Start > 1 || r.End < 0 || r.End > 1 {
			return apperror.NewValidation(fmt.Sprintf("%s %q: bounds must be between 0 and 1", kind, r.Name))
		}
	}
	return nil
}

// checkName rejects names the configuration record cannot hold: they are
// written as "Name: value" keys (or a comma-separated weekday list), so a
// colon, a line break, a leading '#' or surrounding spaces would change
// them on the way back in. extra lists further forbidden characters.
func checkName(kind, name, extra string) error {
	switch {
	case strings.TrimSpace(name) != name:
		return apperror.NewValidation(fmt.Sprintf("%s %q: name cannot start or end with spaces", kind, name))
	case strings.HasPrefix(name, "#"):
		return apperror.NewValidation(fmt.Sprintf("%s %q: name cannot start with '#'", kind, name))
	case strings.ContainsFunc(name, unicode.IsControl):
		return apperror.NewValidation(fmt.Sprintf("%s %q: name cannot contain line breaks or control characters", kind, name))
	case strings.ContainsAny(name, ":"+extra):
		return apperror.NewValidation(fmt.Sprintf("%s %q: name cannot contain any of %q", kind, name, ":"+extra))
	}
	return nil
}
