package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

//go:embed seeds/default.yaml
var defaultSeedYAML []byte

// Seed is a calendar definition used to populate a store that has no
// configuration yet.
type Seed struct {
	Config *Config
	Events []Event
}

// ConfigEntry renders the seed's configuration record.
func (s *Seed) ConfigEntry() string {
	return FormatConfig(s.Config)
}

// EventsEntry renders the seed's event catalog record.
func (s *Seed) EventsEntry() string {
	return FormatEvents(s.Config, NewCatalog(s.Events...))
}

// seedFile is the YAML layout of a seed.
type seedFile struct {
	Name          string      `yaml:"name"`
	ActionsPerDay int         `yaml:"actions_per_day"`
	HoursPerDay   int         `yaml:"hours_per_day"`
	Epoch         string      `yaml:"epoch"`
	Weekdays      []string    `yaml:"weekdays"`
	Months        []Month     `yaml:"months"`
	LeapYear      *seedLeap   `yaml:"leap_year"`
	TimePeriods   []seedRange `yaml:"time_periods"`
	Seasons       []seedRange `yaml:"seasons"`
	Events        []string    `yaml:"events"`
}

type seedLeap struct {
	Enabled                bool           `yaml:"enabled"`
	Frequency              int            `yaml:"frequency"`
	SkipFrequency          int            `yaml:"skip_frequency"`
	SkipExceptionFrequency int            `yaml:"skip_exception_frequency"`
	StartYear              int            `yaml:"start_year"`
	Adjustments            map[string]int `yaml:"adjustments"`
}

type seedRange struct {
	Name  string  `yaml:"name"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// DefaultSeed returns the built-in calendar.
func DefaultSeed() *Seed {
	s, err := ParseSeed(defaultSeedYAML)
	if err != nil {
		panic(fmt.Sprintf("calendar: embedded default seed is invalid: %v", err))
	}
	return s
}

// LoadSeed reads a YAML seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", path, err)
	}
	s, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return s, nil
}

// ParseSeed decodes and validates a YAML seed. Every event line must parse.
func ParseSeed(data []byte) (*Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperror.NewValidation("invalid seed yaml: " + err.Error())
	}

	epoch, err := parseNumericDate(f.Epoch, true)
	if err != nil {
		return nil, apperror.NewValidation("seed epoch: " + err.Error())
	}
	cfg := &Config{
		Name:          f.Name,
		Weekdays:      f.Weekdays,
		Months:        f.Months,
		ActionsPerDay: f.ActionsPerDay,
		HoursPerDay:   f.HoursPerDay,
		Epoch:         epoch,
	}
	for _, r := range f.TimePeriods {
		cfg.TimePeriods = append(cfg.TimePeriods, NamedRange(r))
	}
	for _, r := range f.Seasons {
		cfg.Seasons = append(cfg.Seasons, NamedRange(r))
	}
	if l := f.LeapYear; l != nil {
		rule := &LeapYearRule{
			Enabled:                l.Enabled,
			Frequency:              l.Frequency,
			SkipFrequency:          l.SkipFrequency,
			SkipExceptionFrequency: l.SkipExceptionFrequency,
			StartYear:              l.StartYear,
			Adjustments:            make(map[int]int, len(l.Adjustments)),
		}
		for name, delta := range l.Adjustments {
			idx, ok := cfg.MonthIndex(name)
			if !ok {
				return nil, apperror.NewValidation(fmt.Sprintf("seed leap adjustment for unknown month %q", name))
			}
			rule.Adjustments[idx] = delta
		}
		cfg.LeapYear = rule
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := &Seed{Config: cfg}
	var bad []string
	for _, line := range f.Events {
		e, err := ParseEventLine(cfg, line)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%q: %s", line, apperror.SafeMessage(err)))
			continue
		}
		seed.Events = append(seed.Events, e)
	}
	if len(bad) > 0 {
		return nil, apperror.NewValidation("invalid seed events: " + strings.Join(bad, "; "))
	}
	return seed, nil
}
