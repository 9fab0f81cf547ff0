// Package calendar -- export.go provides JSON export of a calendar instance.
// An export carries the configuration, the event catalog as catalog lines
// and, optionally, the current time state. It round-trips through Import.
package calendar

import (
	"context"
	"fmt"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// ExportFormat is the format tag written into every native export.
const ExportFormat = "turnclock-calendar-v1"

// TurnclockExport is the top-level JSON envelope for calendar export.
type TurnclockExport struct {
	Format   string     `json:"format"`  // ExportFormat
	Version  int        `json:"version"` // schema version (1)
	Calendar string     `json:"calendar"`
	Config   *Config    `json:"config"`
	Events   []string   `json:"events,omitempty"`
	State    *TimeState `json:"state,omitempty"`
}

// BuildExport assembles an export from loaded records.
func BuildExport(calendar string, cfg *Config, cat *Catalog, st *TimeState) *TurnclockExport {
	exp := &TurnclockExport{
		Format:   ExportFormat,
		Version:  1,
		Calendar: calendar,
		Config:   cfg.Clone(),
	}
	for _, e := range cat.Events() {
		exp.Events = append(exp.Events, FormatEvent(cfg, e))
	}
	if st != nil {
		s := *st
		exp.State = &s
	}
	return exp
}

// Export returns the calendar's configuration, catalog and state.
func (s *calendarService) Export(ctx context.Context, calendar string) (*TurnclockExport, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, cat, st, err := s.loadAll(ctx, inst)
	if err != nil {
		return nil, err
	}
	return BuildExport(calendar, cfg, cat, &st), nil
}

// Import replaces a calendar's configuration and catalog with an export's.
// The time state is replaced only when the export carries one. Catalog lines
// that do not parse are skipped and reported.
func (s *calendarService) Import(ctx context.Context, calendar string, exp *TurnclockExport) (*ImportResult, error) {
	res, err := exp.toImportResult()
	if err != nil {
		return nil, err
	}
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := s.saveConfig(ctx, inst, res.Config); err != nil {
		return nil, err
	}
	cat := NewCatalog(res.events...)
	if err := s.saveEvents(ctx, inst, FormatEvents(res.Config, cat), cat.Len()); err != nil {
		return nil, err
	}
	inst.cache.catalog = cat
	inst.cache.state = nil
	if res.State != nil {
		st, _ := NormalizeState(res.Config, *res.State)
		if err := s.saveState(ctx, inst, res.Config, st); err != nil {
			return nil, err
		}
	}
	res.Calendar = calendar
	return res, nil
}

// toImportResult validates a native export.
func (exp *TurnclockExport) toImportResult() (*ImportResult, error) {
	if exp == nil || exp.Config == nil {
		return nil, apperror.NewValidation("export has no configuration")
	}
	if exp.Format != ExportFormat {
		return nil, apperror.NewValidation(fmt.Sprintf("unsupported export format %q", exp.Format))
	}
	cfg := exp.Config.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &ImportResult{Format: FormatNative, CalendarName: exp.Calendar, Config: cfg, State: exp.State}
	for i, line := range exp.Events {
		e, err := ParseEventLine(cfg, line)
		if err != nil {
			res.Issues = append(res.Issues, ParseIssue{Line: i + 1, Text: line, Reason: err.Error()})
			continue
		}
		res.events = append(res.events, e)
	}
	res.EventCount = len(res.events)
	return res, nil
}
