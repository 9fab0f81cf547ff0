package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
)

// stampLayout names backup files so they sort chronologically.
const stampLayout = "20060102T150405Z"

// Source is the part of the calendar engine a backup run needs.
type Source interface {
	Calendars(ctx context.Context) ([]string, error)
	Export(ctx context.Context, calendar string) (*calendar.TurnclockExport, error)
}

// Scheduler writes a compressed export of every calendar on a cron schedule
// and keeps the newest Keep files per calendar.
type Scheduler struct {
	src  Source
	dir  string
	keep int
	now  func() time.Time
	cron *cron.Cron
}

// NewScheduler prepares a scheduler for a standard five-field cron expression.
// Call Start to begin running it.
func NewScheduler(src Source, dir, schedule string, keep int) (*Scheduler, error) {
	s := &Scheduler{
		src:  src,
		dir:  dir,
		keep: keep,
		now:  time.Now,
		cron: cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running backup to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	written, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("scheduled backup failed", slog.Any("error", err))
		return
	}
	slog.Info("scheduled backup complete", slog.Int("files", len(written)), slog.String("dir", s.dir))
}

// RunOnce backs up every calendar now and returns the files written. A
// calendar that cannot be exported is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) ([]string, error) {
	names, err := s.src.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	stamp := s.now().UTC().Format(stampLayout)

	var written []string
	for _, name := range names {
		if !calendar.ValidCalendarName(name) {
			slog.Warn("skipping backup of oddly named calendar", slog.String("calendar", name))
			continue
		}
		exp, err := s.src.Export(ctx, name)
		if err != nil {
			slog.Warn("skipping backup of calendar",
				slog.String("calendar", name),
				slog.Any("error", err),
			)
			continue
		}
		data, err := json.MarshalIndent(exp, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encoding %s: %w", name, err)
		}
		path := filepath.Join(s.dir, name+"-"+stamp+".json.zst")
		if err := Write(path, data); err != nil {
			return written, err
		}
		written = append(written, path)

		if err := s.prune(name); err != nil {
			slog.Warn("pruning old backups failed",
				slog.String("calendar", name),
				slog.Any("error", err),
			)
		}
	}
	return written, nil
}

// prune removes all but the newest keep backups of one calendar.
func (s *Scheduler) prune(name string) error {
	if s.keep < 1 {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e.Name(), name+"-")
		if !ok {
			continue
		}
		stamp, ok := strings.CutSuffix(rest, ".json.zst")
		if !ok {
			continue
		}
		// Another calendar may share the prefix ("main" and "main-2").
		if _, err := time.Parse(stampLayout, stamp); err != nil {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) <= s.keep {
		return nil
	}
	sort.Strings(files)
	for _, f := range files[:len(files)-s.keep] {
		if err := os.Remove(filepath.Join(s.dir, f)); err != nil {
			return err
		}
	}
	return nil
}
