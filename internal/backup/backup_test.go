package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"format":"turnclock-export","events":["Bells: daily"]}`), 50)
	dir := t.TempDir()

	for _, name := range []string{"plain.json", "nested/packed.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Write(path, data); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("round trip changed the data")
			}
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "nested/packed.json.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, zstdMagic) || len(raw) >= len(data) {
		t.Errorf("zst backup is not compressed (%d bytes)", len(raw))
	}
}

func TestRead_Missing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// --- Scheduler ---

// mockSource is a Source with function fields.
type mockSource struct {
	calendarsFn func(ctx context.Context) ([]string, error)
	exportFn    func(ctx context.Context, name string) (*calendar.TurnclockExport, error)
}

func (m *mockSource) Calendars(ctx context.Context) ([]string, error) {
	return m.calendarsFn(ctx)
}

func (m *mockSource) Export(ctx context.Context, name string) (*calendar.TurnclockExport, error) {
	return m.exportFn(ctx, name)
}

func newSource(names ...string) *mockSource {
	return &mockSource{
		calendarsFn: func(context.Context) ([]string, error) { return names, nil },
		exportFn: func(_ context.Context, name string) (*calendar.TurnclockExport, error) {
			return calendar.BuildExport(name, calendar.DefaultSeed().Config, calendar.NewCatalog(), nil), nil
		},
	}
}

func newTestScheduler(t *testing.T, src Source, keep int) (*Scheduler, *time.Time) {
	t.Helper()
	s, err := NewScheduler(src, t.TempDir(), "0 4 * * *", keep)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	now := time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestScheduler_RunOnce(t *testing.T) {
	s, _ := newTestScheduler(t, newSource("main", "bad/name"), 0)

	written, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := filepath.Join(s.dir, "main-20240301T040000Z.json.zst")
	if len(written) != 1 || written[0] != want {
		t.Fatalf("written = %v, want [%s]", written, want)
	}

	data, err := Read(want)
	if err != nil {
		t.Fatal(err)
	}
	exp, format, err := calendar.DetectAndParse(data)
	if err != nil || format != calendar.FormatNative {
		t.Fatalf("DetectAndParse(backup) = %s, %v", format, err)
	}
	if exp.Calendar != "main" || exp.Format != calendar.ExportFormat {
		t.Errorf("backup = %s %s", exp.Format, exp.Calendar)
	}
}

func TestScheduler_SkipsFailedExports(t *testing.T) {
	src := newSource("broken", "main")
	ok := src.exportFn
	src.exportFn = func(ctx context.Context, name string) (*calendar.TurnclockExport, error) {
		if name == "broken" {
			return nil, errors.New("no configuration")
		}
		return ok(ctx, name)
	}
	s, _ := newTestScheduler(t, src, 0)

	written, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "main-20240301T040000Z.json.zst" {
		t.Errorf("written = %v", written)
	}
}

func TestScheduler_ListError(t *testing.T) {
	src := newSource()
	src.calendarsFn = func(context.Context) ([]string, error) { return nil, errors.New("store down") }
	s, _ := newTestScheduler(t, src, 0)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Error("expected an error when calendars cannot be listed")
	}
}

func TestScheduler_Prune(t *testing.T) {
	s, now := newTestScheduler(t, newSource("main"), 2)

	// A calendar sharing the prefix must not be pruned with "main".
	other := filepath.Join(s.dir, "main-2-20200101T000000Z.json.zst")
	if err := Write(other, []byte("{}")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		if _, err := s.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		*now = now.Add(24 * time.Hour)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "main-2024*.json.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("kept %d backups, want 2: %v", len(matches), matches)
	}
	if filepath.Base(matches[0]) != "main-20240303T040000Z.json.zst" ||
		filepath.Base(matches[1]) != "main-20240304T040000Z.json.zst" {
		t.Errorf("kept %v, want the two newest", matches)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("backup of another calendar was pruned: %v", err)
	}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewScheduler(newSource(), t.TempDir(), "every night", 1); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}
