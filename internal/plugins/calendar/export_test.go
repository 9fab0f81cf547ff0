package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/keyxmakerx/turnclock/internal/plugins/records"
)

func TestExportImport_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 0, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Advance(ctx, "main", Span{Days: 40, Hours: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddEvent(ctx, "main", "Council: weekly Wednesday at 18:00-20:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp, err := svc.Export(ctx, "main")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.Format != ExportFormat || exp.Version != 1 || exp.Calendar != "main" {
		t.Errorf("envelope = %s v%d %s", exp.Format, exp.Version, exp.Calendar)
	}
	data, err := json.Marshal(exp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, format, err := DetectAndParse(data)
	if err != nil {
		t.Fatalf("DetectAndParse: %v", err)
	}
	if format != FormatNative {
		t.Errorf("format = %s, want %s", format, FormatNative)
	}

	res, err := svc.Import(ctx, "copy", parsed)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Calendar != "copy" || res.EventCount != len(DefaultSeed().Events)+1 || len(res.Issues) != 0 {
		t.Errorf("import result = %+v", res)
	}

	want, _ := svc.Now(ctx, "main")
	got, err := svc.Now(ctx, "copy")
	if err != nil {
		t.Fatalf("Now(copy): %v", err)
	}
	if got.Date != want.Date || got.Time != want.Time || got.Progress != want.Progress {
		t.Errorf("copy is at %s %s, want %s %s", got.Date, got.Time, want.Date, want.Time)
	}
	events, err := svc.AllEvents(ctx, "copy")
	if err != nil {
		t.Fatalf("AllEvents(copy): %v", err)
	}
	if events[len(events)-1].Line != "Council: weekly Wednesday at 18:00-20:00" {
		t.Errorf("last event = %+v", events[len(events)-1])
	}
}

func TestImport_WithoutStateKeepsTime(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.SetDay(ctx, "main", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := BuildExport("other", testConfig(t), NewCatalog(), nil)
	exp.Events = []string{"Bells: daily", "Broken: annual 2/31"}
	res, err := svc.Import(ctx, "main", exp)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.EventCount != 1 || len(res.Issues) != 1 || res.Issues[0].Line != 2 {
		t.Errorf("import result = %+v", res)
	}
	now, err := svc.Now(ctx, "main")
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if now.DayNumber != 10 {
		t.Errorf("day = %d, want 10", now.DayNumber)
	}
}

func TestImport_Rejects(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Import(ctx, "main", nil)
	assertAppError(t, err, http.StatusUnprocessableEntity)

	exp := BuildExport("x", testConfig(t), NewCatalog(), nil)
	exp.Format = "something-else"
	_, err = svc.Import(ctx, "main", exp)
	assertAppError(t, err, http.StatusUnprocessableEntity)

	exp = BuildExport("x", testConfig(t), NewCatalog(), nil)
	exp.Config.Months = nil
	_, err = svc.Import(ctx, "main", exp)
	assertAppError(t, err, http.StatusUnprocessableEntity)

	exp = BuildExport("x", testConfig(t), NewCatalog(), nil)
	exp.Config.Weekdays[0] = "Sun, the First"
	_, err = svc.Import(ctx, "main", exp)
	assertAppError(t, err, http.StatusUnprocessableEntity)
	if got := repo.entry(records.Name("main", records.KindConfiguration)); strings.Contains(got, "the First") {
		t.Errorf("rejected import was written: %q", got)
	}
}

func TestDetectAndParse_SchemaErrors(t *testing.T) {
	exp := BuildExport("main", testConfig(t), NewCatalog(), nil)
	data, err := json.Marshal(exp)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	doc["config"].(map[string]any)["actions_per_day"] = 0
	doc["events"] = []any{strings.Repeat("x", 2000)}
	bad, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	_, format, err := DetectAndParse(bad)
	if format != FormatNative {
		t.Errorf("format = %s, want %s", format, FormatNative)
	}
	assertAppError(t, err, http.StatusUnprocessableEntity)
	msg := err.Error()
	for _, want := range []string{"/config/actions_per_day", "/events/0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestDetectAndParse_Unknown(t *testing.T) {
	for _, data := range []string{`{"hello": 1}`, `not json`, `[1, 2]`} {
		_, format, err := DetectAndParse([]byte(data))
		if format != FormatUnknown {
			t.Errorf("format(%s) = %s, want unknown", data, format)
		}
		assertAppError(t, err, http.StatusUnprocessableEntity)
	}
}

const simpleCalendarV1 = `{
  "calendar": {
    "name": "FSC.Calendars.Golarion",
    "currentDate": { "year": 4710, "month": 1, "day": 4, "seconds": 43200 },
    "leapYearSettings": { "rule": "custom", "customMod": 8 },
    "months": [
      { "name": "Abadius", "numberOfDays": 31, "numberOfLeapYearDays": 31 },
      { "name": "Calistril", "numberOfDays": 28, "numberOfLeapYearDays": 29 },
      { "name": "Pharast", "numberOfDays": 31, "numberOfLeapYearDays": 31 },
      { "name": "Gozran", "numberOfDays": 30, "numberOfLeapYearDays": 30 }
    ],
    "weekdays": [
      { "name": "Moonday" }, { "name": "Toilday" }, { "name": "Wealday" },
      { "name": "Oathday" }, { "name": "Fireday" }, { "name": "Starday" },
      { "name": "Sunday" }
    ],
    "seasons": [
      { "name": "Winter", "startingMonth": 0, "startingDay": 0 },
      { "name": "Summer", "startingMonth": 2, "startingDay": 0 }
    ],
    "time": { "hoursInDay": 24, "minutesInHour": 60 },
    "moons": [{ "name": "Somal" }]
  }
}`

func TestDetectAndParse_SimpleCalendar(t *testing.T) {
	exp, format, err := DetectAndParse([]byte(simpleCalendarV1))
	if err != nil {
		t.Fatalf("DetectAndParse: %v", err)
	}
	if format != FormatSimpleCal {
		t.Errorf("format = %s, want %s", format, FormatSimpleCal)
	}
	c := exp.Config
	if c.Name != "Golarion" || exp.Calendar != "Golarion" {
		t.Errorf("name = %q", c.Name)
	}
	if len(c.Months) != 4 || c.WeekLength() != 7 || c.HoursPerDay != 24 {
		t.Errorf("months %d, week %d, hours %d", len(c.Months), c.WeekLength(), c.HoursPerDay)
	}
	if c.LeapYear == nil || c.LeapYear.Frequency != 8 || c.LeapYear.Adjustments[1] != 1 {
		t.Errorf("leap rule = %+v", c.LeapYear)
	}
	if c.Epoch != (Date{Month: 0, Day: 1, Year: 4710}) {
		t.Errorf("epoch = %+v", c.Epoch)
	}
	if len(c.Seasons) != 2 ||
		c.Seasons[0] != (NamedRange{Name: "Winter", Start: 0, End: 0.4917}) ||
		c.Seasons[1] != (NamedRange{Name: "Summer", Start: 0.4917, End: 0}) {
		t.Errorf("seasons = %+v", c.Seasons)
	}
	if exp.State == nil || exp.State.DayNumber != 35 || exp.State.Progress != 100 || exp.State.Processed() {
		t.Errorf("state = %+v", exp.State)
	}

	// The converted export imports cleanly.
	svc, _, _ := newTestService()
	if _, err := svc.Import(context.Background(), "golarion", exp); err != nil {
		t.Fatalf("Import: %v", err)
	}
	now, err := svc.Now(context.Background(), "golarion")
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if now.ShortDate != "2/5/4710" || now.Time != "12:00" {
		t.Errorf("now = %s %s, want 2/5/4710 12:00", now.ShortDate, now.Time)
	}
}

func TestDetectAndParse_SimpleCalendarV2(t *testing.T) {
	data := `{"exportVersion": 2, "calendars": [{
		"name": "Tiny",
		"currentDate": { "year": 1, "month": 0, "day": 0, "seconds": 0 },
		"months": [{ "name": "Only", "numberOfDays": 10 }],
		"weekdays": [{ "name": "Day" }],
		"leapYear": { "rule": "none" },
		"time": { "hoursInDay": 10 }
	}]}`
	exp, format, err := DetectAndParse([]byte(data))
	if err != nil {
		t.Fatalf("DetectAndParse: %v", err)
	}
	if format != FormatSimpleCal {
		t.Errorf("format = %s", format)
	}
	if exp.Config.LeapYear != nil || len(exp.Config.Seasons) != 0 || exp.Config.HoursPerDay != 10 {
		t.Errorf("config = %+v", exp.Config)
	}
}

func TestDetectAndParse_SimpleCalendarBadSeason(t *testing.T) {
	data := `{"calendar": {
		"months": [{ "name": "Only", "numberOfDays": 10 }],
		"weekdays": [{ "name": "Day" }],
		"seasons": [{ "name": "Never", "startingMonth": 3, "startingDay": 0 }]
	}}`
	_, _, err := DetectAndParse([]byte(data))
	assertAppError(t, err, http.StatusUnprocessableEntity)
}
