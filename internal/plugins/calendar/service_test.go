package calendar

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/keyxmakerx/turnclock/internal/apperror"
	"github.com/keyxmakerx/turnclock/internal/plugins/records"
)

// --- Mocks ---

// mockRecordRepo implements records.Repository over a map. Set getFn or
// upsertFn to override a method.
type mockRecordRepo struct {
	mu   sync.Mutex
	recs map[string]records.Record

	getFn    func(ctx context.Context, name string) (*records.Record, error)
	upsertFn func(ctx context.Context, rec records.Record) error
	upserts  int
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{recs: make(map[string]records.Record)}
}

func (m *mockRecordRepo) Get(ctx context.Context, name string) (*records.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockRecordRepo) Upsert(ctx context.Context, rec records.Record) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Name] = rec
	m.upserts++
	return nil
}

func (m *mockRecordRepo) List(_ context.Context) ([]records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]records.Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRecordRepo) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, name)
	return nil
}

// entry returns the text of a record, or "" if absent.
func (m *mockRecordRepo) entry(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[name].Entry
}

func (m *mockRecordRepo) put(name, entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[name] = records.Record{Name: name, Entry: entry}
}

// recordingPublisher keeps every published result.
type recordingPublisher struct {
	mu      sync.Mutex
	results []*TurnResult
}

func (p *recordingPublisher) Publish(_ string, res *TurnResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

// --- Helpers ---

func newTestService() (*calendarService, *mockRecordRepo, *recordingPublisher) {
	repo := newMockRecordRepo()
	pub := &recordingPublisher{}
	svc := NewCalendarService(repo, nil).(*calendarService)
	svc.SetPublisher(pub)
	return svc, repo, pub
}

// assertAppError checks that err is an AppError with the expected HTTP code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func hasNotification(ns []Notification, typ NotificationType) bool {
	for _, n := range ns {
		if n.Type == typ {
			return true
		}
	}
	return false
}

func statusNames(evs []EventStatusView) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// --- ProcessTurn Tests ---

func TestProcessTurn_FirstTurnAnchors(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	res, err := svc.ProcessTurn(ctx, "main", 42, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionAnchored {
		t.Errorf("transition = %s, want anchored", res.Transition.Kind)
	}
	if res.Now.DayNumber != 0 || res.Now.Progress != 0 {
		t.Errorf("now = day %d progress %d, want 0/0", res.Now.DayNumber, res.Now.Progress)
	}
	if res.Now.LastTurn == nil || *res.Now.LastTurn != 42 {
		t.Errorf("last turn = %v, want 42", res.Now.LastTurn)
	}
	if !hasNotification(res.Notifications, NotifyEventDay) {
		t.Errorf("expected eventDay on the epoch, got %v", types(res.Notifications))
	}
	if pub.count() != 1 {
		t.Errorf("published %d results, want 1", pub.count())
	}

	for _, kind := range []string{records.KindConfiguration, records.KindEvents, records.KindCurrentTime} {
		if repo.entry(records.Name("main", kind)) == "" {
			t.Errorf("record %q was not written", kind)
		}
	}
	if got := repo.entry(records.Name("main", records.KindCurrentTime)); !strings.Contains(got, "Last Turn: 42") {
		t.Errorf("state record = %q", got)
	}
}

func TestProcessTurn_SameTurnIsIdempotent(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 5, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writes := repo.upserts

	res, err := svc.ProcessTurn(ctx, "main", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionUnchanged {
		t.Errorf("transition = %s, want unchanged", res.Transition.Kind)
	}
	if len(res.Notifications) != 0 {
		t.Errorf("notifications = %v, want none", types(res.Notifications))
	}
	if repo.upserts != writes {
		t.Errorf("repeat turn wrote %d records", repo.upserts-writes)
	}
	if pub.count() != 1 {
		t.Errorf("published %d results, want 1", pub.count())
	}
}

func TestProcessTurn_AdvancesAndRollsOver(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 0, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.ProcessTurn(ctx, "main", 250, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionAdvanced || res.Transition.Elapsed != 250 || !res.Transition.DayChanged {
		t.Errorf("transition = %+v", res.Transition)
	}
	if res.Now.DayNumber != 1 || res.Now.Progress != 50 {
		t.Errorf("now = day %d progress %d, want 1/50", res.Now.DayNumber, res.Now.Progress)
	}
	if res.Now.Date != "Tuesday, January 2, 2024" {
		t.Errorf("date = %q", res.Now.Date)
	}
	if !hasNotification(res.Notifications, NotifyDayChanged) {
		t.Errorf("expected dayChanged, got %v", types(res.Notifications))
	}
}

func TestProcessTurn_Reversal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 1000, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.ProcessTurn(ctx, "main", 450, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionReversed {
		t.Errorf("transition = %s, want reversed", res.Transition.Kind)
	}
	assertTypes(t, res.Notifications, NotifyTimeReversed)
	// Anchored at turn 1000 on day 0, so turn 450 is 550 turns earlier.
	if res.Now.DayNumber != -3 || res.Now.Progress != 50 {
		t.Errorf("now = day %d progress %d, want -3/50", res.Now.DayNumber, res.Now.Progress)
	}
}

func TestProcessTurn_RewindOneTurnAfterLateAnchor(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 1000, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.entry(records.Name("main", records.KindCurrentTime)); got != "Day: 0\nProgress: 0\nLast Turn: 1000\nTurn Offset: -1000\n" {
		t.Errorf("state record = %q", got)
	}
	res, err := svc.ProcessTurn(ctx, "main", 999, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Now.DayNumber != -1 || res.Now.Progress != 199 {
		t.Errorf("now = day %d progress %d, want -1/199", res.Now.DayNumber, res.Now.Progress)
	}

	// Forward again from the rewound position.
	res, err = svc.ProcessTurn(ctx, "main", 1001, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Now.DayNumber != 0 || res.Now.Progress != 1 {
		t.Errorf("now = day %d progress %d, want 0/1", res.Now.DayNumber, res.Now.Progress)
	}
}

func TestProcessTurn_ReversalAfterManualChange(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 10, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SetDay(ctx, "main", 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ProcessTurn(ctx, "main", 20, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.ProcessTurn(ctx, "main", 15, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionReversed {
		t.Errorf("transition = %s, want reversed", res.Transition.Kind)
	}
	if res.Now.DayNumber != 30 || res.Now.Progress != 5 {
		t.Errorf("now = day %d progress %d, want 30/5", res.Now.DayNumber, res.Now.Progress)
	}
}

func TestProcessTurn_NegativeTurn(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ProcessTurn(context.Background(), "main", -1, "")
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestProcessTurn_InvalidCalendarName(t *testing.T) {
	svc, _, _ := newTestService()
	for _, name := range []string{"", "../etc", "a/b", strings.Repeat("x", 65)} {
		_, err := svc.ProcessTurn(context.Background(), name, 1, "")
		assertAppError(t, err, http.StatusBadRequest)
	}
}

func TestProcessTurn_InlineCommand(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	res, err := svc.ProcessTurn(ctx, "main", 0, "We wait.\n/time set time 12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Command == nil || res.Command.Kind != CommandSetTime {
		t.Fatalf("command = %+v, want set_time", res.Command)
	}
	if res.Now.Time != "12:00" || res.Now.Progress != 100 {
		t.Errorf("now = %s (progress %d), want 12:00 (100)", res.Now.Time, res.Now.Progress)
	}
	if !strings.HasPrefix(res.Message, "Time set to 12:00.") {
		t.Errorf("message = %q", res.Message)
	}

	// The next turn continues from the commanded position.
	res, err = svc.ProcessTurn(ctx, "main", 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Now.Progress != 110 {
		t.Errorf("progress = %d, want 110", res.Now.Progress)
	}
}

func TestProcessTurn_InlineCommandOnUnchangedTurn(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 3, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.ProcessTurn(ctx, "main", 3, "/time advance 1 day")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionManual || !res.Transition.DayChanged {
		t.Errorf("transition = %+v, want manual with day change", res.Transition)
	}
	if res.Now.DayNumber != 1 {
		t.Errorf("day = %d, want 1", res.Now.DayNumber)
	}
}

func TestProcessTurn_RepeatedInlineCommandAppliesOnce(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 3, "/time advance 1 day"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writes, published := repo.upserts, pub.count()

	res, err := svc.ProcessTurn(ctx, "main", 3, "/TIME  advance 1 day")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Command != nil || res.Transition.Kind != TransitionUnchanged {
		t.Errorf("command = %+v, transition = %s; want none, unchanged", res.Command, res.Transition.Kind)
	}
	if res.Now.DayNumber != 1 {
		t.Errorf("day = %d, want 1", res.Now.DayNumber)
	}
	if repo.upserts != writes || pub.count() != published {
		t.Errorf("repeat wrote %d records and published %d results", repo.upserts-writes, pub.count()-published)
	}

	// A different command on the same turn still applies.
	res, err = svc.ProcessTurn(ctx, "main", 3, "/time advance 6 hours")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Command == nil || res.Now.Time != "06:00" {
		t.Errorf("command = %+v at %s, want applied at 06:00", res.Command, res.Now.Time)
	}

	// The next turn may repeat the first command.
	res, err = svc.ProcessTurn(ctx, "main", 4, "/time advance 1 day")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Command == nil || res.Now.DayNumber != 2 {
		t.Errorf("command = %+v on day %d, want applied on day 2", res.Command, res.Now.DayNumber)
	}
}

func TestProcessTurn_InvalidInlineCommandIsIgnored(t *testing.T) {
	svc, _, _ := newTestService()

	res, err := svc.ProcessTurn(context.Background(), "main", 0, "/time fly to the moon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Command != nil {
		t.Errorf("command = %+v, want nil", res.Command)
	}
	if !strings.Contains(res.Message, "unrecognized time command") {
		t.Errorf("message = %q", res.Message)
	}
	if res.Now.Progress != 0 {
		t.Errorf("progress = %d, want 0", res.Now.Progress)
	}
}

func TestProcessTurn_UnusableConfiguration(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()
	repo.put(records.Name("broken", records.KindConfiguration), "this is not a calendar")

	res, err := svc.ProcessTurn(ctx, "broken", 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if pub.count() != 0 {
		t.Errorf("published %d results, want 0", pub.count())
	}
	// The broken record is left for the user to fix.
	if got := repo.entry(records.Name("broken", records.KindConfiguration)); got != "this is not a calendar" {
		t.Errorf("configuration was overwritten: %q", got)
	}

	now, err := svc.Now(ctx, "broken")
	if err != nil || now != nil {
		t.Errorf("Now = %v, %v; want nil, nil", now, err)
	}
	_, err = svc.Advance(ctx, "broken", Span{Hours: 1})
	assertAppError(t, err, http.StatusServiceUnavailable)
}

func TestProcessTurn_RepositoryError(t *testing.T) {
	svc, repo, _ := newTestService()
	boom := errors.New("connection refused")
	repo.getFn = func(context.Context, string) (*records.Record, error) { return nil, boom }

	_, err := svc.ProcessTurn(context.Background(), "main", 1, "")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func TestProcessTurn_EventDayAnnouncedOncePerTurn(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	res, err := svc.ProcessTurn(ctx, "main", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasNotification(res.Notifications, NotifyEventDay) {
		t.Fatalf("expected eventDay on anchor")
	}

	res, err = svc.ExecuteCommand(ctx, "main", "advance 1 day")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasNotification(res.Notifications, NotifyEventDay) {
		t.Errorf("expected eventDay for a new day, got %v", types(res.Notifications))
	}

	// Back to day 0 during the same turn: already announced.
	res, err = svc.ExecuteCommand(ctx, "main", "rewind 1 day")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasNotification(res.Notifications, NotifyEventDay) {
		t.Errorf("eventDay repeated within a turn: %v", types(res.Notifications))
	}
	if !hasNotification(res.Notifications, NotifyDayChanged) {
		t.Errorf("expected dayChanged, got %v", types(res.Notifications))
	}

	// A new turn resets the guard.
	res, err = svc.ProcessTurn(ctx, "main", 200, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasNotification(res.Notifications, NotifyEventDay) {
		t.Errorf("expected eventDay after a new turn, got %v", types(res.Notifications))
	}
}

// --- Manual Time Tests ---

func TestSetDate_LeapDay(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SetDate(ctx, "main", Date{Month: 1, Day: 29, Year: 2023})
	assertAppError(t, err, http.StatusUnprocessableEntity)

	if _, err := svc.SetDate(ctx, "main", Date{Month: 1, Day: 28, Year: 2023}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.Advance(ctx, "main", Span{Days: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Now.ShortDate != "3/1/2023" {
		t.Errorf("day after 2/28/2023 = %s, want 3/1/2023", res.Now.ShortDate)
	}
	today, err := svc.TodayEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contains(statusNames(today), "Leap Day") {
		t.Errorf("Leap Day occurred in 2023: %v", statusNames(today))
	}

	if _, err := svc.SetDate(ctx, "main", Date{Month: 1, Day: 29, Year: 2024}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	today, err = svc.TodayEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(statusNames(today), "Leap Day") {
		t.Errorf("Leap Day missing on 2/29/2024: %v", statusNames(today))
	}
}

func TestAdvance_ZeroSpan(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Advance(context.Background(), "main", Span{})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestAdvance_KeepsLastProcessedTurn(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 7, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.Advance(ctx, "main", Span{Hours: 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Turn != 7 || res.Now.LastTurn == nil || *res.Now.LastTurn != 7 {
		t.Errorf("turn = %d, last turn = %v; want 7", res.Turn, res.Now.LastTurn)
	}
	if res.Now.Time != "06:00" || res.Now.TimeOfDay != "Morning" {
		t.Errorf("now = %s %s, want 06:00 Morning", res.Now.Time, res.Now.TimeOfDay)
	}
	if !hasNotification(res.Notifications, NotifyTimeOfDayChanged) {
		t.Errorf("expected timeOfDayChanged, got %v", types(res.Notifications))
	}
	if pub.count() != 2 {
		t.Errorf("published %d results, want 2", pub.count())
	}
}

func TestExecuteCommand_Invalid(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.ExecuteCommand(context.Background(), "main", "dance")
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestSetTime_OutOfRange(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.SetTime(context.Background(), "main", ClockTime{Hour: 24})
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

// --- Query Tests ---

func TestQueries_UpcomingDaysBounds(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for _, days := range []int{0, -5, MaxUpcomingDays + 1} {
		_, err := svc.UpcomingEvents(ctx, "main", days)
		assertAppError(t, err, http.StatusUnprocessableEntity)
	}

	up, err := svc.UpcomingEvents(ctx, "main", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Market Day falls on Saturday 1/6/2024, five days after the epoch.
	found := false
	for _, u := range up {
		if u.Name == "Market Day" {
			found = true
			if u.DaysUntil != 5 || u.DayNumber != 5 {
				t.Errorf("Market Day = %+v", u)
			}
		}
	}
	if !found {
		t.Errorf("Market Day missing from upcoming events")
	}
}

func TestQueries_ActiveAndEventDay(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SetTime(ctx, "main", ClockTime{Hour: 6, Minute: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, err := svc.ActiveEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := statusNames(active); len(got) != 1 || got[0] != "Morning Bells" {
		t.Errorf("active = %v, want [Morning Bells]", got)
	}
	ok, err := svc.IsEventDay(ctx, "main")
	if err != nil || !ok {
		t.Errorf("IsEventDay = %v, %v; want true", ok, err)
	}
	all, err := svc.AllEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != len(DefaultSeed().Events) {
		t.Errorf("catalog has %d events, want %d", len(all), len(DefaultSeed().Events))
	}
}

func TestCalendars(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for _, name := range []string{"beta", "alpha"} {
		if err := svc.EnsureDefaults(ctx, name); err != nil {
			t.Fatalf("EnsureDefaults(%s): %v", name, err)
		}
	}
	got, err := svc.Calendars(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, ",") != "alpha,beta" {
		t.Errorf("calendars = %v", got)
	}
}

func TestEnsureDefaults_KeepsExistingRecords(t *testing.T) {
	svc, repo, _ := newTestService()
	custom := FormatConfig(testConfig(t))
	custom = strings.Replace(custom, "Actions Per Day: 200", "Actions Per Day: 50", 1)
	repo.put(records.Name("main", records.KindConfiguration), custom)

	if err := svc.EnsureDefaults(context.Background(), "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.entry(records.Name("main", records.KindConfiguration)); got != custom {
		t.Errorf("configuration was overwritten")
	}
	if repo.entry(records.Name("main", records.KindEvents)) == "" {
		t.Errorf("missing events record was not written")
	}
	now, err := svc.Now(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.ActionsPerDay != 50 {
		t.Errorf("actions per day = %d, want 50", now.ActionsPerDay)
	}
}

func TestDeleteCalendar(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 9, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SetDay(ctx, "main", 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ProcessTurn(ctx, "other", 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteCalendar(ctx, "main"); err != nil {
		t.Fatalf("DeleteCalendar: %v", err)
	}
	for _, kind := range []string{records.KindConfiguration, records.KindEvents, records.KindCurrentTime} {
		if got := repo.entry(records.Name("main", kind)); got != "" {
			t.Errorf("record %q survived: %q", kind, got)
		}
	}
	names, err := svc.Calendars(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "other" {
		t.Errorf("calendars = %v, want [other]", names)
	}

	// Nothing cached survives: the next turn anchors a fresh calendar.
	res, err := svc.ProcessTurn(ctx, "main", 9, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transition.Kind != TransitionAnchored || res.Now.DayNumber != 0 {
		t.Errorf("after delete: %s on day %d, want anchored on day 0", res.Transition.Kind, res.Now.DayNumber)
	}

	err = svc.DeleteCalendar(ctx, "missing")
	assertAppError(t, err, http.StatusNotFound)
	err = svc.DeleteCalendar(ctx, "../main")
	assertAppError(t, err, http.StatusBadRequest)
}

func TestInvalidate_RereadsExternalEdits(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ProcessTurn(ctx, "main", 1, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.put(records.Name("main", records.KindCurrentTime), "Day: 5\nProgress: 0\nLast Turn: 1\n")

	now, err := svc.Now(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.DayNumber != 0 {
		t.Errorf("cached day = %d, want 0 before invalidation", now.DayNumber)
	}

	svc.Invalidate("main")
	now, err = svc.Now(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.DayNumber != 5 {
		t.Errorf("day = %d, want 5 after invalidation", now.DayNumber)
	}
}

func TestLoadState_NormalisesHandEdits(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureDefaults(ctx, "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stateName := records.Name("main", records.KindCurrentTime)
	repo.put(stateName, "Day: 0\nProgress: 450\nLast Turn: 3\n")

	now, err := svc.Now(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.DayNumber != 2 || now.Progress != 50 {
		t.Errorf("now = day %d progress %d, want 2/50", now.DayNumber, now.Progress)
	}
	if got := repo.entry(stateName); got != "Day: 2\nProgress: 50\nLast Turn: 3\n" {
		t.Errorf("state record = %q", got)
	}
}

func TestLoadState_UnreadableStartsFresh(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.put(records.Name("main", records.KindCurrentTime), "Day: soon\n")

	now, err := svc.Now(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.DayNumber != 0 || now.Progress != 0 || now.LastTurn != nil {
		t.Errorf("now = %+v, want a fresh state", now)
	}
}

// --- Reconfiguration Tests ---

func TestSetActionsPerDay_RescalesProgress(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SetTime(ctx, "main", ClockTime{Hour: 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now, err := svc.SetActionsPerDay(ctx, "main", 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.Progress != 200 || now.Time != "12:00" || now.ActionsPerDay != 400 {
		t.Errorf("now = progress %d at %s with %d actions", now.Progress, now.Time, now.ActionsPerDay)
	}
	if got := repo.entry(records.Name("main", records.KindConfiguration)); !strings.Contains(got, "Actions Per Day: 400") {
		t.Errorf("configuration record not updated: %q", got)
	}

	_, err = svc.SetActionsPerDay(ctx, "main", 0)
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestSetHoursPerDay_KeepsProgress(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SetTime(ctx, "main", ClockTime{Hour: 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now, err := svc.SetHoursPerDay(ctx, "main", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if now.Progress != 100 || now.Time != "15:00" || now.HoursPerDay != 30 {
		t.Errorf("now = progress %d at %s with %d hours", now.Progress, now.Time, now.HoursPerDay)
	}

	_, err = svc.SetHoursPerDay(ctx, "main", -2)
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestAddEvent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	v, err := svc.AddEvent(ctx, "main", "Council Meeting: weekly Wednesday at 18:00-20:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindWeekly || v.Line != "Council Meeting: weekly Wednesday at 18:00-20:00" {
		t.Errorf("event = %+v", v)
	}
	entry := repo.entry(records.Name("main", records.KindEvents))
	if !strings.HasSuffix(entry, "Council Meeting: weekly Wednesday at 18:00-20:00\n") {
		t.Errorf("events record = %q", entry)
	}

	_, err = svc.AddEvent(ctx, "main", "Council Meeting: weekly Wednesday at 18:00-20:00")
	assertAppError(t, err, http.StatusConflict)

	_, err = svc.AddEvent(ctx, "main", "Council Meeting: weekly Caturday")
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestAddEvent_ReadFailureLeavesCatalogUnchanged(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureDefaults(ctx, "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AllEvents(ctx, "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Everything but the raw events record is cached by now.
	boom := errors.New("connection reset")
	repo.getFn = func(context.Context, string) (*records.Record, error) { return nil, boom }
	if _, err := svc.AddEvent(ctx, "main", "Harvest Moon: annual 9/15"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}

	repo.getFn = nil
	all, err := svc.AllEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range all {
		if e.Name == "Harvest Moon" {
			t.Errorf("event from a failed add is still listed")
		}
	}
}

func TestRemoveEvent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	if err := svc.EnsureDefaults(ctx, "main"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	evName := records.Name("main", records.KindEvents)
	repo.put(evName, "# festivals\nFair: annual 6/1\nnot an event\nFair: annual 9/1\nBells: daily\n")

	n, err := svc.RemoveEvent(ctx, "main", "fair")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if got := repo.entry(evName); got != "# festivals\nnot an event\nBells: daily\n" {
		t.Errorf("events record = %q", got)
	}
	all, err := svc.AllEvents(ctx, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Bells" {
		t.Errorf("catalog = %+v", all)
	}

	_, err = svc.RemoveEvent(ctx, "main", "Fair")
	assertAppError(t, err, http.StatusNotFound)
}
