package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/keyxmakerx/turnclock/internal/apperror"
	"github.com/keyxmakerx/turnclock/internal/plugins/records"
	"github.com/keyxmakerx/turnclock/internal/sanitize"
)

// Publisher receives the result of every processed turn and mutation that
// changed something. Implementations must not block.
type Publisher interface {
	Publish(calendar string, res *TurnResult)
}

// CalendarService defines the calendar engine's operations. Every method is
// scoped to a named calendar instance whose records live in the store.
type CalendarService interface {
	// Turns.
	EnsureDefaults(ctx context.Context, calendar string) error
	ProcessTurn(ctx context.Context, calendar string, turn int, input string) (*TurnResult, error)

	// Queries. A calendar without a usable configuration yields nil results.
	Now(ctx context.Context, calendar string) (*NowView, error)
	TodayEvents(ctx context.Context, calendar string) ([]EventStatusView, error)
	ActiveEvents(ctx context.Context, calendar string) ([]EventStatusView, error)
	UpcomingEvents(ctx context.Context, calendar string, days int) ([]UpcomingView, error)
	AllEvents(ctx context.Context, calendar string) ([]EventView, error)
	IsEventDay(ctx context.Context, calendar string) (bool, error)
	Calendars(ctx context.Context) ([]string, error)
	Invalidate(calendar string)
	DeleteCalendar(ctx context.Context, calendar string) error

	// Manual time control.
	Advance(ctx context.Context, calendar string, span Span) (*TurnResult, error)
	SetTime(ctx context.Context, calendar string, t ClockTime) (*TurnResult, error)
	SetDay(ctx context.Context, calendar string, dayNumber int) (*TurnResult, error)
	SetDate(ctx context.Context, calendar string, d Date) (*TurnResult, error)
	ExecuteCommand(ctx context.Context, calendar string, text string) (*TurnResult, error)

	// Reconfiguration.
	SetActionsPerDay(ctx context.Context, calendar string, n int) (*NowView, error)
	SetHoursPerDay(ctx context.Context, calendar string, n int) (*NowView, error)
	AddEvent(ctx context.Context, calendar string, line string) (*EventView, error)
	RemoveEvent(ctx context.Context, calendar string, name string) (int, error)

	// Export and import.
	Export(ctx context.Context, calendar string) (*TurnclockExport, error)
	Import(ctx context.Context, calendar string, exp *TurnclockExport) (*ImportResult, error)

	SetPublisher(p Publisher)
}

// instance is one calendar's lock and cache. Turns and mutations on the same
// calendar never interleave.
type instance struct {
	name  string
	mu    sync.Mutex
	cache *TurnCache
}

// calendarService is the default CalendarService implementation.
type calendarService struct {
	repo records.Repository
	seed *Seed

	mu        sync.Mutex
	instances map[string]*instance
	publisher Publisher
}

// NewCalendarService creates a CalendarService backed by the given record
// store. seed is written for calendars that have no configuration yet; nil
// uses the built-in default.
func NewCalendarService(repo records.Repository, seed *Seed) CalendarService {
	if seed == nil {
		seed = DefaultSeed()
	}
	return &calendarService{
		repo:      repo,
		seed:      seed,
		instances: make(map[string]*instance),
	}
}

// SetPublisher registers the receiver of turn results. Called after the
// websocket hub is wired.
func (s *calendarService) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.publisher = p
	s.mu.Unlock()
}

var calendarNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidCalendarName reports whether name can be used as a calendar instance
// name (and therefore as a record name prefix).
func ValidCalendarName(name string) bool {
	return calendarNameRe.MatchString(name)
}

// instance returns the named calendar's instance, creating it on first use.
func (s *calendarService) instance(name string) (*instance, error) {
	if !ValidCalendarName(name) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid calendar name %q", name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	if !ok {
		inst = &instance{name: name, cache: NewTurnCache()}
		s.instances[name] = inst
	}
	return inst, nil
}

func (s *calendarService) publish(res *TurnResult) {
	s.mu.Lock()
	p := s.publisher
	s.mu.Unlock()
	if p != nil && res != nil {
		p.Publish(res.Calendar, res)
	}
}

// --- Record loading ---

// EnsureDefaults writes the seed configuration and event catalog for a
// calendar whose records are absent. Existing records, valid or not, are
// never overwritten.
func (s *calendarService) EnsureDefaults(ctx context.Context, calendar string) error {
	inst, err := s.instance(calendar)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	_, err = s.ensureDefaults(ctx, inst)
	return err
}

// ensureDefaults writes missing records and reports whether the
// configuration record was written.
func (s *calendarService) ensureDefaults(ctx context.Context, inst *instance) (bool, error) {
	wroteConfig := false
	cfgName := records.Name(inst.name, records.KindConfiguration)
	rec, err := s.repo.Get(ctx, cfgName)
	if err != nil {
		return false, fmt.Errorf("load configuration: %w", err)
	}
	if rec == nil {
		err := s.repo.Upsert(ctx, records.Record{
			Name:        cfgName,
			Entry:       s.seed.ConfigEntry(),
			Description: describeConfig(s.seed.Config),
		})
		if err != nil {
			return false, fmt.Errorf("write default configuration: %w", err)
		}
		wroteConfig = true
		slog.Info("wrote default calendar configuration", slog.String("calendar", inst.name))
	}

	evName := records.Name(inst.name, records.KindEvents)
	rec, err = s.repo.Get(ctx, evName)
	if err != nil {
		return wroteConfig, fmt.Errorf("load events: %w", err)
	}
	if rec == nil {
		err := s.repo.Upsert(ctx, records.Record{
			Name:        evName,
			Entry:       s.seed.EventsEntry(),
			Description: fmt.Sprintf("%d events", len(s.seed.Events)),
		})
		if err != nil {
			return wroteConfig, fmt.Errorf("write default events: %w", err)
		}
		slog.Info("wrote default calendar events", slog.String("calendar", inst.name))
	}
	return wroteConfig, nil
}

func describeConfig(c *Config) string {
	name := c.Name
	if name == "" {
		name = "Calendar"
	}
	return sanitize.Truncate(fmt.Sprintf("%s: %d months, %d-day week, %d actions per day",
		name, len(c.Months), c.WeekLength(), c.ActionsPerDay), 255)
}

// loadConfig returns the cached configuration, loading it (and writing
// defaults when absent) on a cache miss. A nil configuration with a nil
// error means the record exists but is unusable.
func (s *calendarService) loadConfig(ctx context.Context, inst *instance) (*Config, error) {
	if inst.cache.config != nil {
		return inst.cache.config, nil
	}
	if inst.cache.unusable {
		return nil, nil
	}
	if _, err := s.ensureDefaults(ctx, inst); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, records.Name(inst.name, records.KindConfiguration))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if rec == nil {
		inst.cache.unusable = true
		return nil, nil
	}
	cfg, err := ParseConfig(rec.Entry)
	if err != nil {
		slog.Warn("calendar configuration unusable",
			slog.String("calendar", inst.name),
			slog.String("error", apperror.SafeMessage(err)),
		)
		inst.cache.unusable = true
		return nil, nil
	}
	inst.cache.config = cfg
	return cfg, nil
}

// loadCatalog returns the cached event catalog. Malformed lines are dropped
// and logged.
func (s *calendarService) loadCatalog(ctx context.Context, inst *instance, cfg *Config) (*Catalog, error) {
	if inst.cache.catalog != nil {
		return inst.cache.catalog, nil
	}
	rec, err := s.repo.Get(ctx, records.Name(inst.name, records.KindEvents))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	cat := NewCatalog()
	var issues []ParseIssue
	if rec != nil {
		cat, issues = ParseEvents(cfg, rec.Entry)
	}
	for _, is := range issues {
		slog.Debug("dropped event line",
			slog.String("calendar", inst.name),
			slog.Int("line", is.Line),
			slog.String("text", is.Text),
			slog.String("reason", is.Reason),
		)
	}
	inst.cache.catalog = cat
	inst.cache.issues = issues
	return cat, nil
}

// loadState returns the cached time state. A missing record yields a fresh
// state; an unreadable one is replaced by a fresh state. Hand-edited values
// are normalised and written back.
func (s *calendarService) loadState(ctx context.Context, inst *instance, cfg *Config) (TimeState, error) {
	if inst.cache.state != nil {
		return *inst.cache.state, nil
	}
	rec, err := s.repo.Get(ctx, records.Name(inst.name, records.KindCurrentTime))
	if err != nil {
		return TimeState{}, fmt.Errorf("load time state: %w", err)
	}
	st := NewTimeState()
	if rec != nil {
		parsed, err := ParseState(rec.Entry)
		if err != nil {
			slog.Warn("time state unreadable, starting fresh",
				slog.String("calendar", inst.name),
				slog.String("error", apperror.SafeMessage(err)),
			)
		} else {
			st = parsed
		}
	}
	if norm, changed := NormalizeState(cfg, st); changed {
		slog.Warn("normalised hand-edited time state",
			slog.String("calendar", inst.name),
			slog.String("before", strings.ReplaceAll(FormatState(st), "\n", " ")),
			slog.String("after", strings.ReplaceAll(FormatState(norm), "\n", " ")),
		)
		st = norm
		if err := s.saveState(ctx, inst, cfg, st); err != nil {
			return TimeState{}, err
		}
	}
	inst.cache.state = &st
	return st, nil
}

func (s *calendarService) saveState(ctx context.Context, inst *instance, cfg *Config, st TimeState) error {
	err := s.repo.Upsert(ctx, records.Record{
		Name:        records.Name(inst.name, records.KindCurrentTime),
		Entry:       FormatState(st),
		Description: sanitize.Truncate(DescribeState(cfg, st), 255),
	})
	if err != nil {
		return fmt.Errorf("save time state: %w", err)
	}
	inst.cache.state = &st
	return nil
}

func (s *calendarService) saveConfig(ctx context.Context, inst *instance, cfg *Config) error {
	err := s.repo.Upsert(ctx, records.Record{
		Name:        records.Name(inst.name, records.KindConfiguration),
		Entry:       FormatConfig(cfg),
		Description: describeConfig(cfg),
	})
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	inst.cache.config = cfg
	inst.cache.unusable = false
	return nil
}

// --- Turns ---

// ProcessTurn reconciles a calendar with the host's turn counter, applies a
// /time command found in input, and reports what changed. It returns nil
// without error when the calendar has no usable configuration.
func (s *calendarService) ProcessTurn(ctx context.Context, calendar string, turn int, input string) (*TurnResult, error) {
	if turn < 0 {
		return nil, apperror.NewValidation("turn must not be negative")
	}
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.cache.BeginTurn(turn)
	cfg, err := s.loadConfig(ctx, inst)
	if err != nil || cfg == nil {
		return nil, err
	}
	cat, err := s.loadCatalog(ctx, inst, cfg)
	if err != nil {
		return nil, err
	}
	prev, err := s.loadState(ctx, inst, cfg)
	if err != nil {
		return nil, err
	}

	next, tr := Reconcile(cfg, prev, turn)
	res := &TurnResult{Calendar: calendar, Turn: turn}
	applied := ""

	if text, ok := ExtractCommand(input); ok {
		cmd, err := ParseCommand(text)
		if err == nil && inst.cache.CommandApplied(text) {
			slog.Debug("time command already applied this turn",
				slog.String("calendar", calendar),
				slog.Int("turn", turn),
				slog.String("command", text),
			)
		} else if err == nil {
			var moved TimeState
			moved, _, err = cmd.Apply(cfg, next)
			if err == nil {
				next = moved
				applied = text
				res.Command = &cmd
				res.Message = cmd.Describe(cfg, next)
				if tr.Kind == TransitionUnchanged {
					tr.Kind = TransitionManual
				}
			}
		}
		if err != nil {
			slog.Debug("ignored time command",
				slog.String("calendar", calendar),
				slog.String("command", text),
				slog.String("error", apperror.SafeMessage(err)),
			)
			res.Message = apperror.SafeMessage(err)
		}
	}
	tr.DayChanged = next.DayNumber != prev.DayNumber

	notes := Dispatch(cfg, cat, TakeSnapshot(cfg, prev), TakeSnapshot(cfg, next), tr)
	notes = inst.cache.filterEventDay(notes, next.DayNumber)

	if next != prev {
		if err := s.saveState(ctx, inst, cfg, next); err != nil {
			return nil, err
		}
	}
	if applied != "" {
		inst.cache.MarkCommand(applied)
	}

	res.Transition = tr
	res.Notifications = notes
	res.Now = buildNow(calendar, cfg, next)
	if len(notes) > 0 || next != prev {
		s.publish(res)
	}
	return res, nil
}

// --- Manual time control ---

// Advance moves a calendar by a span; negative spans rewind.
func (s *calendarService) Advance(ctx context.Context, calendar string, span Span) (*TurnResult, error) {
	if span.IsZero() {
		return nil, apperror.NewValidation("advance requires a non-zero amount")
	}
	return s.apply(ctx, calendar, Command{Kind: CommandAdvance, Span: span})
}

// SetTime moves a calendar to a time of day on its current day.
func (s *calendarService) SetTime(ctx context.Context, calendar string, t ClockTime) (*TurnResult, error) {
	return s.apply(ctx, calendar, Command{Kind: CommandSetTime, Time: t})
}

// SetDay moves a calendar to an absolute day-number.
func (s *calendarService) SetDay(ctx context.Context, calendar string, dayNumber int) (*TurnResult, error) {
	return s.apply(ctx, calendar, Command{Kind: CommandSetDay, Day: dayNumber})
}

// SetDate moves a calendar to a civil date. d.Month is 0-based.
func (s *calendarService) SetDate(ctx context.Context, calendar string, d Date) (*TurnResult, error) {
	return s.apply(ctx, calendar, Command{Kind: CommandSetDate, Date: d})
}

// ExecuteCommand parses and applies a time command.
func (s *calendarService) ExecuteCommand(ctx context.Context, calendar string, text string) (*TurnResult, error) {
	cmd, err := ParseCommand(text)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, calendar, cmd)
}

// apply runs a manual command outside turn processing. The last processed
// turn is left alone, so the next turn continues from the new position.
func (s *calendarService) apply(ctx context.Context, calendar string, cmd Command) (*TurnResult, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, cat, prev, err := s.loadAll(ctx, inst)
	if err != nil {
		return nil, err
	}
	next, tr, err := cmd.Apply(cfg, prev)
	if err != nil {
		return nil, err
	}

	notes := Dispatch(cfg, cat, TakeSnapshot(cfg, prev), TakeSnapshot(cfg, next), tr)
	notes = inst.cache.filterEventDay(notes, next.DayNumber)
	if next != prev {
		if err := s.saveState(ctx, inst, cfg, next); err != nil {
			return nil, err
		}
	}
	slog.Debug("manual time change",
		slog.String("calendar", calendar),
		slog.String("command", string(cmd.Kind)),
		slog.Int("day", next.DayNumber),
		slog.Int("progress", next.Progress),
	)

	res := &TurnResult{
		Calendar:      calendar,
		Turn:          next.LastProcessedTurn,
		Transition:    tr,
		Notifications: notes,
		Now:           buildNow(calendar, cfg, next),
		Command:       &cmd,
		Message:       cmd.Describe(cfg, next),
	}
	s.publish(res)
	return res, nil
}

// loadAll loads configuration, catalog and state for a mutation or query.
// A calendar without a usable configuration is reported as unavailable.
func (s *calendarService) loadAll(ctx context.Context, inst *instance) (*Config, *Catalog, TimeState, error) {
	cfg, err := s.loadConfig(ctx, inst)
	if err != nil {
		return nil, nil, TimeState{}, err
	}
	if cfg == nil {
		return nil, nil, TimeState{}, apperror.NewUnavailable(
			fmt.Sprintf("calendar %q has no usable configuration", inst.name))
	}
	cat, err := s.loadCatalog(ctx, inst, cfg)
	if err != nil {
		return nil, nil, TimeState{}, err
	}
	st, err := s.loadState(ctx, inst, cfg)
	if err != nil {
		return nil, nil, TimeState{}, err
	}
	return cfg, cat, st, nil
}

// query runs fn under the instance lock with everything loaded. It returns
// ok=false when the calendar has no usable configuration.
func (s *calendarService) query(ctx context.Context, calendar string, fn func(cfg *Config, cat *Catalog, st TimeState)) (bool, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return false, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, cat, st, err := s.loadAll(ctx, inst)
	if apperror.IsType(err, "calendar_unavailable") {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	fn(cfg, cat, st)
	return true, nil
}

// --- Queries ---

// Now returns the calendar's current date and time.
func (s *calendarService) Now(ctx context.Context, calendar string) (*NowView, error) {
	var out *NowView
	_, err := s.query(ctx, calendar, func(cfg *Config, _ *Catalog, st TimeState) {
		out = buildNow(calendar, cfg, st)
	})
	return out, err
}

// TodayEvents returns every event occurring today with its window status.
func (s *calendarService) TodayEvents(ctx context.Context, calendar string) ([]EventStatusView, error) {
	var out []EventStatusView
	_, err := s.query(ctx, calendar, func(cfg *Config, cat *Catalog, st TimeState) {
		for _, es := range StatusesOnDay(cfg, cat, st) {
			out = append(out, EventStatusView{EventView: buildEventView(cfg, es.Event), Status: es.Status})
		}
	})
	return out, err
}

// ActiveEvents returns the timed events whose window is open right now.
func (s *calendarService) ActiveEvents(ctx context.Context, calendar string) ([]EventStatusView, error) {
	var out []EventStatusView
	_, err := s.query(ctx, calendar, func(cfg *Config, cat *Catalog, st TimeState) {
		for _, es := range ActiveTimedEvents(cfg, cat, st) {
			out = append(out, EventStatusView{EventView: buildEventView(cfg, es.Event), Status: es.Status})
		}
	})
	return out, err
}

// MaxUpcomingDays bounds the look-ahead of UpcomingEvents.
const MaxUpcomingDays = 3660

// UpcomingEvents lists events starting within the next days days.
func (s *calendarService) UpcomingEvents(ctx context.Context, calendar string, days int) ([]UpcomingView, error) {
	if days < 1 || days > MaxUpcomingDays {
		return nil, apperror.NewValidation(fmt.Sprintf("days must be between 1 and %d", MaxUpcomingDays))
	}
	var out []UpcomingView
	_, err := s.query(ctx, calendar, func(cfg *Config, cat *Catalog, st TimeState) {
		for _, u := range UpcomingEvents(cfg, cat, st.DayNumber, days) {
			out = append(out, UpcomingView{
				EventView: buildEventView(cfg, u.Event),
				Date:      FormatDate(cfg, u.Date, cfg.DayOfWeek(u.DayNumber)),
				DayNumber: u.DayNumber,
				DaysUntil: u.DaysUntil,
			})
		}
	})
	return out, err
}

// AllEvents returns the whole catalog.
func (s *calendarService) AllEvents(ctx context.Context, calendar string) ([]EventView, error) {
	var out []EventView
	_, err := s.query(ctx, calendar, func(cfg *Config, cat *Catalog, _ TimeState) {
		for _, e := range cat.Events() {
			out = append(out, buildEventView(cfg, e))
		}
	})
	return out, err
}

// IsEventDay reports whether any event occurs today.
func (s *calendarService) IsEventDay(ctx context.Context, calendar string) (bool, error) {
	var out bool
	_, err := s.query(ctx, calendar, func(cfg *Config, cat *Catalog, st TimeState) {
		out = len(EventsOnDay(cfg, cat, st.DayNumber)) > 0
	})
	return out, err
}

// Calendars lists the calendar instances that have a configuration record.
func (s *calendarService) Calendars(ctx context.Context) ([]string, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	suffix := "/" + records.KindConfiguration
	var out []string
	for _, r := range recs {
		if name, ok := strings.CutSuffix(r.Name, suffix); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops a calendar's cached records so the next call rereads the
// store. Use after editing records outside this service.
func (s *calendarService) Invalidate(calendar string) {
	inst, err := s.instance(calendar)
	if err != nil {
		return
	}
	inst.mu.Lock()
	inst.cache.Invalidate()
	inst.mu.Unlock()
}

// DeleteCalendar removes a calendar's records. The configuration goes last
// so a failed delete can be retried. A later turn for the same name starts
// over from the seed.
func (s *calendarService) DeleteCalendar(ctx context.Context, calendar string) error {
	inst, err := s.instance(calendar)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	rec, err := s.repo.Get(ctx, records.Name(calendar, records.KindConfiguration))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if rec == nil {
		return apperror.NewNotFound(fmt.Sprintf("calendar %q not found", calendar))
	}

	inst.cache.Invalidate()
	for _, kind := range []string{records.KindCurrentTime, records.KindEvents, records.KindConfiguration} {
		if err := s.repo.Delete(ctx, records.Name(calendar, kind)); err != nil {
			return err
		}
	}
	inst.cache = NewTurnCache()
	slog.Info("calendar deleted", slog.String("calendar", calendar))
	return nil
}

// --- Reconfiguration ---

// SetActionsPerDay changes how many turns make a day. The current progress
// is rescaled so the time of day is kept.
func (s *calendarService) SetActionsPerDay(ctx context.Context, calendar string, n int) (*NowView, error) {
	if n < 1 {
		return nil, apperror.NewValidation("actions per day must be at least 1")
	}
	return s.reconfigure(ctx, calendar, func(cfg *Config, st TimeState) (*Config, TimeState, error) {
		next := cfg.Clone()
		next.ActionsPerDay = n
		return next, Rescale(st, cfg.ActionsPerDay, n), nil
	})
}

// SetHoursPerDay changes the length of the clock day. Progress is a
// fraction of the day, so it is kept as is.
func (s *calendarService) SetHoursPerDay(ctx context.Context, calendar string, n int) (*NowView, error) {
	if n < 1 {
		return nil, apperror.NewValidation("hours per day must be at least 1")
	}
	return s.reconfigure(ctx, calendar, func(cfg *Config, st TimeState) (*Config, TimeState, error) {
		next := cfg.Clone()
		next.HoursPerDay = n
		return next, st, nil
	})
}

func (s *calendarService) reconfigure(ctx context.Context, calendar string, fn func(*Config, TimeState) (*Config, TimeState, error)) (*NowView, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, _, st, err := s.loadAll(ctx, inst)
	if err != nil {
		return nil, err
	}
	nextCfg, nextSt, err := fn(cfg, st)
	if err != nil {
		return nil, err
	}
	if err := nextCfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.saveConfig(ctx, inst, nextCfg); err != nil {
		return nil, err
	}
	// Event time ranges are validated against the day length, so reparse.
	inst.cache.catalog = nil
	if nextSt != st {
		if err := s.saveState(ctx, inst, nextCfg, nextSt); err != nil {
			return nil, err
		}
	}
	slog.Info("calendar reconfigured",
		slog.String("calendar", calendar),
		slog.Int("actions_per_day", nextCfg.ActionsPerDay),
		slog.Int("hours_per_day", nextCfg.HoursPerDay),
	)
	return buildNow(calendar, nextCfg, nextSt), nil
}

// AddEvent parses one catalog line and appends it to the events record.
func (s *calendarService) AddEvent(ctx context.Context, calendar string, line string) (*EventView, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, cat, _, err := s.loadAll(ctx, inst)
	if err != nil {
		return nil, err
	}
	e, err := ParseEventLine(cfg, line)
	if err != nil {
		return nil, err
	}
	if !cat.Add(e) {
		return nil, apperror.NewConflict(fmt.Sprintf("event %q already exists", e.Name))
	}

	entry, err := s.eventsEntry(ctx, inst)
	if err != nil {
		inst.cache.catalog = nil
		return nil, err
	}
	if entry != "" && !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	entry += FormatEvent(cfg, e) + "\n"
	if err := s.saveEvents(ctx, inst, entry, cat.Len()); err != nil {
		inst.cache.catalog = nil
		return nil, err
	}
	v := buildEventView(cfg, e)
	return &v, nil
}

// RemoveEvent deletes every catalog line defining an event with the given
// name. Comments and unparseable lines are kept.
func (s *calendarService) RemoveEvent(ctx context.Context, calendar string, name string) (int, error) {
	inst, err := s.instance(calendar)
	if err != nil {
		return 0, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	cfg, cat, _, err := s.loadAll(ctx, inst)
	if err != nil {
		return 0, err
	}
	entry, err := s.eventsEntry(ctx, inst)
	if err != nil {
		return 0, err
	}

	var kept []string
	removed := 0
	for _, line := range strings.Split(entry, "\n") {
		if e, err := ParseEventLine(cfg, line); err == nil && strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	if removed == 0 {
		return 0, apperror.NewNotFound(fmt.Sprintf("event %q not found", name))
	}
	cat.Remove(name)
	if err := s.saveEvents(ctx, inst, strings.Join(kept, "\n"), cat.Len()); err != nil {
		inst.cache.catalog = nil
		return 0, err
	}
	return removed, nil
}

func (s *calendarService) eventsEntry(ctx context.Context, inst *instance) (string, error) {
	rec, err := s.repo.Get(ctx, records.Name(inst.name, records.KindEvents))
	if err != nil {
		return "", fmt.Errorf("load events: %w", err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.Entry, nil
}

func (s *calendarService) saveEvents(ctx context.Context, inst *instance, entry string, count int) error {
	err := s.repo.Upsert(ctx, records.Record{
		Name:        records.Name(inst.name, records.KindEvents),
		Entry:       entry,
		Description: fmt.Sprintf("%d events", count),
	})
	if err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}
