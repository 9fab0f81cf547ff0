package calendar

// TurnCache holds the records loaded for one calendar instance while a turn
// is processed. It is owned by a single instance and guarded by that
// instance's lock.
type TurnCache struct {
	config  *Config
	catalog *Catalog
	issues  []ParseIssue
	state   *TimeState

	// unusable is set when the configuration record exists but cannot be
	// used; it is cleared by Invalidate so the next turn retries.
	unusable bool

	turn      int
	announced map[int]struct{}
	commands  map[string]struct{}
}

// NewTurnCache returns an empty cache.
func NewTurnCache() *TurnCache {
	return &TurnCache{
		turn:      NeverProcessed,
		announced: make(map[int]struct{}),
		commands:  make(map[string]struct{}),
	}
}

// Invalidate drops everything loaded from the store. The eventDay and
// command guards are kept; they are reset only when a different turn begins.
func (c *TurnCache) Invalidate() {
	c.config = nil
	c.catalog = nil
	c.issues = nil
	c.state = nil
	c.unusable = false
}

// BeginTurn invalidates the cache for a new turn.
func (c *TurnCache) BeginTurn(turn int) {
	c.Invalidate()
	if turn != c.turn {
		c.turn = turn
		c.announced = make(map[int]struct{})
		c.commands = make(map[string]struct{})
	}
}

// CommandApplied reports whether the same /time command text was already
// applied during the current turn, so a host resubmitting a turn does not
// move time twice.
func (c *TurnCache) CommandApplied(text string) bool {
	_, ok := c.commands[normKey(text)]
	return ok
}

// MarkCommand records a /time command applied during the current turn.
func (c *TurnCache) MarkCommand(text string) {
	c.commands[normKey(text)] = struct{}{}
}

// MarkEventDay records that events for dayNumber were announced during the
// current turn. It returns false if they already were.
func (c *TurnCache) MarkEventDay(dayNumber int) bool {
	if _, ok := c.announced[dayNumber]; ok {
		return false
	}
	c.announced[dayNumber] = struct{}{}
	return true
}

// filterEventDay drops eventDay notifications that were already announced
// for the same day during the current turn.
func (c *TurnCache) filterEventDay(ns []Notification, dayNumber int) []Notification {
	out := ns[:0]
	for _, n := range ns {
		if n.Type == NotifyEventDay && !c.MarkEventDay(dayNumber) {
			continue
		}
		out = append(out, n)
	}
	return out
}
