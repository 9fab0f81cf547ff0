// data.go provides typed context helpers for passing layout data from
// handlers/middleware to Templ templates. Only simple types are stored so
// the layouts package never imports plugin types.
//
// Data flow: Handler/Middleware -> Echo Context -> LayoutInjector -> Go Context -> Templ
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyCalendar   ctxKey = "layout_calendar"
	keyActivePath ctxKey = "layout_active_path"
	keyRefreshSec ctxKey = "layout_refresh_seconds"
)

// SetCalendar stores the calendar instance name shown in the page header.
func SetCalendar(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyCalendar, name)
}

// GetCalendar returns the calendar instance name, or "" when unset.
func GetCalendar(ctx context.Context) string {
	v, _ := ctx.Value(keyCalendar).(string)
	return v
}

// SetActivePath stores the request path for navigation highlighting.
func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// GetActivePath returns the request path, or "" when unset.
func GetActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}

// SetRefreshSeconds stores how often the page should reload its status
// fragment. Zero disables polling.
func SetRefreshSeconds(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, keyRefreshSec, n)
}

// GetRefreshSeconds returns the polling interval, or 0 when unset.
func GetRefreshSeconds(ctx context.Context) int {
	v, _ := ctx.Value(keyRefreshSec).(int)
	return v
}
