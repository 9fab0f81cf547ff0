package calendar

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/turnclock/internal/templates/layouts"
)

// StatusFragment renders the current date, time and today's events as an
// HTML fragment.
func StatusFragment(now *NowView, today []EventStatusView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="turnclock-status">`)
		fmt.Fprintf(&b, `<p class="turnclock-date">%s</p>`, templ.EscapeString(now.Date))
		fmt.Fprintf(&b, `<p class="turnclock-time">%s <small>(%s)</small> &middot; %s &middot; %s</p>`,
			templ.EscapeString(now.Time12h),
			templ.EscapeString(now.Time),
			templ.EscapeString(now.TimeOfDay),
			templ.EscapeString(now.Season))
		fmt.Fprintf(&b, `<progress max="1" value="%.4f" title="day"></progress>`, now.DayProgress)

		if len(today) == 0 {
			b.WriteString(`<p class="turnclock-empty">No events today.</p>`)
		} else {
			b.WriteString(`<ul class="turnclock-events">`)
			for _, ev := range today {
				fmt.Fprintf(&b, `<li class="state-%s"><strong>%s</strong> %s</li>`,
					templ.EscapeString(string(ev.Status.State)),
					templ.EscapeString(ev.Name),
					templ.EscapeString(statusLabel(ev)))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// statusLabel describes an event's window state in words.
func statusLabel(ev EventStatusView) string {
	st := ev.Status
	switch {
	case st.AllDay:
		return "all day"
	case st.State == RangeActive:
		return fmt.Sprintf("now, %d min left", st.MinutesRemaining)
	case st.State == RangeUpcoming:
		return fmt.Sprintf("in %d min", st.MinutesUntil)
	}
	return "finished"
}

// UnavailableFragment is shown for a calendar without a usable configuration.
func UnavailableFragment(calendar string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="turnclock-status"><p>Calendar %s has no usable configuration.</p></section>`,
			templ.EscapeString(calendar))
		return err
	})
}

// StatusPage wraps the status fragment in the page layout.
func StatusPage(body templ.Component) templ.Component {
	return layouts.Page("Turnclock", body)
}
