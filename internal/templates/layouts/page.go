package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Page wraps body in a minimal HTML document. The title is escaped; body is
// rendered as-is.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		heading := title
		if cal := GetCalendar(ctx); cal != "" {
			heading = fmt.Sprintf("%s: %s", title, cal)
		}
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`); err != nil {
			return err
		}
		if n := GetRefreshSeconds(ctx); n > 0 {
			if _, err := fmt.Fprintf(w, `<meta http-equiv="refresh" content="%d">`, n); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `<title>%s</title></head><body><header><h1>%s</h1></header><main>`,
			templ.EscapeString(heading), templ.EscapeString(heading)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorMessage renders an HTTP error as a fragment.
func ErrorMessage(code int, message string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="error"><h2>%d</h2><p>%s</p></section>`,
			code, templ.EscapeString(message))
		return err
	})
}
