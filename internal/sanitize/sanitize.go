// Package sanitize cleans user-supplied text before it is stored in a record
// or echoed back to clients. Uses bluemonday to strip any markup so names
// and descriptions stay plain text.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy that removes all markup.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips every HTML tag from input and returns single-line plain text:
// entities are decoded, control characters dropped and runs of whitespace
// collapsed to one space.
func Text(input string) string {
	if input == "" {
		return ""
	}
	stripped := html.UnescapeString(getPolicy().Sanitize(input))
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, stripped)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Truncate returns Text(input) cut to at most max runes.
func Truncate(input string, max int) string {
	out := Text(input)
	if max <= 0 {
		return ""
	}
	r := []rune(out)
	if len(r) <= max {
		return out
	}
	return strings.TrimSpace(string(r[:max]))
}
