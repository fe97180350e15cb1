package strings

import (
	"strings"
)

// DefaultBodyMaxLen bounds response bodies quoted in error messages and
// reports.
const DefaultBodyMaxLen = 512

// MinTruncateLen is the smallest maxLen SingleLine honors: one character
// plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace runs in s into single spaces and cuts
// the result to maxLen runes, ending in "..." when something was cut.
// Response bodies are often pretty-printed JSON or HTML error pages; this
// keeps them on one log line.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Body renders a response body for an error message.
func Body(body []byte) string {
	if len(body) == 0 {
		return "<empty body>"
	}
	return SingleLine(string(body), DefaultBodyMaxLen)
}
