// internal/parser/diagnose.go
package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxExcerpt is the number of characters kept from a diagnosed line.
const MaxExcerpt = 100

// Diagnostic describes a line with no meaningful content.
type Diagnostic struct {
	ErrorType  string
	Suggestion string
}

// Diagnose reports lines that are empty after trimming or contain no
// letters or digits. Anything else is considered usable. The analysis
// pipeline skips blank lines before diagnosing, so "Empty line" only comes
// back to direct callers.
func Diagnose(line string) (Diagnostic, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Diagnostic{
			ErrorType:  "Empty line",
			Suggestion: "Line contains no content",
		}, true
	}

	if strings.IndexFunc(trimmed, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0 {
		return Diagnostic{
			ErrorType:  "Invalid content",
			Suggestion: "Line contains only special characters or whitespace",
		}, true
	}

	return Diagnostic{}, false
}

// Excerpt truncates line to MaxExcerpt characters plus an ellipsis.
func Excerpt(line string) string {
	if utf8.RuneCountInString(line) <= MaxExcerpt {
		return line
	}
	runes := []rune(line)
	return string(runes[:MaxExcerpt]) + "..."
}
