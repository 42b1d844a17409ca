// Package sanitize cleans free-form text about runs before it is stored.
// Labels and scenario names end up in history tables, JSON exports and
// MCP tool output, so they must stay on one line and carry no markup.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLabelLength is the maximum allowed length of a run label, in bytes.
const MaxLabelLength = 120

// MaxNameLength is the maximum allowed length for scenario names.
const MaxNameLength = 80

// Pre-compiled regular expressions for performance.
var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reWhitespace matches runs of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)

	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// SanitizeLabel cleans a run label for storage and single-line display.
//
// The sanitization pipeline runs in this order:
//  1. Replace control characters (including \n and \t) with spaces
//  2. Strip XML/HTML tags
//  3. Collapse whitespace runs to a single space
//  4. Trim leading/trailing whitespace
//  5. Truncate to MaxLabelLength on a rune boundary
func SanitizeLabel(input string) string {
	if input == "" {
		return ""
	}

	s := replaceControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return truncate(s, MaxLabelLength)
}

// SanitizeName sanitizes a scenario name, keeping only safe characters
// ([a-zA-Z0-9-_.]) and enforcing a maximum length of MaxNameLength characters.
// Spaces become hyphens. Repeated hyphens and underscores are collapsed to
// single instances.
func SanitizeName(input string) string {
	if input == "" {
		return ""
	}

	// Keep only allowed characters.
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	s := b.String()

	// Collapse repeated hyphens.
	s = reRepeatedHyphens.ReplaceAllString(s, "-")

	// Collapse repeated underscores.
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")

	s = strings.Trim(s, "-")

	// Truncate to max length.
	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}

	return s
}

// replaceControlChars maps ASCII control characters (0x00-0x1F and 0x7F) to
// spaces. Null bytes are dropped.
func replaceControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0:
			continue
		case r < 0x20 || r == 0x7f:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
