package textutil

import "strings"

// Truncate cuts s to at most limit runes, appending an ellipsis marker when
// anything was removed. Limits below the marker length return the bare cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	const marker = "..."
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + marker
}

// CollapseWhitespace folds every run of whitespace (including newlines) into
// a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Snippet renders s as a single bounded line suitable for log and error
// text. Empty input renders as "<empty>" so the absence is visible.
func Snippet(s string, limit int) string {
	clean := CollapseWhitespace(s)
	if clean == "" {
		return "<empty>"
	}
	return Truncate(clean, limit)
}
