package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var parentheticalPattern = regexp.MustCompile(`\s*\([^()]*\)`)

// CollapseSpaces joins the whitespace-separated fields of value with single spaces.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// CollapseLines collapses horizontal whitespace on every line and drops blank lines,
// keeping line breaks so that line-bound patterns do not run across list entries.
func CollapseLines(value string) string {
	if value == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if collapsed := CollapseSpaces(line); collapsed != "" {
			out = append(out, collapsed)
		}
	}
	return strings.Join(out, "\n")
}

// StripParentheticals removes parenthesised asides such as "(serves 2)".
func StripParentheticals(value string) string {
	return parentheticalPattern.ReplaceAllString(value, "")
}

// Fold returns the NFKC-normalised, case-folded, trimmed form of value for case-insensitive comparison.
func Fold(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	// cases.Caser is stateful; one per call keeps Fold safe for concurrent use.
	return cases.Fold().String(norm.NFKC.String(trimmed))
}
