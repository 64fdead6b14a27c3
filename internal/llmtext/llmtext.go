// Package llmtext contains small helpers for handling free-form model
// output: stripping markdown code fences, locating the first JSON value in
// surrounding prose, and truncating text for logs. Models wrap JSON in
// fences or preamble often enough that every caller parsing model output
// goes through here.
package llmtext

import (
	"strings"
	"unicode/utf8"
)

// StripCodeFences removes a surrounding markdown code fence (``` or
// ```json) if present, returning the inner text trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language hint on the opening fence line.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "JSON" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FirstObject returns the first balanced {...} block in s, or "" if none
// exists. Braces inside JSON strings are skipped.
func FirstObject(s string) string {
	return firstBalanced(s, '{', '}')
}

// FirstArray returns the first balanced [...] block in s, or "" if none
// exists.
func FirstArray(s string) string {
	return firstBalanced(s, '[', ']')
}

func firstBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Truncate shortens s to max runes for logging, appending "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Cut shortens s to at most max bytes, moving the cut point back to the
// nearest rune boundary so the result is always valid UTF-8. Unlike
// Truncate it appends no marker; it enforces content budgets that end up
// in the database or in prompts.
func Cut(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
