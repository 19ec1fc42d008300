// internal/locator/locator.go
package locator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// Legacy id() shorthand at the start of a locator, optionally scope-relative.
	legacyID = regexp.MustCompile(`^\.?id\(\s*(?:'([^']*)'|"([^"]*)")\s*\)`)
)

// Normalize canonicalizes a locator string. It collapses whitespace, rewrites
// the legacy id('X') shorthand to //*[@id='X'], and anchors bare relative
// paths to the current scope with "./". It never fails and is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
	if s == "" {
		return raw
	}

	if m := legacyID.FindStringSubmatchIndex(s); m != nil {
		var id string
		if m[2] >= 0 {
			id = s[m[2]:m[3]] // single-quoted group
		} else {
			id = s[m[4]:m[5]]
		}
		s = "//*[@id=" + Literal(id) + "]" + s[m[1]:]
	}

	switch s[0] {
	case '.', '/', '(':
		return s
	}
	return "./" + s
}

// Literal quotes s as an XPath string literal, falling back to concat() when
// s contains both quote characters.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}

// IsTreeQuery reports whether s is written in tree-query syntax rather than CSS.
func IsTreeQuery(s string) bool {
	s = strings.TrimSpace(s)
	for _, p := range []string{"//", ".//", "/", "./", "../", "(", "id(", ".id("} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsValueQuery reports whether a tree query yields a string (text node or
// attribute value) instead of an element.
func IsValueQuery(s string) bool {
	return strings.HasSuffix(s, "/text()") ||
		strings.Contains(s, "/@") ||
		strings.Contains(s, "following-sibling::text()")
}

// IsAttributeQuery reports whether a value query selects an attribute.
func IsAttributeQuery(s string) bool {
	return strings.Contains(s, "/@")
}

// Truncate shortens s for log and audit messages.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
