package httpapi

import (
	"fmt"
	"regexp"
	"strings"
)

// globMatcher compiles pattern into a predicate over cached subdir URLs
// for the admin purge endpoint (SPEC_FULL.md §4.5). Adapted from the
// caching system's pattern matcher: exact match and a "prefix*" fast path
// stay string operations; anything else with a '*' or '?' falls back to
// an anchored regex translation of the glob.
func globMatcher(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	if pattern == "*" {
		return func(string) bool { return true }, nil
	}

	if strings.HasSuffix(pattern, "*") && !strings.ContainsAny(pattern[:len(pattern)-1], "*?") {
		prefix := pattern[:len(pattern)-1]
		return func(key string) bool { return strings.HasPrefix(key, prefix) }, nil
	}

	if !strings.ContainsAny(pattern, "*?") {
		return func(key string) bool { return key == pattern }, nil
	}

	re, err := regexp.Compile("^" + globToRegex(pattern) + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern regex: %w", err)
	}
	return re.MatchString, nil
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
