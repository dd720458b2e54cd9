package authz

import (
	"net/http"
	"path"
	"strings"
)

// Matcher selects the requests a rule applies to.
type Matcher interface {
	Matches(r *http.Request) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(r *http.Request) bool

func (f MatcherFunc) Matches(r *http.Request) bool { return f(r) }

// AnyRequest matches every request.
func AnyRequest() Matcher {
	return MatcherFunc(func(*http.Request) bool { return true })
}

// PathPattern matches the request URL path against an ant-style pattern.
// Segments are compared literally except for "*", which matches exactly one
// segment, and "**", which matches zero or more segments. A trailing "/**"
// therefore also matches the bare prefix: "/admin/**" matches "/admin",
// "/admin/" and "/admin/a/b" but not "/administrator".
//
// Request paths are cleaned with path.Clean before matching.
func PathPattern(pattern string) Matcher {
	return pathPattern(splitPath(pattern))
}

// PathPatterns matches when any of the patterns does.
func PathPatterns(patterns ...string) Matcher {
	ms := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		ms = append(ms, PathPattern(p))
	}
	return MatcherFunc(func(r *http.Request) bool {
		for _, m := range ms {
			if m.Matches(r) {
				return true
			}
		}
		return false
	})
}

type pathPattern []string

func (p pathPattern) Matches(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	// Dot segments are resolved first so "/x/../admin" cannot slip past an
	// "/admin/**" rule.
	return matchSegments(p, splitPath(path.Clean("/"+r.URL.Path)))
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "**":
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if matchSegments(rest, path[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(path) == 0 {
				return false
			}
		default:
			if len(path) == 0 || path[0] != pattern[0] {
				return false
			}
		}
		pattern, path = pattern[1:], path[1:]
	}
	return len(path) == 0
}
