package edge

import (
	"fmt"
	"strings"
)

// DefaultMatchers lists the path globs the gate intercepts. Anything else,
// such as assets and API calls, passes through untouched.
var DefaultMatchers = []string{
	"/community/:path*",
	"/enterprise/:path*",
	"/setup-organization/:path*",
	"/module-selection",
	"/payment",
	"/dashboard/:path*",
	"/configurations/:path*",
	"/settings/:path*",
	"/notifications",
	"/account",
	"/reset-password",
	"/unauthorized",
	"/verify/email",
	"/verify/success",
	"/leave/:path*",
	"/people/:path*",
	"/timesheet/:path*",
	"/remove-people",
	"/integrations",
	"/subscription",
	"/user-account",
	"/sign",
	"/sign/contacts/:path*",
	"/sign/create/:path*",
	"/sign/folders/:path*",
	"/sign/inbox/:path*",
	"/sign/sent/:path*",
	"/sign/complete/:path*",
	"/projects/:path*",
	"/invoice",
	"/invoice/:path*",
}

type segment struct {
	literal string
	param   bool // matches exactly one segment
	rest    bool // matches zero or more trailing segments
}

// Matcher matches request paths against declarative globs. ":name" matches
// one segment and ":name*" matches zero or more trailing segments.
type Matcher struct {
	patterns [][]segment
}

// CompileMatcher parses globs. It rejects a "*" parameter that is not last.
func CompileMatcher(globs []string) (*Matcher, error) {
	m := &Matcher{patterns: make([][]segment, 0, len(globs))}
	for _, g := range globs {
		parts := splitPath(g)
		segs := make([]segment, 0, len(parts))
		for i, p := range parts {
			switch {
			case strings.HasPrefix(p, ":") && strings.HasSuffix(p, "*"):
				if i != len(parts)-1 {
					return nil, fmt.Errorf("edge: %q: wildcard must be the last segment", g)
				}
				segs = append(segs, segment{rest: true})
			case strings.HasPrefix(p, ":"):
				segs = append(segs, segment{param: true})
			default:
				segs = append(segs, segment{literal: p})
			}
		}
		m.patterns = append(m.patterns, segs)
	}
	return m, nil
}

// MustCompileMatcher is CompileMatcher for static pattern lists.
func MustCompileMatcher(globs []string) *Matcher {
	m, err := CompileMatcher(globs)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether p matches any pattern.
func (m *Matcher) Match(p string) bool {
	parts := splitPath(p)
	for _, segs := range m.patterns {
		if matchSegments(segs, parts) {
			return true
		}
	}
	return false
}

func matchSegments(segs []segment, parts []string) bool {
	for i, s := range segs {
		if s.rest {
			return true
		}
		if i >= len(parts) {
			return false
		}
		if !s.param && s.literal != parts[i] {
			return false
		}
	}
	return len(parts) == len(segs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
