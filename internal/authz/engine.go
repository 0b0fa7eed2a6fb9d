// Package authz decides whether a principal may view an application route.
package authz

import (
	"path"
	"strings"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// Decision reasons.
const (
	ReasonPublic          = "public"
	ReasonAnonymous       = "anonymous"
	ReasonPasswordChange  = "password-change-required"
	ReasonPasswordChanged = "password-already-changed"
	ReasonLanding         = "landing"
	ReasonGranted         = "granted"
	ReasonRestricted      = "restricted"
	ReasonNoGrant         = "no-grant"
	ReasonUnauthorized    = "unauthorized-page"
)

// Decision is the outcome of Authorize. A zero Redirect means Allow.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
	Rule     string
}

func allow(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

func redirect(target, reason string) Decision {
	return Decision{Redirect: target, Reason: reason}
}

// Engine evaluates a Policy. Safe for concurrent use.
type Engine struct {
	public   []PathRule
	grants   map[identity.Role][]PathRule
	landings []Landing
	rules    []Rule
}

// NewEngine compiles policy once.
func NewEngine(policy Policy) *Engine {
	grants := make(map[identity.Role][]PathRule, len(policy.Grants))
	for role, prefixes := range policy.Grants {
		seen := make(map[string]struct{}, len(prefixes))
		for _, p := range prefixes {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			grants[role] = append(grants[role], Prefix(p))
		}
	}
	return &Engine{
		public:   append([]PathRule(nil), policy.Public...),
		grants:   grants,
		landings: append([]Landing(nil), policy.Landings...),
		rules:    append([]Rule(nil), policy.Rules...),
	}
}

// NormalizePath cleans raw and strips a leading namespace segment.
func NormalizePath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	p := path.Clean(raw)
	for _, ns := range Namespaces {
		if p == ns {
			return "/"
		}
		if strings.HasPrefix(p, ns+"/") {
			return p[len(ns):]
		}
	}
	return p
}

// IsPublic reports whether the normalized form of p bypasses authorization.
func (e *Engine) IsPublic(p string) bool {
	return matchAny(e.public, NormalizePath(p))
}

// Authorize decides whether principal may view requested. A nil principal is
// anonymous.
func (e *Engine) Authorize(principal *identity.Principal, requested string) Decision {
	p := NormalizePath(requested)

	if matchAny(e.public, p) {
		return allow(ReasonPublic)
	}
	if principal == nil {
		return redirect(RouteSignIn, ReasonAnonymous)
	}

	onReset := Prefix(RouteResetPassword).Matches(p)
	if principal.MustChangePassword {
		// The reset page needs no grant while a change is pending.
		if onReset {
			return allow(ReasonPasswordChange)
		}
		if p != RouteUnauthorized {
			return redirect(RouteResetPassword, ReasonPasswordChange)
		}
	}
	if !principal.MustChangePassword && onReset {
		return redirect(RouteDashboard, ReasonPasswordChanged)
	}

	for _, l := range e.landings {
		if l.applies(principal, p) {
			d := redirect(l.Target, ReasonLanding)
			d.Rule = l.Name
			return d
		}
	}

	if !e.granted(principal, p) {
		if p == RouteUnauthorized {
			return allow(ReasonUnauthorized)
		}
		return redirect(RouteUnauthorized, ReasonNoGrant)
	}

	for _, r := range e.rules {
		if r.applies(principal, p) && !r.satisfied(principal) {
			d := redirect(RouteUnauthorized, ReasonRestricted)
			d.Rule = r.Name
			return d
		}
	}
	return allow(ReasonGranted)
}

func (e *Engine) granted(principal *identity.Principal, p string) bool {
	for role := range principal.Roles {
		if matchAny(e.grants[role], p) {
			return true
		}
	}
	return false
}
