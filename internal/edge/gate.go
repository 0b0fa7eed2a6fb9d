// Package edge is the coarse pre-check that runs before any session can be
// decrypted. It only ever looks for the presence of the session cookie.
package edge

import (
	"net/http"

	"github.com/odyssey-hr/gatekeeper/internal/authz"
)

// DefaultAlwaysPublic are the asset paths that are never gated.
func DefaultAlwaysPublic() []authz.PathRule {
	return authz.AssetRules()
}

// Result is the outcome of Precheck. Redirect is set only when Pass is false.
type Result struct {
	Pass     bool
	Redirect string
}

// RedirectRecorder observes edge redirects.
type RedirectRecorder interface {
	RecordEdgeRedirect()
}

// Gate holds only static configuration; it keeps no state between requests.
type Gate struct {
	SessionCookie string
	Public        []authz.PathRule
	AlwaysPublic  []authz.PathRule
	Matcher       *Matcher
	Recorder      RedirectRecorder
}

// NewGate builds a Gate with the default public list and matchers.
func NewGate(sessionCookie string) *Gate {
	return &Gate{
		SessionCookie: sessionCookie,
		Public:        authz.DefaultPolicy().Public,
		AlwaysPublic:  DefaultAlwaysPublic(),
		Matcher:       MustCompileMatcher(DefaultMatchers),
	}
}

// Precheck decides whether r may proceed to the application.
func (g *Gate) Precheck(r *http.Request) Result {
	raw := r.URL.Path
	if g.Matcher != nil && !g.Matcher.Match(raw) {
		return Result{Pass: true}
	}
	normalized := authz.NormalizePath(raw)
	for _, rules := range [][]authz.PathRule{g.AlwaysPublic, g.Public} {
		for _, rule := range rules {
			if rule.Matches(normalized) {
				return Result{Pass: true}
			}
		}
	}
	if c, err := r.Cookie(g.SessionCookie); err == nil && c.Value != "" {
		return Result{Pass: true}
	}
	return Result{Redirect: authz.SignInURL(r.URL.RequestURI())}
}

// Middleware redirects requests that fail Precheck.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Precheck(r)
		if res.Pass {
			next.ServeHTTP(w, r)
			return
		}
		if g.Recorder != nil {
			g.Recorder.RecordEdgeRedirect()
		}
		http.Redirect(w, r, res.Redirect, http.StatusFound)
	})
}
