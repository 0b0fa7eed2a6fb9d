package authz

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/odyssey-hr/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
)

// CallbackParam carries the originally requested URL through sign-in.
const CallbackParam = "callbackUrl"

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordAuthzDecision(outcome string)
}

// Middleware enforces Engine decisions on page routes. The session must
// already be in the request context.
type Middleware struct {
	Engine   *Engine
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// SignInURL builds the sign-in redirect preserving the requested URL.
func SignInURL(requested string) string {
	if requested == "" || requested == "/" {
		return RouteSignIn
	}
	return RouteSignIn + "?" + url.Values{CallbackParam: {requested}}.Encode()
}

// Enforce redirects every request the engine does not allow.
func (m Middleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := m.decide(r, r.URL.Path)
		if d.Allow {
			next.ServeHTTP(w, r)
			return
		}
		target := d.Redirect
		if target == RouteSignIn {
			target = SignInURL(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

type checkResponse struct {
	Path     string `json:"path"`
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason"`
}

// Check reports the decision for ?path= against the caller's session, for
// client-side route guards.
func (m Middleware) Check(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("path")
	if requested == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "path is required")
		return
	}
	d := m.decide(r, requested)
	resp := checkResponse{Path: NormalizePath(requested), Allow: d.Allow, Reason: d.Reason, Redirect: d.Redirect}
	if d.Redirect == RouteSignIn {
		resp.Redirect = SignInURL(requested)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (m Middleware) decide(r *http.Request, requested string) Decision {
	sess := shared.SessionFromContext(r.Context())
	d := m.Engine.Authorize(sess.Principal(), requested)
	outcome := "allow"
	if !d.Allow {
		outcome = "redirect"
		if m.Logger != nil {
			m.Logger.Debug("route denied",
				slog.String("path", requested),
				slog.String("reason", d.Reason),
				slog.String("rule", d.Rule),
				slog.String("redirect", d.Redirect),
			)
		}
	}
	if m.Recorder != nil {
		m.Recorder.RecordAuthzDecision(outcome + ":" + d.Reason)
	}
	return d
}
