package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
)

const maxBody = 64 << 10

// Handler wires HTTP endpoints for the session lifecycle.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	signInLimit    int
}

// NewHandler constructs a Handler instance. signInLimit is the number of
// sign-in attempts allowed per IP per minute; zero disables the limiter.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, signInLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		signInLimit:    signInLimit,
	}
}

// MountRoutes registers auth routes on provided router. The session
// middleware must run before these handlers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.signInLimit > 0 {
			r.Use(httprate.LimitByIP(h.signInLimit, time.Minute))
		}
		r.Post("/signin", h.handleSignIn)
	})
	r.Post("/refresh", h.handleRefresh)
	r.Get("/session", h.handleSession)
	r.Post("/signout", h.handleSignOut)
}

type sessionResponse struct {
	AccessToken string        `json:"accessToken"`
	User        identity.User `json:"user"`
	URL         string        `json:"url,omitempty"`
	CSRFToken   string        `json:"csrfToken"`
	Expires     time.Time     `json:"expires"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, identity.ErrMalformedCredentials)
		return
	}
	out, err := h.service.SignIn(r.Context(), creds, requestMeta(r))
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && !h.verifyCSRF(w, r, sess) {
		return
	}
	refreshToken, ok := h.sessionManager.RefreshCredential(r)
	if !ok {
		h.sessionManager.Clear(w)
		httpx.RespondError(w, identity.ErrRefreshFailed)
		return
	}
	out, err := h.service.Refresh(r.Context(), sess, refreshToken, h.sessionManager.TenantID(r))
	if err != nil {
		h.sessionManager.Clear(w)
		h.respondAuthError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	client := h.service.Session(r.Context(), sess)
	if client == nil {
		if h.sessionManager.HasSessionCookie(r) {
			h.sessionManager.Clear(w)
		}
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	if client.CSRFToken == "" {
		token, _ := h.csrfManager.EnsureToken(sess)
		if err := h.sessionManager.Write(w, sess); err != nil {
			h.logger.Error("write session", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		client.CSRFToken = token
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && !h.verifyCSRF(w, r, sess) {
		return
	}
	refreshToken, _ := h.sessionManager.RefreshCredential(r)
	h.service.SignOut(r.Context(), sess, refreshToken, h.sessionManager.TenantID(r))
	h.sessionManager.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ClearCookies expires every cookie the request carries, including the
// session cookies even when they are absent.
func (h *Handler) ClearCookies(w http.ResponseWriter, r *http.Request) {
	names := h.sessionManager.Names()
	owned := map[string]bool{names.Session: true, names.Refresh: true, names.Tenant: true}
	for _, c := range r.Cookies() {
		if owned[c.Name] {
			continue
		}
		http.SetCookie(w, &http.Cookie{Name: c.Name, Value: "", Path: "/", MaxAge: -1})
	}
	h.sessionManager.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// DropRevoked clears a signed-out or expired session from the request
// context so later middleware treats the caller as anonymous.
func (h *Handler) DropRevoked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess != nil && h.service.Session(r.Context(), sess) == nil {
			r = r.WithContext(shared.ContextWithSession(r.Context(), nil))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeOutcome(w http.ResponseWriter, out *Outcome) {
	csrfToken, err := h.csrfManager.EnsureToken(out.Session)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.sessionManager.Write(w, out.Session); err != nil {
		h.logger.Error("write session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		AccessToken: out.AccessToken,
		User:        out.Session.User,
		URL:         out.URL,
		CSRFToken:   csrfToken,
		Expires:     out.Session.Expires,
	})
}

func (h *Handler) verifyCSRF(w http.ResponseWriter, r *http.Request, sess *identity.Session) bool {
	if err := h.csrfManager.VerifyToken(sess, r.Header.Get(shared.CSRFHeader)); err != nil {
		h.logger.Debug("csrf rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
		return false
	}
	return true
}

func (h *Handler) respondAuthError(w http.ResponseWriter, err error) {
	if !isAuthError(err) {
		h.logger.Error("auth request failed", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUpstream)
		return
	}
	httpx.RespondError(w, err)
}

func isAuthError(err error) bool {
	for _, target := range []error{
		identity.ErrMalformedCredentials,
		identity.ErrInvalidCredentials,
		identity.ErrTokenInvalid,
		identity.ErrTokenExpired,
		identity.ErrVersionMismatch,
		identity.ErrRefreshFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func requestMeta(r *http.Request) Meta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Meta{IP: ip, UserAgent: r.UserAgent()}
}
