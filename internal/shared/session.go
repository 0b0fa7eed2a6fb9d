package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-hr/gatekeeper/internal/cryptobox"
	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

const (
	// DefaultSessionTTL is the lifetime of the session and tenant cookies.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultRefreshTTL is the lifetime of the refresh-credential cookie.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// CookieNames names the three cookies owned by the session store.
type CookieNames struct {
	Session string
	Refresh string
	Tenant  string
}

// DefaultCookieNames returns the standard cookie names.
func DefaultCookieNames() CookieNames {
	return CookieNames{Session: "session", Refresh: "refreshToken", Tenant: "tenantId"}
}

// DecryptRecorder observes cookies that failed to open.
type DecryptRecorder interface {
	RecordDecryptFailure(cookie string)
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	Names       CookieNames
	Secure      bool
	SessionTTL  time.Duration
	RefreshTTL  time.Duration
	MultiTenant bool
	Logger      *slog.Logger
	Recorder    DecryptRecorder
}

// SessionManager persists sessions in encrypted, httpOnly cookies. It holds
// no per-session state; everything lives in the client's cookie jar.
type SessionManager struct {
	box  cryptobox.Box
	opts SessionOptions
	now  func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(box cryptobox.Box, opts SessionOptions) *SessionManager {
	defaults := DefaultCookieNames()
	if opts.Names.Session == "" {
		opts.Names.Session = defaults.Session
	}
	if opts.Names.Refresh == "" {
		opts.Names.Refresh = defaults.Refresh
	}
	if opts.Names.Tenant == "" {
		opts.Names.Tenant = defaults.Tenant
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	return &SessionManager{box: box, opts: opts, now: time.Now}
}

// New starts a session for user with a fresh ID and full lifetime.
func (sm *SessionManager) New(user identity.User, refreshToken, tenantID string) *identity.Session {
	return &identity.Session{
		ID:           uuid.NewString(),
		User:         user,
		RefreshToken: refreshToken,
		TenantID:     tenantID,
		Expires:      sm.now().Add(sm.opts.SessionTTL).UTC(),
	}
}

// Write seals sess into the response cookies.
func (sm *SessionManager) Write(w http.ResponseWriter, sess *identity.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sealed, err := sm.box.Seal(payload)
	if err != nil {
		return err
	}
	http.SetCookie(w, sm.cookie(sm.opts.Names.Session, sealed, sm.opts.SessionTTL))

	if sess.RefreshToken != "" {
		sealedRefresh, err := sm.box.Seal([]byte(sess.RefreshToken))
		if err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie(sm.opts.Names.Refresh, sealedRefresh, sm.opts.RefreshTTL))
	}
	if sm.opts.MultiTenant && sess.TenantID != "" {
		http.SetCookie(w, sm.cookie(sm.opts.Names.Tenant, sess.TenantID, sm.opts.SessionTTL))
	}
	return nil
}

// Read returns the session carried by r, or nil when the cookie is missing,
// cannot be opened, cannot be parsed, or has expired.
func (sm *SessionManager) Read(r *http.Request) *identity.Session {
	c, err := r.Cookie(sm.opts.Names.Session)
	if err != nil || c.Value == "" {
		return nil
	}
	plain, err := sm.box.Open(c.Value)
	if err != nil {
		sm.decryptFailed(sm.opts.Names.Session)
		return nil
	}
	var sess identity.Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		sm.decryptFailed(sm.opts.Names.Session)
		return nil
	}
	if sess.Expired(sm.now()) {
		return nil
	}
	return &sess
}

// RefreshCredential returns the refresh credential from its dedicated cookie.
func (sm *SessionManager) RefreshCredential(r *http.Request) (string, bool) {
	c, err := r.Cookie(sm.opts.Names.Refresh)
	if err != nil || c.Value == "" {
		return "", false
	}
	plain, err := sm.box.Open(c.Value)
	if err != nil || len(plain) == 0 {
		sm.decryptFailed(sm.opts.Names.Refresh)
		return "", false
	}
	return string(plain), true
}

// TenantID returns the plaintext tenant cookie, if any.
func (sm *SessionManager) TenantID(r *http.Request) string {
	c, err := r.Cookie(sm.opts.Names.Tenant)
	if err != nil {
		return ""
	}
	return c.Value
}

// HasSessionCookie reports presence of the session cookie without opening it.
func (sm *SessionManager) HasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(sm.opts.Names.Session)
	return err == nil && c.Value != ""
}

// Clear expires all three cookies.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	for _, name := range []string{sm.opts.Names.Session, sm.opts.Names.Refresh, sm.opts.Names.Tenant} {
		http.SetCookie(w, sm.cookie(name, "", -1))
	}
}

// Names returns the configured cookie names.
func (sm *SessionManager) Names() CookieNames {
	return sm.opts.Names
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.opts.SessionTTL
}

// Middleware loads the session, if any, into the request context.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := sm.Read(r); sess != nil {
			r = r.WithContext(ContextWithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		return c
	}
	c.MaxAge = int(ttl / time.Second)
	return c
}

func (sm *SessionManager) decryptFailed(cookie string) {
	if sm.opts.Logger != nil {
		sm.opts.Logger.Warn("session cookie rejected", slog.String("cookie", cookie))
	}
	if sm.opts.Recorder != nil {
		sm.opts.Recorder.RecordDecryptFailure(cookie)
	}
}
