package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-hr/gatekeeper/internal/cryptobox"
	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

type recorderStub struct {
	cookies []string
}

func (r *recorderStub) RecordDecryptFailure(cookie string) {
	r.cookies = append(r.cookies, cookie)
}

func newManager(t *testing.T, opts SessionOptions) *SessionManager {
	t.Helper()
	box, err := cryptobox.NewFull("test-passphrase")
	require.NoError(t, err)
	return NewSessionManager(box, opts)
}

// requestWith replays the Set-Cookie headers of rec onto a fresh request.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	sm := newManager(t, SessionOptions{MultiTenant: true, Secure: true})
	sess := sm.New(identity.User{ID: "u1", Roles: identity.NewRoleSet(identity.PeopleAdmin)}, "refresh-1", "acme")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Write(rec, sess))

	session := cookieByName(rec, "session")
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.True(t, session.Secure)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.Equal(t, 86400, session.MaxAge)
	assert.NotContains(t, session.Value, "u1")

	refresh := cookieByName(rec, "refreshToken")
	require.NotNil(t, refresh)
	assert.Equal(t, 604800, refresh.MaxAge)
	assert.NotEqual(t, "refresh-1", refresh.Value)

	tenant := cookieByName(rec, "tenantId")
	require.NotNil(t, tenant)
	assert.Equal(t, "acme", tenant.Value)

	req := requestWith(rec)
	got := sm.Read(req)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.True(t, got.User.Roles.Has(identity.PeopleAdmin))

	cred, ok := sm.RefreshCredential(req)
	require.True(t, ok)
	assert.Equal(t, "refresh-1", cred)
	assert.Equal(t, "acme", sm.TenantID(req))
}

func TestTenantCookieOnlyInMultiTenantMode(t *testing.T) {
	sm := newManager(t, SessionOptions{})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Write(rec, sm.New(identity.User{ID: "u1"}, "r", "acme")))
	assert.Nil(t, cookieByName(rec, "tenantId"))
}

func TestReadFailsClosed(t *testing.T) {
	recorder := &recorderStub{}
	sm := newManager(t, SessionOptions{Recorder: recorder})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, sm.Read(req))

	req.AddCookie(&http.Cookie{Name: "session", Value: "tampered"})
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "tampered"})
	assert.Nil(t, sm.Read(req))
	_, ok := sm.RefreshCredential(req)
	assert.False(t, ok)
	assert.Equal(t, []string{"session", "refreshToken"}, recorder.cookies)
}

func TestReadRejectsForeignKey(t *testing.T) {
	sm := newManager(t, SessionOptions{})
	otherBox, err := cryptobox.NewFull("someone-else")
	require.NoError(t, err)
	other := NewSessionManager(otherBox, SessionOptions{})

	rec := httptest.NewRecorder()
	require.NoError(t, other.Write(rec, other.New(identity.User{ID: "u1"}, "r", "")))
	assert.Nil(t, sm.Read(requestWith(rec)))
}

func TestReadDropsExpiredSession(t *testing.T) {
	sm := newManager(t, SessionOptions{})
	sess := sm.New(identity.User{ID: "u1"}, "", "")
	sess.Expires = time.Now().Add(-time.Minute)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Write(rec, sess))
	assert.Nil(t, sm.Read(requestWith(rec)))
}

func TestClearExpiresAllCookies(t *testing.T) {
	sm := newManager(t, SessionOptions{})
	rec := httptest.NewRecorder()
	sm.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge, c.Name)
		assert.Empty(t, c.Value)
	}
	assert.Contains(t, rec.Header().Values("Set-Cookie")[0], "Max-Age=0")
}

func TestMiddlewareLoadsSession(t *testing.T) {
	sm := newManager(t, SessionOptions{})
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Write(rec, sm.New(identity.User{ID: "u9"}, "", "")))

	var seen *identity.Session
	h := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), requestWith(rec))
	require.NotNil(t, seen)
	assert.Equal(t, "u9", seen.User.ID)
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := &identity.Session{ID: "s1"}

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(sess, token))
	assert.ErrorIs(t, m.VerifyToken(sess, "nope"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, token), ErrCSRFTokenMissing)

	_, err = m.EnsureToken(nil)
	assert.ErrorIs(t, err, ErrNoSession)
}
