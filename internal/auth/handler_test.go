package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
)

type signInBody struct {
	AccessToken string `json:"accessToken"`
	URL         string `json:"url"`
	CSRFToken   string `json:"csrfToken"`
	User        struct {
		ID    string   `json:"id"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

func withCookies(req *http.Request, res *httptest.ResponseRecorder) *http.Request {
	for _, c := range res.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return req
}

func cookieByName(res *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func signIn(t *testing.T, env *testEnv) (*httptest.ResponseRecorder, signInBody) {
	t.Helper()
	env.issuer.EXPECT().SignIn(gomock.Any(), gomock.Any()).
		Return(&issuer.Grant{AccessToken: mint(t, "42", time.Hour, "ROLE_LEAVE_EMPLOYEE"), RefreshToken: "r1"}, nil)

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, postJSON(t, "/api/auth/signin", map[string]string{"email": "a@b.co", "password": "pw"}))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body signInBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return res, body
}

func TestSignInEndpointSetsCookies(t *testing.T) {
	env := newTestEnv(t)
	res, body := signIn(t, env)

	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "/dashboard", body.URL)
	assert.NotEmpty(t, body.CSRFToken)
	assert.Equal(t, "42", body.User.ID)
	assert.Equal(t, []string{"ROLE_LEAVE_EMPLOYEE"}, body.User.Roles)
	assert.NotContains(t, res.Body.String(), "r1")

	for _, name := range []string{"session", "refreshToken"} {
		c := cookieByName(res, name)
		require.NotNil(t, c, name)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.NotContains(t, c.Value, "r1")
	}
}

func TestSignInEndpointRendersGenericFailure(t *testing.T) {
	env := newTestEnv(t)

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, postJSON(t, "/api/auth/signin", map[string]string{"email": "a@b.co"}))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "authentication failed")

	env.issuer.EXPECT().SignIn(gomock.Any(), gomock.Any()).Return(nil, &issuer.APIError{Status: http.StatusUnauthorized})
	res = httptest.NewRecorder()
	env.router.ServeHTTP(res, postJSON(t, "/api/auth/signin", map[string]string{"email": "a@b.co", "password": "bad"}))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "authentication failed")
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, "null", res.Body.String())

	signedIn, body := signIn(t, env)
	res = httptest.NewRecorder()
	env.router.ServeHTTP(res, withCookies(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), signedIn))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"id":"42"`)
	assert.Contains(t, res.Body.String(), body.CSRFToken)
	assert.NotContains(t, res.Body.String(), "refreshToken")
}

func TestSessionEndpointClearsCorruptCookie(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "bm90LWEtYmxvYg=="})

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	assert.JSONEq(t, "null", res.Body.String())
	c := cookieByName(res, "session")
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}

func TestRefreshEndpointRequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	signedIn, body := signIn(t, env)

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), signedIn))
	assert.Equal(t, http.StatusForbidden, res.Code)

	fresh := mint(t, "42", time.Hour, "ROLE_LEAVE_EMPLOYEE")
	env.issuer.EXPECT().Refresh(gomock.Any(), "r1", "").Return(&issuer.Grant{AccessToken: fresh, RefreshToken: "r2"}, nil)
	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), signedIn)
	req.Header.Set(shared.CSRFHeader, body.CSRFToken)
	res = httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var refreshed signInBody
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &refreshed))
	assert.Equal(t, fresh, refreshed.AccessToken)
	assert.Equal(t, body.CSRFToken, refreshed.CSRFToken)

	probe := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), res)
	cred, ok := env.sessions.RefreshCredential(probe)
	require.True(t, ok)
	assert.Equal(t, "r2", cred)
}

func TestRefreshEndpointClearsCookiesOnRejection(t *testing.T) {
	env := newTestEnv(t)
	signedIn, body := signIn(t, env)
	env.issuer.EXPECT().Refresh(gomock.Any(), "r1", "").
		Return(nil, &issuer.APIError{Status: http.StatusUnauthorized, MessageKey: "invalid-token"})

	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil), signedIn)
	req.Header.Set(shared.CSRFHeader, body.CSRFToken)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	for _, name := range []string{"session", "refreshToken", "tenantId"} {
		c := cookieByName(res, name)
		require.NotNil(t, c, name)
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestRefreshEndpointWithoutCredential(t *testing.T) {
	env := newTestEnv(t)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSignOutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	signedIn, body := signIn(t, env)
	env.revoker.EXPECT().Revoke(gomock.Any(), "r1", "").Return(nil)

	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil), signedIn)
	req.Header.Set(shared.CSRFHeader, body.CSRFToken)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)

	for _, name := range []string{"session", "refreshToken", "tenantId"} {
		c := cookieByName(res, name)
		require.NotNil(t, c, name)
		assert.Less(t, c.MaxAge, 0)
	}

	// A replayed cookie from before sign-out no longer yields a session.
	replay := httptest.NewRecorder()
	env.router.ServeHTTP(replay, withCookies(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), signedIn))
	assert.JSONEq(t, "null", replay.Body.String())
}

func TestClearCookies(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/clear-cookies", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	req.AddCookie(&http.Cookie{Name: "session", Value: "x"})

	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	for _, name := range []string{"theme", "session", "refreshToken", "tenantId"} {
		c := cookieByName(res, name)
		require.NotNil(t, c, name)
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestDropRevokedClearsSignedOutSession(t *testing.T) {
	env := newTestEnv(t)
	live := env.sessions.New(identity.User{ID: "1"}, "r1", "")
	gone := env.sessions.New(identity.User{ID: "2"}, "r2", "")
	require.NoError(t, env.revocations.Revoke(context.Background(), gone.ID, gone.Expires))

	var seen *identity.Session
	h := env.handler.DropRevoked(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = shared.SessionFromContext(r.Context())
	}))

	for _, tc := range []struct {
		sess *identity.Session
		want *identity.Session
	}{{live, live}, {gone, nil}, {nil, nil}} {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req = req.WithContext(shared.ContextWithSession(req.Context(), tc.sess))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, tc.want, seen)
	}
}
