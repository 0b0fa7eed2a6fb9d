package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

type captured struct {
	path   string
	tenant string
	body   map[string]string
}

func newIssuer(t *testing.T, status int, response string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.tenant = r.Header.Get(TenantHeader)
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second), got
}

func TestSignInFlowsHitTheirEndpoints(t *testing.T) {
	ok := `{"status":"successful","results":[{"accessToken":"a","refreshToken":"r","isPasswordChangedForTheFirstTime":true}]}`
	tests := []struct {
		req  SignInRequest
		path string
		key  string
	}{
		{SignInRequest{Flow: FlowPassword, Email: "a@b.c", Password: "pw"}, "/auth/sign-in", "password"},
		{SignInRequest{Flow: FlowRegister, FirstName: "Ada", LastName: "L", Email: "a@b.c", Password: "pw"}, "/auth/signup/super-admin", "firstName"},
		{SignInRequest{Flow: FlowOAuth, Provider: "google", Intent: "sign-in", Code: "c0de"}, "/auth/google/sign-in", "code"},
		{SignInRequest{Flow: FlowOTP, Email: "g@b.c", Code: "123456"}, "/auth/guest/verify-otp", "otp"},
	}
	for _, tc := range tests {
		t.Run(string(tc.req.Flow), func(t *testing.T) {
			client, got := newIssuer(t, http.StatusOK, ok)
			tc.req.TenantID = "acme"
			grant, err := client.SignIn(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, "a", grant.AccessToken)
			assert.Equal(t, "r", grant.RefreshToken)
			require.NotNil(t, grant.IsPasswordChangedForTheFirstTime)
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, "acme", got.tenant)
			assert.Contains(t, got.body, tc.key)
		})
	}
}

func TestSignInUnknownFlow(t *testing.T) {
	client, _ := newIssuer(t, http.StatusOK, `{}`)
	_, err := client.SignIn(context.Background(), SignInRequest{Flow: "magic"})
	require.Error(t, err)
}

func TestRefreshRotatesCredential(t *testing.T) {
	client, got := newIssuer(t, http.StatusOK, `{"results":[{"accessToken":"a2","refreshToken":"r2"}]}`)
	grant, err := client.Refresh(context.Background(), "r1", "")
	require.NoError(t, err)
	assert.Equal(t, "a2", grant.AccessToken)
	assert.Equal(t, "r2", grant.RefreshToken)
	assert.Equal(t, "/auth/refresh-token", got.path)
	assert.Equal(t, "r1", got.body["refreshToken"])
	assert.Empty(t, got.tenant)
}

func TestErrorEnvelopeMapsToTaxonomy(t *testing.T) {
	tests := []struct {
		key    string
		status int
		want   error
	}{
		{"COMMON_ERROR_TOKEN_EXPIRED", http.StatusUnauthorized, identity.ErrTokenExpired},
		{"invalid-token", http.StatusUnauthorized, identity.ErrTokenInvalid},
		{"COMMON_ERROR_SYSTEM_VERSION_MISMATCH", http.StatusUnauthorized, identity.ErrVersionMismatch},
		{"COMMON_ERROR_INVALID_CREDENTIALS", http.StatusUnauthorized, identity.ErrInvalidCredentials},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			body := `{"status":"unsuccessful","results":[{"messageKey":"` + tc.key + `","message":"nope"}]}`
			client, _ := newIssuer(t, tc.status, body)
			_, err := client.Refresh(context.Background(), "r", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.key, apiErr.MessageKey)
		})
	}
}

func TestRevokeIgnoresEmptyBody(t *testing.T) {
	client, got := newIssuer(t, http.StatusNoContent, "")
	require.NoError(t, client.Revoke(context.Background(), "r", "acme"))
	assert.Equal(t, "/auth/sign-out", got.path)
}

func TestServerErrorIsTransient(t *testing.T) {
	client, _ := newIssuer(t, http.StatusBadGateway, "<html>")
	err := client.Revoke(context.Background(), "r", "")
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	client, _ = newIssuer(t, http.StatusUnauthorized, `{"results":[{"messageKey":"invalid-token"}]}`)
	err = client.Revoke(context.Background(), "r", "")
	assert.False(t, IsTransient(err))
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, ActionRefresh, ActionFor("token-expired"))
	assert.Equal(t, ActionRefresh, ActionFor("USER_VERSION_MISMATCH"))
	assert.Equal(t, ActionSignOut, ActionFor("COMMON_ERROR_MISSING_COOKIE_IN_TOKEN"))
	assert.Equal(t, ActionNone, ActionFor("something-else"))
	assert.Equal(t, "token-expired", MessageKeyOf([]byte(`{"results":[{"messageKey":"token-expired"}]}`)))
	assert.Empty(t, MessageKeyOf([]byte(`nope`)))
}
