package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
)

func TestResolveFlow(t *testing.T) {
	cases := []struct {
		name  string
		creds Credentials
		want  issuer.Flow
	}{
		{"password", Credentials{Email: "a@b.co", Password: "secret"}, issuer.FlowPassword},
		{"register", Credentials{Email: "a@b.co", Password: "secret", FirstName: "Ada", LastName: "Lovelace"}, issuer.FlowRegister},
		{"oauth", Credentials{Method: "google", Code: "xyz"}, issuer.FlowOAuth},
		{"oauth with email hint", Credentials{Method: "google", Code: "xyz", Email: "a@b.co"}, issuer.FlowOAuth},
		{"otp", Credentials{Method: GuestMethod, Email: "a@b.co", Code: "123456"}, issuer.FlowOTP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveFlow(tc.creds)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveFlowRejectsAmbiguousInput(t *testing.T) {
	cases := map[string]Credentials{
		"empty":                {},
		"email only":           {Email: "a@b.co"},
		"one name":             {Email: "a@b.co", Password: "secret", FirstName: "Ada"},
		"password and code":    {Email: "a@b.co", Password: "secret", Method: "google", Code: "x"},
		"guest without email":  {Method: GuestMethod, Code: "123456"},
		"oauth without code":   {Method: "google"},
		"bad email":            {Email: "not-an-email", Password: "secret"},
		"provider injection":   {Method: "../admin", Code: "x"},
		"unknown oauth intent": {Method: "google", Code: "x", Intent: "delete"},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveFlow(creds)
			assert.ErrorIs(t, err, identity.ErrMalformedCredentials)
		})
	}
}

func TestSignInRequestDefaultsOAuthIntent(t *testing.T) {
	req := Credentials{Method: "Google", Code: " xyz "}.SignInRequest(issuer.FlowOAuth)
	assert.Equal(t, "google", req.Provider)
	assert.Equal(t, "sign-in", req.Intent)
	assert.Equal(t, "xyz", req.Code)
}
