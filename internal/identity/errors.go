package identity

import "errors"

// Credential and session failures. Callers outside the auth layer should only
// ever see these, never the underlying crypto or transport error.
var (
	// ErrDecryptFailure indicates a sealed value could not be opened.
	ErrDecryptFailure = errors.New("decrypt failure")
	// ErrTokenExpired indicates the bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the token or session was rejected outright.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrVersionMismatch indicates the issuer requires a token re-issue.
	ErrVersionMismatch = errors.New("token version mismatch")
	// ErrRefreshFailed indicates the refresh exchange did not yield a token.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrAuthorizationDenied indicates the principal may not view the route.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrMalformedCredentials indicates a sign-in request matched no single flow.
	ErrMalformedCredentials = errors.New("malformed credentials")
	// ErrInvalidCredentials indicates the identity provider rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
