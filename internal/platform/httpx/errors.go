// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream unavailable")
)

// AuthFailed is the only detail credential failures ever render.
const AuthFailed = "authentication failed"

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrMalformedCredentials):
		Problem(w, http.StatusBadRequest, "Bad Request", AuthFailed)
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrTokenInvalid),
		errors.Is(err, identity.ErrTokenExpired),
		errors.Is(err, identity.ErrVersionMismatch),
		errors.Is(err, identity.ErrRefreshFailed):
		Problem(w, http.StatusUnauthorized, "Unauthorized", AuthFailed)
	case errors.Is(err, identity.ErrAuthorizationDenied), errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrUpstream):
		Problem(w, http.StatusBadGateway, "Bad Gateway", AuthFailed)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
