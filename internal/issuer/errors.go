package issuer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// APIError is a non-2xx response from the identity provider.
type APIError struct {
	Status     int
	MessageKey string
	Message    string
}

func (e *APIError) Error() string {
	if e.MessageKey != "" {
		return fmt.Sprintf("issuer: status %d: %s", e.Status, e.MessageKey)
	}
	return fmt.Sprintf("issuer: status %d", e.Status)
}

// Unwrap maps the message key onto the shared error taxonomy so callers can
// use errors.Is with identity sentinels.
func (e *APIError) Unwrap() error {
	return Classify(e.MessageKey, e.Status)
}

// Classify maps a provider message key and status to an identity error.
// Keys are matched loosely: COMMON_ERROR_TOKEN_EXPIRED and token-expired are
// the same signal.
func Classify(messageKey string, status int) error {
	key := strings.ToLower(strings.ReplaceAll(messageKey, "_", "-"))
	switch {
	case strings.Contains(key, "token-expired"):
		return identity.ErrTokenExpired
	case strings.Contains(key, "version-mismatch"):
		return identity.ErrVersionMismatch
	case strings.Contains(key, "invalid-token"), strings.Contains(key, "missing-cookie"):
		return identity.ErrTokenInvalid
	case status == http.StatusUnauthorized, status == http.StatusBadRequest, status == http.StatusForbidden:
		return identity.ErrInvalidCredentials
	default:
		return nil
	}
}

// Action is what a caller should do with a failed authenticated call.
type Action int

const (
	ActionNone Action = iota
	ActionRefresh
	ActionSignOut
)

// ActionFor maps an issuer message key to the caller's next step.
func ActionFor(messageKey string) Action {
	switch Classify(messageKey, 0) {
	case identity.ErrTokenExpired, identity.ErrVersionMismatch:
		return ActionRefresh
	case identity.ErrTokenInvalid:
		return ActionSignOut
	default:
		return ActionNone
	}
}

// MessageKeyOf extracts results[0].messageKey from an error envelope body.
func MessageKeyOf(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) != nil || len(env.Results) == 0 {
		return ""
	}
	var er errorResult
	if json.Unmarshal(env.Results[0], &er) != nil {
		return ""
	}
	return er.MessageKey
}
