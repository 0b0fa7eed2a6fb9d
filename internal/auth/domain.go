package auth

import (
	"context"
	"time"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
)

//go:generate mockgen -source=domain.go -destination=mocks/auth_mocks.go -package=mocks Issuer Revoker

// Issuer is the identity provider port.
type Issuer interface {
	SignIn(ctx context.Context, req issuer.SignInRequest) (*issuer.Grant, error)
	Refresh(ctx context.Context, refreshToken, tenantID string) (*issuer.Grant, error)
}

// Revoker invalidates a refresh credential upstream, inline or via a queue.
type Revoker interface {
	Revoke(ctx context.Context, refreshToken, tenantID string) error
}

// Credentials is the sign-in request body. Exactly one flow's fields may be set.
type Credentials struct {
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Password  string `json:"password" validate:"omitempty,max=256"`
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
	Method    string `json:"method" validate:"omitempty,alphanum,max=32"`
	Intent    string `json:"intent" validate:"omitempty,oneof=sign-in sign-up"`
	Code      string `json:"code" validate:"omitempty,max=2048"`
	TenantID  string `json:"tenantId" validate:"omitempty,max=128"`
}

// Meta describes the client making a request.
type Meta struct {
	IP        string
	UserAgent string
}

// Outcome is what a successful sign-in or refresh produces. Session still
// holds the refresh credential and must only be written to cookies.
type Outcome struct {
	Session     *identity.Session
	AccessToken string
	URL         string
}

// AuditEntry is a row of the session audit trail.
type AuditEntry struct {
	SessionID string
	UserID    string
	TenantID  string
	Flow      issuer.Flow
	IP        string
	UserAgent string
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
