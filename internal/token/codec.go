// Package token reads bearer-token claims without verifying signatures.
//
// Verification is the identity provider's job; the values decoded here only
// drive routing and refresh timing, never trust decisions on their own.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// DefaultSkew is subtracted from a token's lifetime when testing for expiry.
const DefaultSkew = 60 * time.Second

// ErrMalformed is returned for anything that is not a decodable JWT.
var ErrMalformed = errors.New("token: malformed")

// Claims is the payload carried by access tokens from the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	UserID          int64    `json:"userId,omitempty"`
	Email           string   `json:"email,omitempty"`
	Name            string   `json:"name,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	TenantID        string   `json:"tenantId,omitempty"`
	Tier            string   `json:"tier,omitempty"`
	TenantStatus    string   `json:"tenantStatus,omitempty"`
	PasswordChanged *bool    `json:"isPasswordChangedForTheFirstTime,omitempty"`
}

// Principal maps the claims onto an authorization principal. Unknown role
// names are dropped.
func (c *Claims) Principal() *identity.Principal {
	roles, _ := identity.ParseRoleSet(c.Roles)
	p := &identity.Principal{
		ID:           c.Subject,
		Email:        c.Email,
		Name:         c.Name,
		Roles:        roles,
		TenantID:     c.TenantID,
		Tier:         identity.Tier(c.Tier),
		TenantStatus: c.TenantStatus,
	}
	if p.ID == "" && c.UserID != 0 {
		p.ID = strconv.FormatInt(c.UserID, 10)
	}
	if c.PasswordChanged != nil {
		p.MustChangePassword = !*c.PasswordChanged
	}
	if c.ExpiresAt != nil {
		p.TokenExpiry = c.ExpiresAt.Time
	}
	return p
}

// Codec decodes tokens. The zero value uses time.Now.
type Codec struct {
	Now func() time.Time
}

func (c Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Decode extracts the claims of raw without verifying its signature.
func (c Codec) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Expiry returns the exp claim of raw.
func (c Codec) Expiry(raw string) (time.Time, bool) {
	claims, err := c.Decode(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpired reports whether raw expires within skew of now. Tokens that
// cannot be decoded or carry no exp claim are expired.
func (c Codec) IsExpired(raw string, skew time.Duration) bool {
	exp, ok := c.Expiry(raw)
	if !ok {
		return true
	}
	return !c.now().Add(skew).Before(exp)
}

// ExpiresIn returns the remaining lifetime of raw, or zero.
func (c Codec) ExpiresIn(raw string) time.Duration {
	exp, ok := c.Expiry(raw)
	if !ok {
		return 0
	}
	if d := exp.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}
