package identity

import (
	"encoding/json"
	"time"
)

// Tier is the subscription tier of a tenant.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// Principal is the authenticated subject as seen by authorization.
type Principal struct {
	ID                 string
	Email              string
	Name               string
	Roles              RoleSet
	TenantID           string
	Tier               Tier
	TenantStatus       string
	MustChangePassword bool
	TokenExpiry        time.Time
}

// HasRole reports whether the principal holds r.
func (p *Principal) HasRole(r Role) bool {
	return p != nil && p.Roles.Has(r)
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	return p != nil && p.Roles.HasAny(roles...)
}

// User is the session-carried view of a principal.
type User struct {
	ID                               string          `json:"id"`
	UserID                           int64           `json:"userId,omitempty"`
	Name                             string          `json:"name"`
	Email                            string          `json:"email"`
	Roles                            RoleSet         `json:"roles"`
	TokenDuration                    int64           `json:"tokenDuration"`
	IsPasswordChangedForTheFirstTime bool            `json:"isPasswordChangedForTheFirstTime"`
	TenantID                         string          `json:"tenantId,omitempty"`
	Tier                             Tier            `json:"tier,omitempty"`
	TenantStatus                     string          `json:"tenantStatus,omitempty"`
	IsTemporaryUser                  bool            `json:"isTemporaryUser,omitempty"`
	Employee                         json.RawMessage `json:"employee,omitempty"`
}

// Principal converts the session user into an authorization principal.
func (u User) Principal() *Principal {
	roles := u.Roles
	if roles == nil {
		roles = RoleSet{}
	}
	var exp time.Time
	if u.TokenDuration > 0 {
		exp = time.Unix(u.TokenDuration, 0)
	}
	return &Principal{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Roles:              roles,
		TenantID:           u.TenantID,
		Tier:               u.Tier,
		TenantStatus:       u.TenantStatus,
		MustChangePassword: !u.IsPasswordChangedForTheFirstTime,
		TokenExpiry:        exp,
	}
}
