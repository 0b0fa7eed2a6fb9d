package identity

import "time"

// Session is the server-side session carried in the encrypted session cookie.
type Session struct {
	ID           string    `json:"id"`
	User         User      `json:"user"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TenantID     string    `json:"tenantId,omitempty"`
	CSRFToken    string    `json:"csrfToken,omitempty"`
	Expires      time.Time `json:"expires"`
}

// ClientSession is what leaves the server. It never carries the refresh credential.
type ClientSession struct {
	User       User      `json:"user"`
	Expires    time.Time `json:"expires"`
	CSRFToken  string    `json:"csrfToken,omitempty"`
	RefreshDue bool      `json:"refreshDue"`
}

// Client strips credentials from the session.
func (s *Session) Client() *ClientSession {
	if s == nil {
		return nil
	}
	return &ClientSession{User: s.User, Expires: s.Expires, CSRFToken: s.CSRFToken}
}

// Principal returns the authorization principal for the session user.
func (s *Session) Principal() *Principal {
	if s == nil {
		return nil
	}
	p := s.User.Principal()
	if p.TenantID == "" {
		p.TenantID = s.TenantID
	}
	return p
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.Expires)
}

// AccessExpired reports whether the cached access-token expiry has elapsed,
// allowing skew. A zero expiry counts as expired.
func (s *Session) AccessExpired(now time.Time, skew time.Duration) bool {
	if s == nil || s.User.TokenDuration <= 0 {
		return true
	}
	return !now.Add(skew).Before(time.Unix(s.User.TokenDuration, 0))
}
