package refresh

import (
	"context"
	"sync"
)

// MemorySource keeps credentials in process memory.
type MemorySource struct {
	mu    sync.Mutex
	creds Credentials
}

// NewMemorySource constructs a MemorySource.
func NewMemorySource(refreshToken, tenantID string) *MemorySource {
	return &MemorySource{creds: Credentials{RefreshToken: refreshToken, TenantID: tenantID}}
}

// Credentials returns the current refresh credential.
func (s *MemorySource) Credentials(context.Context) (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.creds.RefreshToken != ""
}

// Persist stores a rotated refresh credential, if any.
func (s *MemorySource) Persist(_ context.Context, grant Grant) error {
	if grant.RefreshToken == "" {
		return nil
	}
	s.mu.Lock()
	s.creds.RefreshToken = grant.RefreshToken
	s.mu.Unlock()
	return nil
}

// Forget drops the refresh credential so later refreshes fail fast.
func (s *MemorySource) Forget() {
	s.mu.Lock()
	s.creds.RefreshToken = ""
	s.mu.Unlock()
}
