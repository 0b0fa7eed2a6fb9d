// Package refresh keeps one valid access token per credential holder and
// guarantees that at most one refresh exchange is in flight at a time.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/token"
)

// ErrNoCredential is returned when there is nothing to refresh with.
var ErrNoCredential = errors.New("refresh: no refresh credential")

// Refresh outcomes reported to the Recorder.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeNoCredential = "no_credential"
	OutcomeAbandoned    = "abandoned"
)

const flightKey = "access-token"

// Credentials are what the issuer needs to mint a new access token.
type Credentials struct {
	RefreshToken string
	TenantID     string
}

// Grant is a successful exchange. RefreshToken is empty when not rotated.
type Grant struct {
	AccessToken  string
	RefreshToken string
}

// CredentialSource loads and stores the holder's credentials.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, bool)
	Persist(ctx context.Context, grant Grant) error
}

// Exchanger calls the issuer's refresh endpoint.
type Exchanger interface {
	Exchange(ctx context.Context, creds Credentials) (Grant, error)
}

// ExchangerFunc adapts a function to Exchanger.
type ExchangerFunc func(ctx context.Context, creds Credentials) (Grant, error)

// Exchange calls f.
func (f ExchangerFunc) Exchange(ctx context.Context, creds Credentials) (Grant, error) {
	return f(ctx, creds)
}

// Recorder observes refresh outcomes.
type Recorder interface {
	RecordRefresh(outcome string)
}

// Options tune a Coordinator.
type Options struct {
	Timeout  time.Duration
	Skew     time.Duration
	Codec    token.Codec
	Logger   *slog.Logger
	Recorder Recorder
}

// Coordinator hands out a valid access token, refreshing at most once at a
// time. Create one per process (or per credential holder).
type Coordinator struct {
	source    CredentialSource
	exchanger Exchanger
	group     *Group[string]
	codec     token.Codec
	skew      time.Duration
	logger    *slog.Logger
	recorder  Recorder

	mu    sync.Mutex
	token string
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(source CredentialSource, exchanger Exchanger, opts Options) *Coordinator {
	skew := opts.Skew
	if skew < 0 {
		skew = 0
	}
	return &Coordinator{
		source:    source,
		exchanger: exchanger,
		group:     NewGroup[string](opts.Timeout),
		codec:     opts.Codec,
		skew:      skew,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}
}

// Seed installs a token obtained elsewhere, e.g. from sign-in.
func (c *Coordinator) Seed(accessToken string) {
	c.mu.Lock()
	c.token = accessToken
	c.mu.Unlock()
}

// Invalidate drops the cached token if it is still stale. A token that was
// already replaced by a concurrent refresh is left alone.
func (c *Coordinator) Invalidate(stale string) {
	c.mu.Lock()
	if c.token == stale {
		c.token = ""
	}
	c.mu.Unlock()
}

// AccessToken returns a token that is not within the skew of expiry,
// refreshing if needed. It returns false when no token can be obtained; the
// caller should then sign out.
func (c *Coordinator) AccessToken(ctx context.Context) (string, bool) {
	t := c.cached()
	if t != "" && !c.codec.IsExpired(t, c.skew) {
		return t, true
	}
	return c.refresh(ctx, t)
}

// ForceRefresh ignores the cached token and joins or starts a refresh.
func (c *Coordinator) ForceRefresh(ctx context.Context) (string, bool) {
	return c.refresh(ctx, c.cached())
}

func (c *Coordinator) cached() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// refresh joins or starts a flight replacing stale, the token the caller saw.
// Outcomes are recorded by the flight itself, once.
func (c *Coordinator) refresh(ctx context.Context, stale string) (string, bool) {
	tok, _, err := c.group.Do(ctx, flightKey, func(ctx context.Context) (string, error) {
		return c.exchange(ctx, stale)
	})
	if err != nil {
		if ctx.Err() != nil {
			c.record(OutcomeAbandoned)
		}
		return "", false
	}
	return tok, true
}

func (c *Coordinator) exchange(ctx context.Context, stale string) (string, error) {
	// A flight that finished after the caller read the cache already
	// replaced the token.
	if cur := c.cached(); cur != "" && cur != stale && !c.codec.IsExpired(cur, c.skew) {
		return cur, nil
	}

	ctx, span := otel.Tracer("gatekeeper/refresh").Start(ctx, "refresh.exchange")
	defer span.End()

	creds, ok := c.source.Credentials(ctx)
	if !ok || creds.RefreshToken == "" {
		c.record(OutcomeNoCredential)
		c.Invalidate(stale)
		return "", ErrNoCredential
	}
	grant, err := c.exchanger.Exchange(ctx, creds)
	if err == nil && grant.AccessToken == "" {
		err = identity.ErrRefreshFailed
	}
	if err == nil {
		if err = c.source.Persist(ctx, grant); err != nil {
			span.SetStatus(codes.Error, "persist failed")
		}
	} else {
		span.SetStatus(codes.Error, "exchange failed")
	}
	if err != nil {
		span.RecordError(err)
		c.record(OutcomeFailure)
		if c.logger != nil {
			c.logger.Warn("access token refresh failed", slog.Any("error", err))
		}
		c.Invalidate(stale)
		return "", err
	}
	c.Seed(grant.AccessToken)
	c.record(OutcomeSuccess)
	return grant.AccessToken, nil
}

func (c *Coordinator) record(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordRefresh(outcome)
	}
}
