package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-hr/gatekeeper/internal/authz"
	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
	"github.com/odyssey-hr/gatekeeper/internal/refresh"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
	"github.com/odyssey-hr/gatekeeper/internal/token"
)

// Sign-in outcomes reported to the Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

const revokeTimeout = 3 * time.Second

var tracer = otel.Tracer("gatekeeper/auth")

// Recorder observes sign-in attempts.
type Recorder interface {
	RecordSignIn(flow, outcome string)
}

// Revocations tracks signed-out sessions.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Options wires the optional collaborators of a Service.
type Options struct {
	Repo           Repository
	Revocations    Revocations
	Revoker        Revoker
	Codec          token.Codec
	RefreshTimeout time.Duration
	// Skew is how long before access-token expiry a session reports
	// RefreshDue. Defaults to token.DefaultSkew.
	Skew     time.Duration
	Logger   *slog.Logger
	Recorder Recorder
}

// Service wraps the session lifecycle: sign-in, refresh, read and sign-out.
type Service struct {
	issuer   Issuer
	sessions *shared.SessionManager
	opts     Options
	refresh  *refresh.Group[*issuer.Grant]
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(iss Issuer, sessions *shared.SessionManager, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Skew <= 0 {
		opts.Skew = token.DefaultSkew
	}
	return &Service{
		issuer:   iss,
		sessions: sessions,
		opts:     opts,
		refresh:  refresh.NewGroup[*issuer.Grant](opts.RefreshTimeout),
		now:      time.Now,
	}
}

// SignIn resolves the flow, calls the issuer and starts a session.
func (s *Service) SignIn(ctx context.Context, creds Credentials, meta Meta) (*Outcome, error) {
	flow, err := ResolveFlow(creds)
	if err != nil {
		s.record("unknown", OutcomeMalformed)
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "auth.SignIn")
	defer span.End()
	span.SetAttributes(attribute.String("auth.flow", string(flow)))

	grant, err := s.issuer.SignIn(ctx, creds.SignInRequest(flow))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issuer sign-in failed")
		return nil, s.signInFailed(flow, err)
	}
	claims, err := s.opts.Codec.Decode(grant.AccessToken)
	if err != nil {
		s.record(string(flow), OutcomeError)
		return nil, fmt.Errorf("auth: sign-in: %w", identity.ErrTokenInvalid)
	}

	user := userFromGrant(grant, claims)
	if flow == issuer.FlowRegister {
		user.Name = displayName(creds.FirstName, creds.LastName)
		user.IsTemporaryUser = true
	}
	tenantID := firstNonEmpty(grant.TenantID, claims.TenantID, strings.TrimSpace(creds.TenantID))
	user.TenantID = tenantID

	sess := s.sessions.New(user, grant.RefreshToken, tenantID)
	s.audit(ctx, sess, flow, meta)
	s.record(string(flow), OutcomeSuccess)

	return &Outcome{Session: sess, AccessToken: grant.AccessToken, URL: landingURL(user, grant)}, nil
}

// Refresh exchanges the refresh credential for a new access token and
// rotates the session. Concurrent refreshes of one credential share a single
// issuer call.
func (s *Service) Refresh(ctx context.Context, sess *identity.Session, refreshToken, tenantID string) (*Outcome, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("auth: refresh: %w", identity.ErrRefreshFailed)
	}
	if sess != nil {
		revoked, err := s.isRevoked(ctx, sess.ID)
		if err != nil || revoked {
			return nil, fmt.Errorf("auth: refresh: %w", identity.ErrRefreshFailed)
		}
	}
	if tenantID == "" && sess != nil {
		tenantID = sess.TenantID
	}

	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	grant, joined, err := s.refresh.Do(ctx, credentialKey(refreshToken), func(ctx context.Context) (*issuer.Grant, error) {
		return s.issuer.Refresh(ctx, refreshToken, tenantID)
	})
	span.SetAttributes(attribute.Bool("auth.refresh.shared", joined))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		s.opts.Logger.Warn("session refresh failed", slog.Any("error", err))
		if errors.Is(err, identity.ErrTokenInvalid) || errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, fmt.Errorf("auth: refresh: %w", identity.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("auth: refresh: %w: %w", identity.ErrRefreshFailed, err)
	}
	claims, err := s.opts.Codec.Decode(grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("auth: refresh: %w", identity.ErrTokenInvalid)
	}

	var user identity.User
	if sess != nil {
		user = sess.User
		applyClaims(&user, claims)
	} else {
		user = userFromGrant(grant, claims)
	}
	user.TenantID = firstNonEmpty(claims.TenantID, grant.TenantID, tenantID)

	rotated := firstNonEmpty(grant.RefreshToken, refreshToken)
	next := s.sessions.New(user, rotated, user.TenantID)
	if sess != nil {
		next.ID = sess.ID
		next.CSRFToken = sess.CSRFToken
	}
	return &Outcome{Session: next, AccessToken: grant.AccessToken, URL: landingURL(user, grant)}, nil
}

// Session returns the client view of sess, or nil when it is absent, expired
// or signed out. RefreshDue is set once the access token is inside the skew
// buffer.
func (s *Service) Session(ctx context.Context, sess *identity.Session) *identity.ClientSession {
	if sess == nil || sess.Expired(s.now()) {
		return nil
	}
	revoked, err := s.isRevoked(ctx, sess.ID)
	if err != nil {
		s.opts.Logger.Warn("revocation lookup failed", slog.Any("error", err))
	}
	if revoked {
		return nil
	}
	client := sess.Client()
	client.RefreshDue = sess.AccessExpired(s.now(), s.opts.Skew)
	return client
}

// IsRevoked reports whether sess was signed out. Lookup errors are treated as
// not revoked.
func (s *Service) IsRevoked(ctx context.Context, sess *identity.Session) bool {
	if sess == nil {
		return false
	}
	revoked, err := s.isRevoked(ctx, sess.ID)
	if err != nil {
		s.opts.Logger.Warn("revocation lookup failed", slog.Any("error", err))
	}
	return revoked
}

// SignOut ends sess locally and asks the issuer to revoke the refresh
// credential. Nothing here can fail the sign-out; errors are logged.
func (s *Service) SignOut(ctx context.Context, sess *identity.Session, refreshToken, tenantID string) {
	ctx, span := tracer.Start(ctx, "auth.SignOut")
	defer span.End()

	if sess != nil {
		if s.opts.Revocations != nil {
			if err := s.opts.Revocations.Revoke(ctx, sess.ID, sess.Expires); err != nil {
				s.opts.Logger.Warn("session revocation failed", slog.Any("error", err))
			}
		}
		if s.opts.Repo != nil {
			if err := s.opts.Repo.EndSession(ctx, sess.ID, s.now()); err != nil {
				s.opts.Logger.Warn("end session audit", slog.Any("error", err))
			}
		}
		if refreshToken == "" {
			refreshToken = sess.RefreshToken
		}
		if tenantID == "" {
			tenantID = sess.TenantID
		}
	}
	if refreshToken == "" || s.opts.Revoker == nil {
		return
	}
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
	defer cancel()
	if err := s.opts.Revoker.Revoke(revokeCtx, refreshToken, tenantID); err != nil {
		span.RecordError(err)
		s.opts.Logger.Warn("issuer sign-out notification failed", slog.Any("error", err))
	}
}

func (s *Service) signInFailed(flow issuer.Flow, err error) error {
	var apiErr *issuer.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		s.record(string(flow), OutcomeRejected)
		s.opts.Logger.Debug("sign-in rejected", slog.String("flow", string(flow)), slog.Int("status", apiErr.Status))
		return fmt.Errorf("auth: sign-in: %w", identity.ErrInvalidCredentials)
	}
	s.record(string(flow), OutcomeError)
	s.opts.Logger.Warn("issuer sign-in failed", slog.String("flow", string(flow)), slog.Any("error", err))
	return fmt.Errorf("auth: sign-in: %w", err)
}

func (s *Service) isRevoked(ctx context.Context, sessionID string) (bool, error) {
	if s.opts.Revocations == nil {
		return false, nil
	}
	return s.opts.Revocations.IsRevoked(ctx, sessionID)
}

func (s *Service) audit(ctx context.Context, sess *identity.Session, flow issuer.Flow, meta Meta) {
	if s.opts.Repo == nil {
		return
	}
	entry := AuditEntry{
		SessionID: sess.ID,
		UserID:    sess.User.ID,
		TenantID:  sess.TenantID,
		Flow:      flow,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Device:    DeviceLabel(meta.UserAgent),
		CreatedAt: s.now(),
		ExpiresAt: sess.Expires,
	}
	if err := s.opts.Repo.RecordSignIn(ctx, entry); err != nil {
		s.opts.Logger.Warn("record sign-in audit", slog.Any("error", err))
	}
}

func (s *Service) record(flow, outcome string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSignIn(flow, outcome)
	}
}

func userFromGrant(grant *issuer.Grant, claims *token.Claims) identity.User {
	user := identity.User{
		UserID:                           grant.UserID,
		Email:                            firstNonEmpty(grant.Email, claims.Email),
		Name:                             strings.TrimSpace(grant.FirstName + " " + grant.LastName),
		IsPasswordChangedForTheFirstTime: true,
		Tier:                             identity.Tier(firstNonEmpty(grant.Tier, claims.Tier)),
		TenantStatus:                     firstNonEmpty(grant.TenantStatus, claims.TenantStatus),
		Employee:                         grant.Employee,
	}
	if user.UserID == 0 {
		user.UserID = claims.UserID
	}
	user.ID = claims.Subject
	if user.ID == "" && user.UserID != 0 {
		user.ID = strconv.FormatInt(user.UserID, 10)
	}
	if user.Name == "" {
		user.Name = claims.Name
	}

	names := grant.Roles
	if len(names) == 0 {
		names = claims.Roles
	}
	user.Roles, _ = identity.ParseRoleSet(names)

	switch {
	case grant.IsPasswordChangedForTheFirstTime != nil:
		user.IsPasswordChangedForTheFirstTime = *grant.IsPasswordChangedForTheFirstTime
	case claims.PasswordChanged != nil:
		user.IsPasswordChangedForTheFirstTime = *claims.PasswordChanged
	}
	if claims.ExpiresAt != nil {
		user.TokenDuration = claims.ExpiresAt.Unix()
	}
	return user
}

// applyClaims re-derives the token-backed fields of user after a refresh.
func applyClaims(user *identity.User, claims *token.Claims) {
	if claims.ExpiresAt != nil {
		user.TokenDuration = claims.ExpiresAt.Unix()
	}
	if len(claims.Roles) > 0 {
		user.Roles, _ = identity.ParseRoleSet(claims.Roles)
	}
	if claims.Tier != "" {
		user.Tier = identity.Tier(claims.Tier)
	}
	if claims.TenantStatus != "" {
		user.TenantStatus = claims.TenantStatus
	}
	if claims.PasswordChanged != nil {
		user.IsPasswordChangedForTheFirstTime = *claims.PasswordChanged
	}
}

func landingURL(user identity.User, grant *issuer.Grant) string {
	switch {
	case !user.IsPasswordChangedForTheFirstTime:
		return authz.RouteResetPassword
	case grant.IsOrganizationSetupComplete != nil && !*grant.IsOrganizationSetupComplete:
		return authz.RouteOrganizationSetup
	default:
		return authz.RouteDashboard
	}
}

func displayName(first, last string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last)))
}

func credentialKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
