// Package issuer is the HTTP client for the upstream identity provider that
// mints access and refresh tokens.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TenantHeader carries the tenant slug on every upstream call.
const TenantHeader = "X-Tenant-ID"

const maxBody = 1 << 20

// Flow identifies the upstream sign-in grant.
type Flow string

const (
	FlowPassword Flow = "password"
	FlowRegister Flow = "register"
	FlowOAuth    Flow = "oauth"
	FlowOTP      Flow = "otp"
)

// SignInRequest is a resolved sign-in attempt.
type SignInRequest struct {
	Flow      Flow
	Email     string
	Password  string
	FirstName string
	LastName  string
	Provider  string
	Intent    string
	Code      string
	TenantID  string
}

// Grant is results[0] of a successful token response.
type Grant struct {
	AccessToken                      string          `json:"accessToken"`
	RefreshToken                     string          `json:"refreshToken"`
	UserID                           int64           `json:"userId,omitempty"`
	Email                            string          `json:"email,omitempty"`
	FirstName                        string          `json:"firstName,omitempty"`
	LastName                         string          `json:"lastName,omitempty"`
	Roles                            []string        `json:"roles,omitempty"`
	TenantID                         string          `json:"tenantId,omitempty"`
	Tier                             string          `json:"tier,omitempty"`
	TenantStatus                     string          `json:"tenantStatus,omitempty"`
	IsPasswordChangedForTheFirstTime *bool           `json:"isPasswordChangedForTheFirstTime,omitempty"`
	IsOrganizationSetupComplete      *bool           `json:"isOrganizationSetupComplete,omitempty"`
	Employee                         json.RawMessage `json:"employee,omitempty"`
}

type envelope struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"results"`
}

type errorResult struct {
	MessageKey string `json:"messageKey"`
	Message    string `json:"message"`
}

// Client talks to the identity provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with a bounded per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SignIn runs the upstream grant for req.Flow.
func (c *Client) SignIn(ctx context.Context, req SignInRequest) (*Grant, error) {
	path, body, err := signInCall(req)
	if err != nil {
		return nil, err
	}
	var grant Grant
	if err := c.post(ctx, path, req.TenantID, body, &grant); err != nil {
		return nil, err
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("issuer: sign-in response without access token")
	}
	return &grant, nil
}

// Refresh exchanges a refresh credential for a new access token. The response
// may carry a rotated refresh credential.
func (c *Client) Refresh(ctx context.Context, refreshToken, tenantID string) (*Grant, error) {
	var grant Grant
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.post(ctx, "/auth/refresh-token", tenantID, body, &grant); err != nil {
		return nil, err
	}
	if grant.AccessToken == "" {
		return nil, fmt.Errorf("issuer: refresh response without access token")
	}
	return &grant, nil
}

// Revoke asks the provider to invalidate a refresh credential.
func (c *Client) Revoke(ctx context.Context, refreshToken, tenantID string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.post(ctx, "/auth/sign-out", tenantID, body, nil)
}

func signInCall(req SignInRequest) (string, any, error) {
	switch req.Flow {
	case FlowPassword:
		return "/auth/sign-in", map[string]string{"email": req.Email, "password": req.Password}, nil
	case FlowRegister:
		return "/auth/signup/super-admin", map[string]string{
			"firstName": req.FirstName,
			"lastName":  req.LastName,
			"email":     req.Email,
			"password":  req.Password,
		}, nil
	case FlowOAuth:
		if req.Provider == "" || req.Intent == "" {
			return "", nil, fmt.Errorf("issuer: oauth flow needs provider and intent")
		}
		return "/auth/" + req.Provider + "/" + req.Intent, map[string]string{"code": req.Code}, nil
	case FlowOTP:
		return "/auth/guest/verify-otp", map[string]string{"email": req.Email, "otp": req.Code}, nil
	default:
		return "", nil, fmt.Errorf("issuer: unknown flow %q", req.Flow)
	}
}

func (c *Client) post(ctx context.Context, path, tenantID string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("issuer: %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("issuer: %s: read body: %w", path, err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			return fmt.Errorf("issuer: %s: decode envelope: %w", path, err)
		}
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(env.Results) > 0 {
			var er errorResult
			if json.Unmarshal(env.Results[0], &er) == nil {
				apiErr.MessageKey = er.MessageKey
				apiErr.Message = er.Message
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if len(env.Results) == 0 {
		return fmt.Errorf("issuer: %s: empty results", path)
	}
	if err := json.Unmarshal(env.Results[0], out); err != nil {
		return fmt.Errorf("issuer: %s: decode result: %w", path, err)
	}
	return nil
}

// IsTransient reports whether err came from the transport rather than from
// an upstream decision.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return err != nil
}
