package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
)

// GuestMethod selects the one-time-code flow.
const GuestMethod = "guest"

var validate = validator.New()

// ResolveFlow picks the upstream flow implied by the supplied fields. Any
// input that matches no flow, or more than one, is malformed.
func ResolveFlow(c Credentials) (issuer.Flow, error) {
	c = c.trimmed()
	if err := validate.Struct(c); err != nil {
		return "", fmt.Errorf("auth: %w", identity.ErrMalformedCredentials)
	}

	hasNames := c.FirstName != "" || c.LastName != ""
	candidates := map[issuer.Flow]bool{
		issuer.FlowPassword: c.Email != "" && c.Password != "" && !hasNames && c.Method == "" && c.Code == "",
		issuer.FlowRegister: c.Email != "" && c.Password != "" && c.FirstName != "" && c.LastName != "" &&
			c.Method == "" && c.Code == "",
		issuer.FlowOAuth: c.Method != "" && c.Method != GuestMethod && c.Code != "" &&
			c.Password == "" && !hasNames,
		issuer.FlowOTP: c.Method == GuestMethod && c.Email != "" && c.Code != "" &&
			c.Password == "" && !hasNames,
	}

	var matched []issuer.Flow
	for flow, ok := range candidates {
		if ok {
			matched = append(matched, flow)
		}
	}
	if len(matched) != 1 {
		return "", fmt.Errorf("auth: %w", identity.ErrMalformedCredentials)
	}
	return matched[0], nil
}

// SignInRequest converts credentials for the resolved flow.
func (c Credentials) SignInRequest(flow issuer.Flow) issuer.SignInRequest {
	c = c.trimmed()
	req := issuer.SignInRequest{
		Flow:      flow,
		Email:     c.Email,
		Password:  c.Password,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Code:      c.Code,
		TenantID:  c.TenantID,
	}
	if flow == issuer.FlowOAuth {
		req.Provider = strings.ToLower(c.Method)
		req.Intent = c.Intent
		if req.Intent == "" {
			req.Intent = "sign-in"
		}
	}
	return req
}

func (c Credentials) trimmed() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Method = strings.TrimSpace(c.Method)
	c.Intent = strings.TrimSpace(c.Intent)
	c.Code = strings.TrimSpace(c.Code)
	c.TenantID = strings.TrimSpace(c.TenantID)
	return c
}
