package refresh

import (
	"context"

	"github.com/odyssey-hr/gatekeeper/internal/issuer"
)

// IssuerRefresher is the part of issuer.Client used for exchanges.
type IssuerRefresher interface {
	Refresh(ctx context.Context, refreshToken, tenantID string) (*issuer.Grant, error)
}

// IssuerExchanger adapts an issuer client to Exchanger.
func IssuerExchanger(c IssuerRefresher) Exchanger {
	return ExchangerFunc(func(ctx context.Context, creds Credentials) (Grant, error) {
		g, err := c.Refresh(ctx, creds.RefreshToken, creds.TenantID)
		if err != nil {
			return Grant{}, err
		}
		return Grant{AccessToken: g.AccessToken, RefreshToken: g.RefreshToken}, nil
	})
}
