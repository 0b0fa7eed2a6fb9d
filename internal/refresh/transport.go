package refresh

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
)

const maxErrorBody = 64 << 10

// Transport attaches the access token to outgoing requests and reacts to the
// issuer's message keys: expiry or version mismatch refreshes once and
// retries, an invalid token triggers OnSignOut.
type Transport struct {
	Base        http.RoundTripper
	Coordinator *Coordinator
	OnSignOut   func()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, ok := t.Coordinator.AccessToken(req.Context())
	if !ok {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		t.signOut()
		return nil, fmt.Errorf("refresh: %s %s: %w", req.Method, req.URL.Path, identity.ErrRefreshFailed)
	}
	resp, err := t.send(req, tok)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	switch issuer.ActionFor(issuer.MessageKeyOf(body)) {
	case issuer.ActionRefresh:
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}
		t.Coordinator.Invalidate(tok)
		fresh, ok := t.Coordinator.AccessToken(req.Context())
		if !ok {
			t.signOut()
			return resp, nil
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return resp, nil
			}
			retry.Body = b
		}
		return t.send(retry, fresh)
	case issuer.ActionSignOut:
		t.signOut()
	}
	return resp, nil
}

func (t *Transport) send(req *http.Request, tok string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+tok)
	return t.base().RoundTrip(out)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) signOut() {
	if t.OnSignOut != nil {
		t.OnSignOut()
	}
}
