package refresh

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-hr/gatekeeper/internal/token"
)

func accessToken(t *testing.T, ttl time.Duration, id string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

type countingExchanger struct {
	calls   atomic.Int32
	release chan struct{}
	grant   Grant
	err     error
	seen    []Credentials
	mu      sync.Mutex
}

func (e *countingExchanger) Exchange(ctx context.Context, creds Credentials) (Grant, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.seen = append(e.seen, creds)
	e.mu.Unlock()
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return Grant{}, ctx.Err()
		}
	}
	return e.grant, e.err
}

type outcomes struct {
	mu sync.Mutex
	m  map[string]int
}

func (o *outcomes) RecordRefresh(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.m == nil {
		o.m = map[string]int{}
	}
	o.m[outcome]++
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	fresh := accessToken(t, time.Hour, "fresh")
	ex := &countingExchanger{release: make(chan struct{}), grant: Grant{AccessToken: fresh, RefreshToken: "r2"}}
	source := NewMemorySource("r1", "acme")
	c := NewCoordinator(source, ex, Options{Skew: token.DefaultSkew})

	const n = 25
	results := make([]string, n)
	oks := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = c.AccessToken(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	assert.EqualValues(t, 1, ex.calls.Load())
	for i := 0; i < n; i++ {
		assert.True(t, oks[i])
		assert.Equal(t, fresh, results[i])
	}
	assert.Equal(t, Credentials{RefreshToken: "r1", TenantID: "acme"}, ex.seen[0])

	creds, ok := source.Credentials(context.Background())
	require.True(t, ok)
	assert.Equal(t, "r2", creds.RefreshToken, "rotated credential persisted")
}

func TestConcurrentFailureResolvesAllToNull(t *testing.T) {
	ex := &countingExchanger{release: make(chan struct{}), err: errors.New("issuer down")}
	rec := &outcomes{}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Recorder: rec})

	const n = 10
	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.AccessToken(context.Background()); ok {
				successes.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(ex.release)
	wg.Wait()

	assert.Zero(t, successes.Load())
	assert.EqualValues(t, 1, ex.calls.Load())
	assert.Equal(t, 1, rec.m[OutcomeFailure], "one failed flight is recorded once")
}

func TestCachedTokenSkipsRefresh(t *testing.T) {
	ex := &countingExchanger{}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Skew: token.DefaultSkew})
	cached := accessToken(t, time.Hour, "cached")
	c.Seed(cached)

	tok, ok := c.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, cached, tok)
	assert.Zero(t, ex.calls.Load())
}

func TestTokenInsideSkewIsRefreshed(t *testing.T) {
	fresh := accessToken(t, time.Hour, "fresh")
	ex := &countingExchanger{grant: Grant{AccessToken: fresh}}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Skew: token.DefaultSkew})
	c.Seed(accessToken(t, 30*time.Second, "nearly-expired"))

	tok, ok := c.AccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, fresh, tok)
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestMissingCredentialFailsFast(t *testing.T) {
	ex := &countingExchanger{}
	rec := &outcomes{}
	c := NewCoordinator(NewMemorySource("", ""), ex, Options{Recorder: rec})

	_, ok := c.AccessToken(context.Background())
	assert.False(t, ok)
	assert.Zero(t, ex.calls.Load())
	assert.Equal(t, 1, rec.m[OutcomeNoCredential])
}

func TestEmptyGrantIsFailure(t *testing.T) {
	c := NewCoordinator(NewMemorySource("r1", ""), &countingExchanger{}, Options{})
	_, ok := c.AccessToken(context.Background())
	assert.False(t, ok)
}

func TestSlowIssuerTimesOut(t *testing.T) {
	ex := &countingExchanger{release: make(chan struct{})}
	defer close(ex.release)
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, ok := c.AccessToken(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAbandonedWaiterDoesNotCancelFlight(t *testing.T) {
	fresh := accessToken(t, time.Hour, "fresh")
	ex := &countingExchanger{release: make(chan struct{}), grant: Grant{AccessToken: fresh}}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := c.AccessToken(ctx)
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.False(t, <-done)

	close(ex.release)
	require.Eventually(t, func() bool {
		tok, ok := c.AccessToken(context.Background())
		return ok && tok == fresh
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestLateCallerReusesTokenFromFinishedFlight(t *testing.T) {
	stale := accessToken(t, -time.Minute, "stale")
	fresh := accessToken(t, time.Hour, "fresh")
	ex := &countingExchanger{grant: Grant{AccessToken: accessToken(t, time.Hour, "second")}}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{Skew: token.DefaultSkew})

	// the caller saw stale, then another flight installed fresh before this
	// caller reached the group
	c.Seed(fresh)
	tok, ok := c.refresh(context.Background(), stale)
	require.True(t, ok)
	assert.Equal(t, fresh, tok)
	assert.Zero(t, ex.calls.Load())
}

func TestInvalidateKeepsNewerToken(t *testing.T) {
	c := NewCoordinator(NewMemorySource("", ""), &countingExchanger{}, Options{})
	c.Seed("new")
	c.Invalidate("old")
	assert.Equal(t, "new", c.cached())
	c.Invalidate("new")
	assert.Empty(t, c.cached())
}

func TestTransportRetriesOnceAfterExpiry(t *testing.T) {
	stale := accessToken(t, time.Hour, "stale")
	fresh := accessToken(t, time.Hour, "fresh")
	var hits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "Bearer "+fresh {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"results":[{"messageKey":"COMMON_ERROR_TOKEN_EXPIRED"}]}`))
	}))
	defer api.Close()

	ex := &countingExchanger{grant: Grant{AccessToken: fresh}}
	c := NewCoordinator(NewMemorySource("r1", ""), ex, Options{})
	c.Seed(stale)
	client := &http.Client{Transport: &Transport{Coordinator: c}}

	req, err := http.NewRequest(http.MethodPost, api.URL+"/leave", strings.NewReader(`{"days":2}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestTransportSignsOutOnInvalidToken(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"results":[{"messageKey":"invalid-token"}]}`))
	}))
	defer api.Close()

	c := NewCoordinator(NewMemorySource("r1", ""), &countingExchanger{}, Options{})
	c.Seed(accessToken(t, time.Hour, "t"))
	signedOut := false
	client := &http.Client{Transport: &Transport{Coordinator: c, OnSignOut: func() { signedOut = true }}}

	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, signedOut)
}

func TestTransportWithoutTokenSignsOut(t *testing.T) {
	c := NewCoordinator(NewMemorySource("", ""), &countingExchanger{}, Options{})
	signedOut := false
	client := &http.Client{Transport: &Transport{Coordinator: c, OnSignOut: func() { signedOut = true }}}

	_, err := client.Get("http://127.0.0.1:1/never")
	require.Error(t, err)
	assert.True(t, signedOut)
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestTransportWithoutTokenClosesBody(t *testing.T) {
	c := NewCoordinator(NewMemorySource("", ""), &countingExchanger{}, Options{})
	tr := &Transport{Coordinator: c}

	body := &closeTracker{Reader: strings.NewReader(`{"a":1}`)}
	req := httptest.NewRequest(http.MethodPost, "http://issuer.test/things", body)
	req.Body = body
	_, err := tr.RoundTrip(req)
	require.Error(t, err)
	assert.True(t, body.closed)
}
