package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/odyssey-hr/gatekeeper/internal/refresh"
	"github.com/odyssey-hr/gatekeeper/internal/token"
)

// ProbeOptions defines flags for the probe command.
type ProbeOptions struct {
	URL          string
	RefreshToken string
	TenantID     string
	Requests     int
	Skew         time.Duration
	Timeout      time.Duration
	Stdout       io.Writer
	Stderr       io.Writer
}

// ProbeCLI calls a protected URL the way an in-process client would: one
// refresh credential, concurrent requests, a single shared refresh.
type ProbeCLI struct {
	exchanger refresh.Exchanger
	base      http.RoundTripper
	recorder  refresh.Recorder
}

// NewProbeCLI constructs the probe helper.
func NewProbeCLI(exchanger refresh.Exchanger, base http.RoundTripper, recorder refresh.Recorder) *ProbeCLI {
	return &ProbeCLI{exchanger: exchanger, base: base, recorder: recorder}
}

// ProbeCommand issues opts.Requests concurrent GETs. It exits 2 when the
// credential was rejected and 1 on any other failure.
func (c *ProbeCLI) ProbeCommand(ctx context.Context, opts ProbeOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.URL) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "probe: --url is required")
		return 1
	}
	if opts.RefreshToken == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "probe: a refresh token is required")
		return 1
	}
	if opts.Requests <= 0 {
		opts.Requests = 1
	}
	if opts.Skew <= 0 {
		opts.Skew = token.DefaultSkew
	}

	source := refresh.NewMemorySource(opts.RefreshToken, opts.TenantID)
	var signedOut atomic.Bool
	coordinator := refresh.NewCoordinator(source, c.exchanger, refresh.Options{
		Timeout:  opts.Timeout,
		Skew:     opts.Skew,
		Recorder: c.recorder,
	})
	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &refresh.Transport{
			Base:        c.base,
			Coordinator: coordinator,
			OnSignOut: func() {
				signedOut.Store(true)
				source.Forget()
			},
		},
	}

	type result struct {
		status int
		err    error
	}
	results := make(chan result, opts.Requests)
	for range opts.Requests {
		go func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
			if err != nil {
				results <- result{err: err}
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				results <- result{err: err}
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			results <- result{status: resp.StatusCode}
		}()
	}

	failed := 0
	for range opts.Requests {
		r := <-results
		if r.err != nil {
			failed++
			_, _ = fmt.Fprintf(opts.Stderr, "probe: %v\n", r.err)
			continue
		}
		if r.status >= 400 {
			failed++
		}
		_, _ = fmt.Fprintf(opts.Stdout, "%s %d\n", opts.URL, r.status)
	}

	switch {
	case signedOut.Load():
		_, _ = fmt.Fprintln(opts.Stderr, "probe: refresh credential rejected")
		return 2
	case failed > 0:
		return 1
	}
	return 0
}
