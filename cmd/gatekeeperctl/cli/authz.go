package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/odyssey-hr/gatekeeper/internal/authz"
	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// AuthzOptions defines flags for the authz check command.
type AuthzOptions struct {
	Roles              []string
	Tier               string
	MustChangePassword bool
	Anonymous          bool
	Paths              []string
	JSONOutput         bool
	Stdout             io.Writer
	Stderr             io.Writer
}

// AuthzResult is one evaluated path.
type AuthzResult struct {
	Path     string `json:"path"`
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason"`
	Rule     string `json:"rule,omitempty"`
}

// AuthzCheckCommand evaluates paths against the built-in policy for a
// synthetic principal. It exits 10 when any path is denied.
func AuthzCheckCommand(opts AuthzOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(opts.Paths) == 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "authz check: at least one path is required")
		return 1
	}

	var principal *identity.Principal
	if !opts.Anonymous {
		roles, unknown := identity.ParseRoleSet(opts.Roles)
		if len(unknown) > 0 {
			sort.Strings(unknown)
			_, _ = fmt.Fprintf(opts.Stderr, "authz check: unknown roles %s\n", strings.Join(unknown, ", "))
			return 1
		}
		principal = &identity.Principal{
			ID:                 "cli",
			Roles:              roles,
			Tier:               identity.Tier(strings.ToUpper(opts.Tier)),
			MustChangePassword: opts.MustChangePassword,
		}
	}

	engine := authz.NewEngine(authz.DefaultPolicy())
	results := make([]AuthzResult, 0, len(opts.Paths))
	denied := false
	for _, p := range opts.Paths {
		d := engine.Authorize(principal, p)
		denied = denied || !d.Allow
		results = append(results, AuthzResult{
			Path:     authz.NormalizePath(p),
			Allow:    d.Allow,
			Redirect: d.Redirect,
			Reason:   d.Reason,
			Rule:     d.Rule,
		})
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(results); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "authz check: encode json: %v\n", err)
			return 1
		}
	} else {
		for _, r := range results {
			verdict := "allow"
			if !r.Allow {
				verdict = "redirect " + r.Redirect
			}
			_, _ = fmt.Fprintf(opts.Stdout, "%-40s %s (%s)\n", r.Path, verdict, r.Reason)
		}
	}
	if denied {
		return 10
	}
	return 0
}
