package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/odyssey-hr/gatekeeper/cmd/gatekeeperctl/cli"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
	"github.com/odyssey-hr/gatekeeper/internal/refresh"
	"github.com/odyssey-hr/gatekeeper/jobs"
)

const usage = `usage: gatekeeperctl <command> [flags]

commands:
  authz check   evaluate page paths against the route policy
  jobs stats    print background queue statistics
  jobs prune    enqueue a session audit retention sweep
  probe         call a protected URL with a refresh credential
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 1
	}
	switch args[0] {
	case "authz":
		return runAuthz(args[1:], stdout, stderr)
	case "jobs":
		return runJobs(ctx, args[1:], stdout, stderr)
	case "probe":
		return runProbe(ctx, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 1
	}
}

func runAuthz(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "check" {
		_, _ = fmt.Fprint(stderr, usage)
		return 1
	}
	fs := flag.NewFlagSet("authz check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	roles := fs.String("roles", "", "comma separated role names")
	tier := fs.String("tier", "", "tenant tier (FREE or PRO)")
	mustChange := fs.Bool("must-change-password", false, "principal has not changed the initial password")
	anonymous := fs.Bool("anonymous", false, "evaluate without a session")
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	return cli.AuthzCheckCommand(cli.AuthzOptions{
		Roles:              splitList(*roles),
		Tier:               *tier,
		MustChangePassword: *mustChange,
		Anonymous:          *anonymous,
		Paths:              fs.Args(),
		JSONOutput:         *jsonOut,
		Stdout:             stdout,
		Stderr:             stderr,
	})
}

func runJobs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 1
	}
	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	redisAddr := fs.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	jsonOut := fs.Bool("json", false, "print JSON")
	retention := fs.Int("retention-days", 90, "audit retention in days")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	jobsCLI := cli.NewJobsCLI(*redisAddr)
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "stats":
		return jobsCLI.StatsCommand(cli.StatsOptions{JSONOutput: *jsonOut, Stdout: stdout, Stderr: stderr})
	case "prune":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskPruneAudit, *retention)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs prune: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s as %s\n", info.Type, info.ID)
		return 0
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 1
	}
}

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	target := fs.String("url", "", "protected URL to GET")
	issuerURL := fs.String("issuer", envOr("ISSUER_URL", "http://127.0.0.1:9000"), "identity provider base URL")
	tenant := fs.String("tenant", "", "tenant id")
	requests := fs.Int("n", 1, "concurrent requests")
	timeout := fs.Duration("timeout", 5*time.Second, "per request timeout")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	exchanger := refresh.IssuerExchanger(issuer.NewClient(*issuerURL, *timeout))
	return cli.NewProbeCLI(exchanger, nil, nil).ProbeCommand(ctx, cli.ProbeOptions{
		URL:          *target,
		RefreshToken: os.Getenv("GATEKEEPER_REFRESH_TOKEN"),
		TenantID:     *tenant,
		Requests:     *requests,
		Timeout:      *timeout,
		Stdout:       stdout,
		Stderr:       stderr,
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
