package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthzCheckCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := AuthzCheckCommand(AuthzOptions{
		Roles:      []string{"ROLE_LEAVE_EMPLOYEE"},
		Tier:       "free",
		Paths:      []string{"/leave/my-requests", "/people/directory"},
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 10, exitCode)
	require.Empty(t, stderr.String())

	var results []AuthzResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 2)
	require.True(t, results[0].Allow)
	require.False(t, results[1].Allow)
	require.Equal(t, "/unauthorized", results[1].Redirect)
}

func TestAuthzCheckCommandAllAllowed(t *testing.T) {
	stdout := new(bytes.Buffer)
	exitCode := AuthzCheckCommand(AuthzOptions{
		Anonymous: true,
		Paths:     []string{"/signin"},
		Stdout:    stdout,
		Stderr:    new(bytes.Buffer),
	})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "allow (public)")
}

func TestAuthzCheckCommandRejectsUnknownRoles(t *testing.T) {
	stderr := new(bytes.Buffer)
	exitCode := AuthzCheckCommand(AuthzOptions{
		Roles:  []string{"ROLE_WIZARD"},
		Paths:  []string{"/dashboard"},
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "ROLE_WIZARD")
}

func TestAuthzCheckCommandNeedsPaths(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, AuthzCheckCommand(AuthzOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "path is required")
}
