package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	stderr := new(bytes.Buffer)
	assert.Equal(t, 1, run(context.Background(), nil, new(bytes.Buffer), stderr))
	assert.Contains(t, stderr.String(), "usage: gatekeeperctl")
}

func TestRunAuthzCheck(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := run(context.Background(), []string{"authz", "check", "-roles", "ROLE_LEAVE_EMPLOYEE", "-tier", "FREE", "/leave/my-requests"}, stdout, new(bytes.Buffer))
	assert.Zero(t, code)
	assert.Contains(t, stdout.String(), "/leave/my-requests")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
