package ghcli

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
)

const statusTwoAccounts = `github.com
  ✓ Logged in to github.com account alice (keyring)
  - Active account: true
  - Git operations protocol: https

  ✓ Logged in to github.com account bob-work (keyring)
  - Active account: false
`

func newClient(f *runner.FakeRunner) *Client {
	return New(runner.FakeTool("gh", f), "github.com", logger.NewNop())
}

func TestParseUsers(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{name: "current format", out: statusTwoAccounts, want: []string{"alice", "bob-work"}},
		{name: "legacy format", out: "github.com\n  ✓ Logged in to github.com as octocat (oauth_token)\n", want: []string{"octocat"}},
		{name: "duplicates folded", out: "Logged in to github.com as Alice\nLogged in to github.com account alice\n", want: []string{"Alice"}},
		{name: "none", out: "You are not logged into any GitHub hosts. To log in, run: gh auth login\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseUsers(tt.out))
		})
	}
}

func TestIsAuthenticated(t *testing.T) {
	f := &runner.FakeRunner{}
	f.On(runner.Stdout(statusTwoAccounts), nil, "auth", "status")
	assert.True(t, newClient(f).IsAuthenticated(context.Background()))

	f = &runner.FakeRunner{}
	f.On(runner.Failure(1, "You are not logged into any GitHub hosts."), nil, "auth", "status")
	assert.False(t, newClient(f).IsAuthenticated(context.Background()))

	f = &runner.FakeRunner{}
	f.On(runner.Result{}, errors.New("boom"), "auth", "status")
	assert.False(t, newClient(f).IsAuthenticated(context.Background()))
}

func TestSwitchAccount(t *testing.T) {
	f := &runner.FakeRunner{}
	f.On(runner.Stdout(statusTwoAccounts), nil, "auth", "status")
	c := newClient(f)

	require.NoError(t, c.SwitchAccount(context.Background(), "Bob-Work"))
	calls := f.CallsWith("auth", "switch")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"auth", "switch", "--hostname", "github.com", "--user", "Bob-Work"}, calls[0].Args)

	err := c.SwitchAccount(context.Background(), "carol")
	assert.ErrorIs(t, err, ErrAccountNotRecognized)
	assert.Contains(t, err.Error(), "carol")
}

func TestSwitchAccountErrors(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		f := &runner.FakeRunner{}
		f.On(runner.Failure(1, "You are not logged into any GitHub hosts."), nil, "auth", "status")
		assert.ErrorIs(t, newClient(f).SwitchAccount(context.Background(), "alice"), ErrNotAuthenticated)
	})

	t.Run("switch fails", func(t *testing.T) {
		f := &runner.FakeRunner{}
		f.On(runner.Stdout(statusTwoAccounts), nil, "auth", "status")
		f.On(runner.Failure(1, "failed to switch\nmore detail"), nil, "auth", "switch")
		err := newClient(f).SwitchAccount(context.Background(), "alice")
		assert.ErrorIs(t, err, ErrCommandFailed)
		assert.Equal(t, "gh command failed: failed to switch", err.Error())
	})

	t.Run("not installed", func(t *testing.T) {
		tool := runner.FakeTool("gh", &runner.FakeRunner{})
		tool.Resolver.LookPath = func(string) (string, error) { return "", runner.ErrNotFound }
		tool.Resolver.SearchDirs = nil
		tool.Resolver.Stat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
		c := New(tool, "github.com", logger.NewNop())
		assert.False(t, c.Available(context.Background()))
		assert.ErrorIs(t, c.SwitchAccount(context.Background(), "alice"), ErrNotInstalled)
	})
}
