package runner

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerCapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	r := NewExecRunner(5 * time.Second)

	res, err := r.Run(context.Background(), Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", `read line; echo "$line:$HOME:$SECRET_FROM_PARENT"; echo oops >&2; exit 3`},
		Stdin: []byte("hello\n"),
		Env:   []string{"HOME=/tmp/fakehome"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Success())
	assert.Equal(t, "hello:/tmp/fakehome:", strings.TrimSpace(string(res.Stdout)))
	assert.Equal(t, "oops", strings.TrimSpace(string(res.Stderr)))
}

func TestExecRunnerDoesNotInheritEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	t.Setenv("SECRET_FROM_PARENT", "leak")
	res, err := NewExecRunner(0).Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", `printf "%s" "$SECRET_FROM_PARENT"`},
	})
	require.NoError(t, err)
	assert.Empty(t, string(res.Stdout))
}

func TestExecRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	_, err := NewExecRunner(50*time.Millisecond).Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "exec sleep 5"},
		Env:  []string{"PATH=/usr/bin:/bin"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := NewExecRunner(0).Run(context.Background(), Command{Path: "/nonexistent/gitswitch-test-binary"})
	assert.Error(t, err)
}

func TestMinimalEnv(t *testing.T) {
	env := MinimalEnv("/Users/ada")
	assert.Contains(t, env, "HOME=/Users/ada")
	assert.Contains(t, env, "PATH="+SafePath)
	assert.Contains(t, env, "GIT_TERMINAL_PROMPT=0")
	assert.Contains(t, env, "GH_PROMPT_DISABLED=1")
	for _, kv := range env {
		assert.False(t, strings.HasPrefix(kv, "GIT_CONFIG"), "no config overrides: %s", kv)
	}
}

func TestFakeRunnerMatchesByPrefix(t *testing.T) {
	f := &FakeRunner{}
	f.On(Stdout("Ada\n"), nil, "config", "--global", "--get", "user.name")
	f.On(Failure(1, ""), nil, "config", "--global", "--get")
	f.On(Result{}, errors.New("boom"), "credential")

	res, err := f.Run(context.Background(), Command{Args: []string{"config", "--global", "--get", "user.name"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada\n", string(res.Stdout))

	res, err = f.Run(context.Background(), Command{Args: []string{"config", "--global", "--get", "user.email"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	_, err = f.Run(context.Background(), Command{Args: []string{"credential", "fill"}})
	assert.EqualError(t, err, "boom")

	res, err = f.Run(context.Background(), Command{Args: []string{"version"}})
	require.NoError(t, err)
	assert.True(t, res.Success())

	assert.Len(t, f.Calls(), 4)
	assert.Len(t, f.CallsWith("config"), 2)
}

func TestToolExecUsesResolvedPathAndEnv(t *testing.T) {
	f := &FakeRunner{}
	tool := FakeTool("git", f)

	_, err := tool.Exec(context.Background(), []byte("input"), "status")
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/git", calls[0].Path)
	assert.Equal(t, []byte("input"), calls[0].Stdin)
	assert.Contains(t, calls[0].Env, "HOME=/home/test")
	assert.True(t, tool.Available(context.Background()))
}

var _ os.FileInfo = fakeFileInfo{}
