package runner

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	calls int
	err   error
}

func (v *countingVerifier) Verify(context.Context, string) error {
	v.calls++
	return v.err
}

func statFor(existing ...string) func(string) (os.FileInfo, error) {
	set := map[string]bool{}
	for _, p := range existing {
		set[p] = true
	}
	return func(p string) (os.FileInfo, error) {
		if set[p] {
			return fakeFileInfo{name: p}, nil
		}
		return nil, os.ErrNotExist
	}
}

func newTestResolver(v Verifier, existing ...string) *Resolver {
	r := NewResolver("gh", "", v)
	r.Stat = statFor(existing...)
	r.EvalSymlinks = func(p string) (string, error) { return p, nil }
	r.LookPath = func(string) (string, error) { return "", errors.New("not in PATH") }
	return r
}

func TestResolverPrefersAllowListOrder(t *testing.T) {
	v := &countingVerifier{}
	r := newTestResolver(v, "/usr/local/bin/gh", "/opt/homebrew/bin/gh")

	path, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/gh", path)
	assert.Equal(t, 1, v.calls, "/usr/local/bin is not a trusted prefix, so it is verified")
}

func TestResolverTrustedPrefixSkipsVerification(t *testing.T) {
	v := &countingVerifier{err: errors.New("unsigned")}
	r := newTestResolver(v, "/opt/homebrew/bin/gh")

	path, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/homebrew/bin/gh", path)
	assert.Zero(t, v.calls)
}

func TestResolverRejectsInvalidBinary(t *testing.T) {
	v := &countingVerifier{err: &InvalidBinaryError{Path: "/usr/local/bin/gh", Reason: "unsigned"}}
	r := newTestResolver(v, "/usr/local/bin/gh")

	_, err := r.Resolve(context.Background())
	var inv *InvalidBinaryError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "unsigned", inv.Reason)
}

func TestResolverFallsBackToPATH(t *testing.T) {
	v := &countingVerifier{}
	r := newTestResolver(v)
	r.LookPath = func(string) (string, error) { return "/home/ada/bin/gh", nil }

	path, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/ada/bin/gh", path)
	assert.Equal(t, 1, v.calls)
}

func TestResolverNotFound(t *testing.T) {
	r := newTestResolver(&countingVerifier{})
	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolverExplicitPath(t *testing.T) {
	r := newTestResolver(&countingVerifier{}, "/usr/bin/gh", "/custom/gh")
	r.Explicit = "/custom/gh"
	path, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/custom/gh", path)

	r2 := newTestResolver(&countingVerifier{}, "/usr/bin/gh")
	r2.Explicit = "/missing/gh"
	_, err = r2.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNotFound, "an explicit path does not fall back to the allow-list")
}

func TestResolverCachesValidatedPath(t *testing.T) {
	v := &countingVerifier{}
	r := newTestResolver(v, "/usr/local/bin/gh")

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, v.calls)
}

func TestSignatureVerifierNonDarwin(t *testing.T) {
	tests := []struct {
		name    string
		mode    os.FileMode
		wantErr string
	}{
		{name: "owner-only executable", mode: 0o755},
		{name: "world writable", mode: 0o757, wantErr: "writable"},
		{name: "group writable", mode: 0o775, wantErr: "writable"},
		{name: "not executable", mode: 0o644, wantErr: "not an executable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &SignatureVerifier{
				GOOS: "linux",
				Stat: func(string) (os.FileInfo, error) { return fakeFileInfo{name: "gh", mode: tt.mode}, nil },
			}
			err := v.Verify(context.Background(), "/home/ada/bin/gh")
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSignatureVerifierDarwinUsesCodesign(t *testing.T) {
	f := &FakeRunner{}
	f.On(Failure(1, "code object is not signed at all"), nil, "--verify", "--strict", "/tmp/gh")

	v := &SignatureVerifier{
		Runner: f,
		GOOS:   "darwin",
		Stat:   func(string) (os.FileInfo, error) { return fakeFileInfo{name: "gh"}, nil },
	}
	err := v.Verify(context.Background(), "/tmp/gh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed")

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, codesignPath, calls[0].Path)

	assert.NoError(t, v.Verify(context.Background(), "/tmp/other"))
}
