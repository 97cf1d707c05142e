package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout)
	assert.True(t, cfg.SyncGitHubCLI)
	assert.False(t, cfg.RequireAuthentication)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_level: info
data_dir: ` + dir + `
host: github.example.com
command_timeout: 3s
verify_tokens: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("GITSWITCH_LOG_LEVEL", "debug")
	t.Setenv("GITSWITCH_SYNC_GITHUB_CLI", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "github.example.com", cfg.Host)
	assert.Equal(t, 3*time.Second, cfg.CommandTimeout)
	assert.True(t, cfg.VerifyTokens)
	assert.False(t, cfg.SyncGitHubCLI)
	assert.Equal(t, filepath.Join(dir, "identities.json"), cfg.IdentitiesPath())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad level", env: map[string]string{"GITSWITCH_LOG_LEVEL": "loud"}, wantErr: "log_level"},
		{name: "bad bool", env: map[string]string{"GITSWITCH_VERIFY_TOKENS": "maybe"}, wantErr: "GITSWITCH_VERIFY_TOKENS"},
		{name: "bad duration", env: map[string]string{"GITSWITCH_COMMAND_TIMEOUT": "soon"}, wantErr: "GITSWITCH_COMMAND_TIMEOUT"},
		{name: "host with path", env: map[string]string{"GITSWITCH_HOST": "github.com/evil"}, wantErr: "host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [oops"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestDefaultCredentialHelper(t *testing.T) {
	assert.Equal(t, "osxkeychain", DefaultCredentialHelper("darwin"))
	assert.Equal(t, "manager", DefaultCredentialHelper("windows"))
	assert.Equal(t, "libsecret", DefaultCredentialHelper("linux"))
}
