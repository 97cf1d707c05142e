// Package config loads gitswitch settings from an optional YAML file and GITSWITCH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost           = "github.com"
	DefaultAPIBaseURL     = "https://api.github.com"
	DefaultCommandTimeout = 15 * time.Second
	DefaultLogLevel       = "warn"
)

// Config holds application settings.
type Config struct {
	LogLevel  string `yaml:"log_level"`  // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `yaml:"pretty_log"` // true => zap dev console, false => JSON

	DataDir    string `yaml:"data_dir"`     // where identities.json lives
	Host       string `yaml:"host"`         // credential host, ex: github.com
	APIBaseURL string `yaml:"api_base_url"` // REST endpoint used by token verification

	GitPath          string        `yaml:"git_path"`          // optional explicit git executable
	GHPath           string        `yaml:"gh_path"`           // optional explicit gh executable
	CredentialHelper string        `yaml:"credential_helper"` // credential.helper value to configure
	CommandTimeout   time.Duration `yaml:"command_timeout"`

	RequireAuthentication bool `yaml:"require_authentication"` // gate secret reads behind a presence/passphrase check
	VerifyTokens          bool `yaml:"verify_tokens"`          // check new tokens against the API before saving
	SyncGitHubCLI         bool `yaml:"sync_github_cli"`        // best-effort `gh auth switch` after a switch
}

// Default returns the settings used when no file or environment override exists.
func Default() *Config {
	return &Config{
		LogLevel:         DefaultLogLevel,
		DataDir:          defaultDataDir(),
		Host:             DefaultHost,
		APIBaseURL:       DefaultAPIBaseURL,
		CredentialHelper: DefaultCredentialHelper(runtime.GOOS),
		CommandTimeout:   DefaultCommandTimeout,
		SyncGitHubCLI:    true,
	}
}

// DefaultPath returns ~/.config/gitswitch/config.yaml (or the OS equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".gitswitch", "config.yaml")
	}
	return filepath.Join(dir, "gitswitch", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gitswitch"
	}
	return filepath.Join(dir, "gitswitch")
}

// DefaultCredentialHelper maps an OS to the credential helper backed by its native secret store.
func DefaultCredentialHelper(goos string) string {
	switch goos {
	case "darwin":
		return "osxkeychain"
	case "windows":
		return "manager"
	default:
		return "libsecret"
	}
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if strings.TrimSpace(c.Host) == "" || strings.ContainsAny(c.Host, "/\n\r ") {
		return fmt.Errorf("config: host must be a bare hostname, got %q", c.Host)
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir must be set")
	}
	if c.CommandTimeout <= 0 {
		return errors.New("config: command_timeout must be positive")
	}
	if c.APIBaseURL == "" {
		return errors.New("config: api_base_url must be set")
	}
	return nil
}

// IdentitiesPath is the JSON document holding the non-secret identity fields.
func (c *Config) IdentitiesPath() string {
	return filepath.Join(c.DataDir, "identities.json")
}

func applyEnv(cfg *Config) error {
	cfg.LogLevel = getenv("GITSWITCH_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = getenv("GITSWITCH_DATA_DIR", cfg.DataDir)
	cfg.Host = getenv("GITSWITCH_HOST", cfg.Host)
	cfg.APIBaseURL = getenv("GITSWITCH_API_BASE_URL", cfg.APIBaseURL)
	cfg.GitPath = getenv("GITSWITCH_GIT_PATH", cfg.GitPath)
	cfg.GHPath = getenv("GITSWITCH_GH_PATH", cfg.GHPath)
	cfg.CredentialHelper = getenv("GITSWITCH_CREDENTIAL_HELPER", cfg.CredentialHelper)

	var err error
	if cfg.PrettyLog, err = envBool("GITSWITCH_PRETTY_LOG", cfg.PrettyLog); err != nil {
		return err
	}
	if cfg.RequireAuthentication, err = envBool("GITSWITCH_REQUIRE_AUTHENTICATION", cfg.RequireAuthentication); err != nil {
		return err
	}
	if cfg.VerifyTokens, err = envBool("GITSWITCH_VERIFY_TOKENS", cfg.VerifyTokens); err != nil {
		return err
	}
	if cfg.SyncGitHubCLI, err = envBool("GITSWITCH_SYNC_GITHUB_CLI", cfg.SyncGitHubCLI); err != nil {
		return err
	}
	if cfg.CommandTimeout, err = envDuration("GITSWITCH_COMMAND_TIMEOUT", cfg.CommandTimeout); err != nil {
		return err
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid boolean value for %s: %s", key, v)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid duration value for %s: %s", key, v)
	}
	return d, nil
}
