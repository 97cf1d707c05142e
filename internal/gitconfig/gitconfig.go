// Package gitconfig reads and writes the user-wide git configuration through
// the git executable. The file is never parsed directly so git's own quoting
// and section rules always apply.
package gitconfig

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
)

const (
	KeyUserName         = "user.name"
	KeyUserEmail        = "user.email"
	KeyCredentialHelper = "credential.helper"
)

// Adapter is the global-scope git config adapter.
type Adapter struct {
	git    *runner.Tool
	helper string
	home   string
	log    logger.Logger
}

// New returns an Adapter running git through tool. helper is the
// credential.helper value EnsureCredentialHelper installs; home is redacted
// from error messages.
func New(tool *runner.Tool, helper, home string, log logger.Logger) *Adapter {
	return &Adapter{git: tool, helper: helper, home: home, log: log}
}

// Available reports whether a valid git executable can be resolved.
func (a *Adapter) Available(ctx context.Context) bool {
	return a.git.Available(ctx)
}

// GetValue returns the global value for key; ok is false when it is unset.
func (a *Adapter) GetValue(ctx context.Context, key string) (value string, ok bool, err error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	res, err := a.run(ctx, nil, "config", "--global", "--get", key)
	if err != nil {
		return "", false, err
	}
	switch res.ExitCode {
	case 0:
		return strings.TrimRight(string(res.Stdout), "\r\n"), true, nil
	case 1:
		// git config exits 1 when the key is not set.
		return "", false, nil
	default:
		return "", false, a.commandFailed(res)
	}
}

// SetValue writes key=value at global scope.
func (a *Adapter) SetValue(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	validate := ValidateValue
	if strings.EqualFold(key, KeyUserEmail) {
		validate = ValidateEmail
	}
	if err := validate(key, value); err != nil {
		return err
	}
	return a.set(ctx, key, value)
}

func (a *Adapter) set(ctx context.Context, key, value string) error {
	res, err := a.run(ctx, nil, "config", "--global", key, value)
	if err != nil {
		return err
	}
	if !res.Success() {
		return a.commandFailed(res)
	}
	a.log.Debug("git config updated", logger.String("key", key))
	return nil
}

// Identity returns the global committer name and email. Unset fields are empty.
func (a *Adapter) Identity(ctx context.Context) (name, email string, err error) {
	name, _, err = a.GetValue(ctx, KeyUserName)
	if err != nil {
		return "", "", err
	}
	email, _, err = a.GetValue(ctx, KeyUserEmail)
	if err != nil {
		return "", "", err
	}
	return name, email, nil
}

// SetIdentity validates both fields and then writes user.name followed by
// user.email. If the second write fails the first is not undone; callers that
// need atomicity restore from their own snapshot.
func (a *Adapter) SetIdentity(ctx context.Context, name, email string) error {
	if err := ValidateValue(KeyUserName, name); err != nil {
		return err
	}
	if err := ValidateEmail(KeyUserEmail, email); err != nil {
		return err
	}
	if err := a.set(ctx, KeyUserName, name); err != nil {
		return err
	}
	return a.set(ctx, KeyUserEmail, email)
}

// RestoreIdentity puts back committer values previously read by Identity.
// An empty value unsets its key. Values are not validated since git already
// holds them; both keys are attempted even if the first fails.
func (a *Adapter) RestoreIdentity(ctx context.Context, name, email string) error {
	var errs []error
	for _, kv := range [][2]string{{KeyUserName, name}, {KeyUserEmail, email}} {
		var err error
		if kv[1] == "" {
			err = a.unset(ctx, kv[0])
		} else {
			err = a.set(ctx, kv[0], kv[1])
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnsetValue removes every global value of key. Removing an unset key is not
// an error.
func (a *Adapter) UnsetValue(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return a.unset(ctx, key)
}

func (a *Adapter) unset(ctx context.Context, key string) error {
	res, err := a.run(ctx, nil, "config", "--global", "--unset-all", key)
	if err != nil {
		return err
	}
	switch res.ExitCode {
	case 0:
		a.log.Debug("git config unset", logger.String("key", key))
	case 5:
		// git config exits 5 when there is nothing to unset.
	default:
		return a.commandFailed(res)
	}
	return nil
}

// CredentialHelperConfigured reports whether the configured helper is among
// the global credential.helper values.
func (a *Adapter) CredentialHelperConfigured(ctx context.Context) (bool, error) {
	res, err := a.run(ctx, nil, "config", "--global", "--get-all", KeyCredentialHelper)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
	case 1:
		return false, nil
	default:
		return false, a.commandFailed(res)
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if helperMatches(strings.TrimSpace(line), a.helper) {
			return true, nil
		}
	}
	return false, nil
}

// helperMatches accepts "osxkeychain", "git-credential-osxkeychain" or a path to it.
func helperMatches(configured, want string) bool {
	if configured == "" || want == "" {
		return false
	}
	fields := strings.Fields(configured)
	base := filepath.Base(fields[0])
	return base == want || base == "git-credential-"+want
}

// EnsureCredentialHelper adds the helper to credential.helper unless it is already there.
func (a *Adapter) EnsureCredentialHelper(ctx context.Context) error {
	ok, err := a.CredentialHelperConfigured(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := ValidateValue(KeyCredentialHelper, a.helper); err != nil {
		return err
	}
	res, err := a.run(ctx, nil, "config", "--global", "--add", KeyCredentialHelper, a.helper)
	if err != nil {
		return err
	}
	if !res.Success() {
		return a.commandFailed(res)
	}
	a.log.Info("credential helper configured", logger.String("helper", a.helper))
	return nil
}

// ClearCachedCredential stops git's in-memory credential cache daemon so the
// next network operation reads the freshly stored credential. A cache that was
// never started is not an error.
func (a *Adapter) ClearCachedCredential(ctx context.Context) error {
	res, err := a.run(ctx, nil, "credential-cache", "exit")
	if err != nil {
		return err
	}
	if !res.Success() {
		a.log.Debug("credential cache not running", logger.Int("exit", res.ExitCode))
	}
	return nil
}

func (a *Adapter) run(ctx context.Context, stdin []byte, args ...string) (runner.Result, error) {
	res, err := a.git.Exec(ctx, stdin, args...)
	if err == nil {
		return res, nil
	}
	var inv *runner.InvalidBinaryError
	switch {
	case errors.Is(err, runner.ErrNotFound):
		return res, &ConfigError{Kind: KindExecutableNotFound, Err: err}
	case errors.As(err, &inv):
		return res, &ConfigError{Kind: KindInvalidBinary, Message: sanitize([]byte(inv.Reason), -1, a.home), Err: err}
	default:
		return res, &ConfigError{Kind: KindCommandFailed, Message: sanitize([]byte(err.Error()), -1, a.home), Err: err}
	}
}

func (a *Adapter) commandFailed(res runner.Result) error {
	return &ConfigError{Kind: KindCommandFailed, Message: sanitize(res.Stderr, res.ExitCode, a.home)}
}
