package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gitswitch/cli/internal/config"
	"github.com/gitswitch/cli/internal/ghcli"
	"github.com/gitswitch/cli/internal/github"
	"github.com/gitswitch/cli/internal/gitconfig"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
	"github.com/gitswitch/cli/internal/secrets"
	"github.com/gitswitch/cli/internal/switcher"
	"github.com/gitswitch/cli/internal/ui"
)

// gitConfig is what the commands need from the git config adapter.
type gitConfig interface {
	switcher.ConfigStore
	Available(ctx context.Context) bool
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
	UnsetValue(ctx context.Context, key string) error
	CredentialHelperConfigured(ctx context.Context) (bool, error)
	EnsureCredentialHelper(ctx context.Context) error
}

type ghAccounts interface {
	switcher.AccountSync
	AuthenticatedUsers(ctx context.Context) ([]string, error)
}

type tokenVerifier interface {
	VerifyToken(ctx context.Context, username, token string) (*github.User, error)
}

// app is the wired runtime shared by every command.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	store    secrets.Store
	keyring  secrets.KeyringAPI
	git      gitConfig
	gh       ghAccounts
	verifier tokenVerifier
	sw       *switcher.Switcher
	accounts *switcher.Accounts
	theme    *ui.Theme
	format   config.OutputFormat

	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
	prompt      *prompter
}

// appFactory builds the runtime for a command invocation; tests replace it.
var appFactory = newApp

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		if !logger.ValidLevel(opts.logLevel) {
			return nil, fmt.Errorf("invalid --log-level %q", opts.logLevel)
		}
		cfg.LogLevel = opts.logLevel
	}
	format, err := config.ValidateOutput(opts.output)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}

	home, _ := os.UserHomeDir()
	exec := runner.NewExecRunner(cfg.CommandTimeout)
	verifier := &runner.SignatureVerifier{Runner: exec, GOOS: runtime.GOOS}
	env := runner.MinimalEnv(home)
	gitTool := &runner.Tool{Resolver: runner.NewResolver("git", cfg.GitPath, verifier), Runner: exec, Env: env}
	ghTool := &runner.Tool{Resolver: runner.NewResolver("gh", cfg.GHPath, verifier), Runner: exec, Env: env}

	in, errOut := cmd.InOrStdin(), cmd.ErrOrStderr()
	interactive := isInteractive()
	prompt := newPrompter(in, errOut)

	kr := secrets.OSKeyring{}
	auth := &secrets.FallbackAuthenticator{
		Primary: &secrets.PassphraseAuthenticator{
			Keyring: kr,
			Read:    func() (string, error) { return prompt.secret("") },
			Out:     errOut,
		},
		Fallback: &secrets.ConfirmAuthenticator{
			In:         prompt.reader,
			Out:        errOut,
			IsTerminal: isInteractive,
		},
	}

	git := gitconfig.New(gitTool, cfg.CredentialHelper, home, log)
	store := secrets.NewKeychain(secrets.NewCredentialHelper(gitTool, cfg.Host, log), kr, auth, log)
	repo := identity.NewRepository(identity.NewFileStore(cfg.IdentitiesPath()), log)
	if err := repo.LoadError(); err != nil {
		fmt.Fprintf(errOut, "Warning: %v\n", err)
	}
	gh := ghcli.New(ghTool, cfg.Host, log)

	var sync switcher.AccountSync
	if cfg.SyncGitHubCLI {
		sync = gh
	}
	sw := switcher.New(store, git, sync, repo, log)
	sw.RequireAuthentication = cfg.RequireAuthentication

	return &app{
		cfg:         cfg,
		log:         log,
		store:       store,
		keyring:     kr,
		git:         git,
		gh:          gh,
		verifier:    github.NewClient(cfg.APIBaseURL, cfg.CommandTimeout),
		sw:          sw,
		accounts:    switcher.NewAccounts(sw, log),
		theme:       ui.NewTheme(cmd.OutOrStdout(), !opts.noColor),
		format:      format,
		in:          in,
		out:         cmd.OutOrStdout(),
		errOut:      errOut,
		interactive: interactive,
		prompt:      prompt,
	}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is the controlling terminal.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return p.line(label)
}

// confirm asks a yes/no question; anything but y/yes is no.
func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.line(label + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
