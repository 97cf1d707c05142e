package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitswitch/cli/internal/config"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/switcher"
)

// version is set during build
var version = "dev"

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	output     string
	noColor    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "gitswitch",
		Short: "Switch between GitHub identities on this machine",
		Long: `gitswitch keeps several GitHub identities (username, personal access token,
commit name and email) and switches the machine-wide HTTPS credential and the
global git committer identity between them in one step.

Examples:
  # Add an identity
  gitswitch add --username octocat --token-stdin --committer-email octo@example.com

  # Switch to it
  gitswitch switch octocat

  # See what is active right now
  gitswitch status`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newRemoveCmd(opts),
		newSwitchCmd(opts),
		newStatusCmd(opts),
		newVerifyCmd(opts),
		newSetupCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI. Ctrl-C cancels waiting and authentication, never a
// switch that is already applying.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gitswitch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitswitch v%s\n", version)
		},
	}
}

// withApp wires the runtime and runs fn with it.
func withApp(opts *options, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := appFactory(cmd, opts)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, a, args)
	}
}

// identityView is the JSON shape of an identity. Tokens are never included.
type identityView struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	ServiceUsername string     `json:"serviceUsername"`
	CommitterName   string     `json:"committerName"`
	CommitterEmail  string     `json:"committerEmail"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
}

func viewOf(it identity.Identity) identityView {
	return identityView{
		ID:              it.ID,
		DisplayName:     it.DisplayName,
		ServiceUsername: it.ServiceUsername,
		CommitterName:   it.CommitterName,
		CommitterEmail:  it.CommitterEmail,
		IsActive:        it.IsActive,
		CreatedAt:       it.CreatedAt,
		LastUsedAt:      it.LastUsedAt,
	}
}

// reportSwitch prints the outcome of an apply and its best-effort warnings.
func (a *app) reportSwitch(report *switcher.Report) {
	if report == nil {
		return
	}
	it := report.Identity
	if report.Noop {
		fmt.Fprintf(a.out, "Already using %s (%s)\n", it.DisplayName, it.ServiceUsername)
		return
	}
	fmt.Fprintf(a.out, "%s Switched to %s (%s)\n", a.theme.Active.Render("✓"), it.DisplayName, it.ServiceUsername)
	fmt.Fprintf(a.out, "  Committer: %s <%s>\n", it.CommitterName, it.CommitterEmail)
	if report.Snapshot != nil {
		fmt.Fprintf(a.errOut, "%s %v\n", a.theme.Warning.Render("Warning:"), report.Snapshot)
	}
	if report.CLI != nil {
		fmt.Fprintf(a.errOut, "%s gh was not switched: %v\n", a.theme.Warning.Render("Note:"), report.CLI)
	}
}

// switchFailure turns an apply error into the message shown to the user.
func (a *app) switchFailure(err error) error {
	if errors.Is(err, switcher.ErrInconsistentState) {
		fmt.Fprintln(a.errOut, a.theme.Error.Render("Switch failed AND automatic recovery failed - verify your credentials manually."))
		return err
	}
	if errors.Is(err, switcher.ErrTokenNotFound) {
		return fmt.Errorf("%w\nRun 'gitswitch edit <identity> --token-stdin' to store a new token", err)
	}
	return err
}
