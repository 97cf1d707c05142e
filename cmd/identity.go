package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitswitch/cli/internal/config"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/switcher"
	"github.com/gitswitch/cli/internal/ui"
)

// identityFlags are shared by add and edit.
type identityFlags struct {
	displayName    string
	username       string
	token          string
	tokenStdin     bool
	committerName  string
	committerEmail string
	verify         bool
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.displayName, "name", "", "Display name for the identity")
	cmd.Flags().StringVar(&f.username, "username", "", "GitHub username")
	cmd.Flags().StringVar(&f.token, "token", "", "Personal access token (prefer --token-stdin)")
	cmd.Flags().BoolVar(&f.tokenStdin, "token-stdin", false, "Read the personal access token from stdin")
	cmd.Flags().StringVar(&f.committerName, "committer-name", "", "Value for git user.name")
	cmd.Flags().StringVar(&f.committerEmail, "committer-email", "", "Value for git user.email")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Check the token against the GitHub API before saving")
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured identities",
		Args:    cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			items := a.accounts.List()
			if a.format == config.OutputJSON {
				views := make([]identityView, 0, len(items))
				for _, it := range items {
					views = append(views, viewOf(it))
				}
				return a.theme.WriteJSON(a.out, views)
			}
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No identities configured. Run 'gitswitch add' to get started.")
				return nil
			}
			fmt.Fprintln(a.out, a.theme.IdentityTable(items))
			return nil
		}),
	}
}

func newAddCmd(opts *options) *cobra.Command {
	f := &identityFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a GitHub identity",
		Long: `Add a GitHub identity. Interactive by default when run in a terminal.

The first identity added becomes active immediately. Tokens are kept in the
OS keyring and never written to the identities file.

Examples:
  # Interactive
  gitswitch add

  # Non-interactive
  echo "$TOKEN" | gitswitch add --username octocat --token-stdin \
    --committer-name "Mona Octocat" --committer-email mona@example.com`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			interactive := a.interactive && !f.tokenStdin && f.username == "" && f.token == ""
			if interactive {
				if err := a.promptIdentity(f); err != nil {
					return err
				}
			} else if err := a.readFlagToken(f); err != nil {
				return err
			}

			if f.username == "" {
				return fmt.Errorf("--username is required in non-interactive mode")
			}
			if f.token == "" {
				return fmt.Errorf("--token or --token-stdin is required in non-interactive mode")
			}
			if err := identity.ValidateUsername(f.username); err != nil {
				return err
			}
			if err := identity.ValidateToken(f.token); err != nil {
				return err
			}

			if f.verify || a.cfg.VerifyTokens {
				fmt.Fprintln(a.errOut, "Verifying token...")
				user, err := a.verifier.VerifyToken(cmd.Context(), f.username, f.token)
				if err != nil {
					return fmt.Errorf("token verification failed: %w", err)
				}
				if f.committerName == "" {
					f.committerName = user.Name
				}
				if f.committerEmail == "" {
					f.committerEmail = user.Email
				}
			}
			if interactive {
				if err := a.promptCommitter(f); err != nil {
					return err
				}
			}
			if f.displayName == "" {
				f.displayName = f.username
			}
			if f.committerName == "" {
				f.committerName = f.username
			}

			ident := identity.New(f.displayName, f.username, f.token, f.committerName, f.committerEmail)
			stored, report, err := a.accounts.Add(cmd.Context(), ident)
			if err != nil {
				if stored.ID != "" {
					fmt.Fprintf(a.errOut, "Identity %s was saved but could not be activated.\n", stored.ServiceUsername)
					return a.switchFailure(err)
				}
				return err
			}
			fmt.Fprintf(a.out, "Identity %s (%s) added\n", stored.DisplayName, stored.ServiceUsername)
			a.reportSwitch(report)
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

// promptIdentity fills missing fields interactively.
func (a *app) promptIdentity(f *identityFlags) error {
	var err error
	ask := func(dst *string, label string) {
		if err != nil || *dst != "" {
			return
		}
		*dst, err = a.prompt.line(label)
	}
	ask(&f.username, "GitHub username: ")
	if err == nil && f.token == "" {
		f.token, err = a.prompt.secret("Personal access token: ")
	}
	ask(&f.displayName, fmt.Sprintf("Display name [%s]: ", f.username))
	if err == nil && !f.verify && !a.cfg.VerifyTokens {
		var verify bool
		verify, err = a.prompt.confirm("Verify the token with GitHub and prefill committer details?")
		f.verify = verify
	}
	return err
}

// promptCommitter asks for committer fields still missing after verification.
func (a *app) promptCommitter(f *identityFlags) error {
	var err error
	if f.committerName == "" {
		if f.committerName, err = a.prompt.line("Committer name: "); err != nil {
			return err
		}
	}
	if f.committerEmail == "" {
		f.committerEmail, err = a.prompt.line("Committer email: ")
	}
	return err
}

// readFlagToken resolves --token-stdin.
func (a *app) readFlagToken(f *identityFlags) error {
	if !f.tokenStdin {
		return nil
	}
	if f.token != "" {
		return fmt.Errorf("--token and --token-stdin are mutually exclusive")
	}
	token, err := a.prompt.secret("")
	if err != nil {
		return err
	}
	f.token = token
	return nil
}

func newEditCmd(opts *options) *cobra.Command {
	f := &identityFlags{}
	cmd := &cobra.Command{
		Use:   "edit <identity>",
		Short: "Change a stored identity",
		Long: `Change the fields given as flags. Editing the active identity applies the
new values immediately.

<identity> is an id, an id prefix of at least 8 characters, or a username.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			current, err := a.accounts.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := a.readFlagToken(f); err != nil {
				return err
			}

			updated := current
			flags := cmd.Flags()
			if flags.Changed("name") {
				updated.DisplayName = strings.TrimSpace(f.displayName)
			}
			if flags.Changed("username") {
				updated.ServiceUsername = strings.TrimSpace(f.username)
			}
			if flags.Changed("committer-name") {
				updated.CommitterName = strings.TrimSpace(f.committerName)
			}
			if flags.Changed("committer-email") {
				updated.CommitterEmail = strings.TrimSpace(f.committerEmail)
			}
			updated.SecretToken = f.token

			if updated.SecretToken != "" && (f.verify || a.cfg.VerifyTokens) {
				if _, err := a.verifier.VerifyToken(cmd.Context(), updated.ServiceUsername, updated.SecretToken); err != nil {
					return fmt.Errorf("token verification failed: %w", err)
				}
			}

			result, report, err := a.accounts.Update(cmd.Context(), updated)
			if err != nil {
				return a.switchFailure(err)
			}
			fmt.Fprintf(a.out, "Identity %s (%s) updated\n", result.DisplayName, result.ServiceUsername)
			a.reportSwitch(report)
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

func newRemoveCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <identity>",
		Aliases: []string{"rm"},
		Short:   "Remove an identity and its stored token",
		Long: `Remove an identity and delete its token from the keyring. Removing the
active identity activates the first remaining one; removing the last identity
deletes the stored GitHub credential.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			target, err := a.accounts.Resolve(args[0])
			if err != nil {
				return err
			}
			if !yes {
				if !a.interactive {
					return fmt.Errorf("--yes is required in non-interactive mode")
				}
				ok, err := a.prompt.confirm(fmt.Sprintf("Remove %s (%s)?", target.DisplayName, target.ServiceUsername))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "Aborted")
					return nil
				}
			}

			report, err := a.accounts.Remove(cmd.Context(), target.ID)
			var removeErr *switcher.RemoveError
			if errors.As(err, &removeErr) {
				fmt.Fprintf(a.out, "Identity %s (%s) removed\n", target.DisplayName, target.ServiceUsername)
				fmt.Fprintln(a.errOut, "The next identity could not be activated and the stored GitHub credential was deleted. Run 'gitswitch switch' to pick one.")
				return a.switchFailure(removeErr.Err)
			}
			if err != nil {
				return a.switchFailure(err)
			}
			fmt.Fprintf(a.out, "Identity %s (%s) removed\n", target.DisplayName, target.ServiceUsername)
			if target.IsActive && report == nil {
				fmt.Fprintln(a.out, "No identities left; the stored GitHub credential was deleted")
			}
			a.reportSwitch(report)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSwitchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "switch [identity]",
		Short: "Make an identity active",
		Long: `Point the stored GitHub credential and the global git user.name/user.email
at an identity. Without an argument an interactive picker is shown.

If any step fails the previous credential and committer identity are restored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			var (
				target identity.Identity
				err    error
			)
			if len(args) == 1 {
				target, err = a.accounts.Resolve(args[0])
			} else {
				if !a.interactive {
					return fmt.Errorf("an identity is required in non-interactive mode")
				}
				target, err = ui.PickIdentity(cmd.Context(), a.accounts.List(), a.in, a.out)
				if errors.Is(err, ui.ErrCancelled) {
					fmt.Fprintln(a.out, "Aborted")
					return nil
				}
			}
			if err != nil {
				return err
			}

			report, err := a.sw.Switch(cmd.Context(), target.ID)
			if err != nil {
				a.log.Debug("switch failed", logger.Error(err))
				return a.switchFailure(err)
			}
			if a.format == config.OutputJSON {
				return a.theme.WriteJSON(a.out, viewOf(report.Identity))
			}
			a.reportSwitch(report)
			return nil
		}),
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [identity]",
		Short: "Check a stored token against the GitHub API",
		Long:  `Check that the stored token of an identity (the active one by default) still authenticates as its username.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			var (
				target identity.Identity
				err    error
			)
			if len(args) == 1 {
				target, err = a.accounts.Resolve(args[0])
			} else {
				var ok bool
				if target, ok = a.accounts.Active(); !ok {
					err = errors.New("no identity is active")
				}
			}
			if err != nil {
				return err
			}

			var token string
			if a.cfg.RequireAuthentication {
				token, err = a.store.RetrieveIdentitySecretWithAuthentication(cmd.Context(), target.ID, "Verify token of "+target.ServiceUsername)
			} else {
				token, err = a.store.RetrieveIdentitySecret(cmd.Context(), target.ID)
			}
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}

			user, err := a.verifier.VerifyToken(cmd.Context(), target.ServiceUsername, token)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Fprintf(a.out, "%s Token for %s is valid (%s)\n", a.theme.Active.Render("✓"), target.ServiceUsername, ui.MaskSecret(token))
			if len(user.Scopes) > 0 {
				fmt.Fprintf(a.out, "  Scopes: %s\n", strings.Join(user.Scopes, ", "))
			}
			return nil
		}),
	}
}
