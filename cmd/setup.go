package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitswitch/cli/internal/secrets"
)

func newSetupCmd(opts *options) *cobra.Command {
	var passphrase bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure git to use the OS credential store",
		Long: `Make sure git's credential.helper points at the OS credential store so the
switched credential is the one git uses. Safe to run more than once.

With --passphrase, also set the passphrase asked for when
require_authentication is enabled.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			ok, err := a.git.CredentialHelperConfigured(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(a.out, "Credential helper %s already configured\n", a.cfg.CredentialHelper)
			} else {
				if err := a.git.EnsureCredentialHelper(cmd.Context()); err != nil {
					return fmt.Errorf("failed to configure credential helper: %w", err)
				}
				fmt.Fprintf(a.out, "Credential helper %s configured\n", a.cfg.CredentialHelper)
			}

			if !passphrase {
				return nil
			}
			first, err := a.prompt.secret("New passphrase: ")
			if err != nil {
				return err
			}
			if a.interactive {
				second, err := a.prompt.secret("Repeat passphrase: ")
				if err != nil {
					return err
				}
				if first != second {
					return fmt.Errorf("passphrases do not match")
				}
			}
			if err := secrets.SetPassphrase(a.keyring, first); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Passphrase saved")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&passphrase, "passphrase", false, "Set the passphrase used to authorise token access")
	return cmd
}
