package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or write global git configuration",
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a global git config value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			value, ok, err := a.git.GetValue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Fprintln(a.out, value)
			return nil
		}),
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a global git config value",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.git.SetValue(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s updated\n", args[0])
			return nil
		}),
	}

	unsetCmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a global git config value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.git.UnsetValue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s unset\n", args[0])
			return nil
		}),
	}

	configCmd.AddCommand(getCmd, setCmd, unsetCmd)
	return configCmd
}
