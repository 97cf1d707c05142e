package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitswitch/cli/internal/config"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/workspace"
)

type statusView struct {
	Active              *identityView `json:"active,omitempty"`
	CredentialUsername  string        `json:"credentialUsername,omitempty"`
	CommitterName       string        `json:"committerName,omitempty"`
	CommitterEmail      string        `json:"committerEmail,omitempty"`
	CredentialHelper    bool          `json:"credentialHelperConfigured"`
	GitHubCLIAccounts   []string      `json:"githubCliAccounts,omitempty"`
	GitAvailable        bool          `json:"gitAvailable"`
	Repository          string        `json:"repository,omitempty"`
	RepositoryOverrides bool          `json:"repositoryOverridesIdentity"`
	Warnings            []string      `json:"warnings,omitempty"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active identity and what git will actually use",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			st := a.collectStatus(cmd)
			if a.format == config.OutputJSON {
				return a.theme.WriteJSON(a.out, st)
			}

			active := a.theme.Muted.Render("none")
			if st.Active != nil {
				active = a.theme.Active.Render(fmt.Sprintf("%s (%s)", st.Active.DisplayName, st.Active.ServiceUsername))
			}
			credential := orNone(st.CredentialUsername)
			committer := "none"
			if st.CommitterName != "" || st.CommitterEmail != "" {
				committer = fmt.Sprintf("%s <%s>", st.CommitterName, st.CommitterEmail)
			}
			helper := "not configured (run 'gitswitch setup')"
			if st.CredentialHelper {
				helper = a.cfg.CredentialHelper
			}
			gh := "not available"
			if len(st.GitHubCLIAccounts) > 0 {
				gh = strings.Join(st.GitHubCLIAccounts, ", ")
			}

			fmt.Fprint(a.out, a.theme.KeyValues([][2]string{
				{"Active identity", active},
				{"Credential for " + a.cfg.Host, credential},
				{"Global committer", committer},
				{"Credential helper", helper},
				{"gh accounts", gh},
			}))
			for _, w := range st.Warnings {
				fmt.Fprintf(a.out, "%s %s\n", a.theme.Warning.Render("Warning:"), w)
			}
			return nil
		}),
	}
}

// collectStatus reads live state outside any switch transaction; the result
// is a snapshot, not a consistent view.
func (a *app) collectStatus(cmd *cobra.Command) statusView {
	ctx := cmd.Context()
	var st statusView
	var active identity.Identity
	var hasActive bool

	st.GitAvailable = a.git.Available(ctx)
	if !st.GitAvailable {
		st.Warnings = append(st.Warnings, "no usable git executable was found; set git_path in the config file")
	}

	if active, hasActive = a.accounts.Active(); hasActive {
		v := viewOf(active)
		st.Active = &v
	}

	if cred, ok, err := a.store.ReadCurrentCredential(ctx); err != nil {
		st.Warnings = append(st.Warnings, fmt.Sprintf("could not read stored credential: %v", err))
	} else if ok {
		st.CredentialUsername = cred.Username
	}
	if hasActive && !identity.SameUsername(st.CredentialUsername, active.ServiceUsername) {
		st.Warnings = append(st.Warnings, fmt.Sprintf("stored credential does not belong to %s; run 'gitswitch switch %s'", active.ServiceUsername, active.ServiceUsername))
	}

	if name, email, err := a.git.Identity(ctx); err != nil {
		st.Warnings = append(st.Warnings, fmt.Sprintf("could not read git config: %v", err))
	} else {
		st.CommitterName, st.CommitterEmail = name, email
		if hasActive && (name != active.CommitterName || email != active.CommitterEmail) {
			st.Warnings = append(st.Warnings, "global committer identity differs from the active identity")
		}
	}

	if ok, err := a.git.CredentialHelperConfigured(ctx); err == nil {
		st.CredentialHelper = ok
	}

	if a.gh != nil && a.gh.Available(ctx) {
		if users, err := a.gh.AuthenticatedUsers(ctx); err == nil {
			st.GitHubCLIAccounts = users
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		info, err := workspace.Inspect(cwd)
		switch {
		case errors.Is(err, workspace.ErrNotRepository):
		case err != nil:
			a.log.Debugf("workspace inspection failed: %v", err)
		default:
			a.repositoryWarnings(&st, info)
		}
	}
	return st
}

// repositoryWarnings flags repository settings that keep the switched identity
// from applying inside info's repository.
func (a *app) repositoryWarnings(st *statusView, info *workspace.Info) {
	st.Repository = info.Root
	if info.OverridesIdentity() {
		st.RepositoryOverrides = true
		st.Warnings = append(st.Warnings, fmt.Sprintf("repository %s sets its own user.name/user.email (%s <%s>), which wins over the switched identity", info.Root, info.LocalName, info.LocalEmail))
	}
	if info.RemoteHost != "" && !info.UsesHost(a.cfg.Host) {
		st.Warnings = append(st.Warnings, fmt.Sprintf("origin of repository %s is on %s; the switched credential is only used for %s", info.Root, info.RemoteHost, a.cfg.Host))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
