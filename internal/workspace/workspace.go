// Package workspace inspects the git repository around a directory for
// settings that override the global committer identity.
package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ErrNotRepository is returned when dir is not inside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// Info describes the repository containing the inspected directory.
type Info struct {
	Root       string
	LocalName  string
	LocalEmail string
	// RemoteHost is the host of the origin remote, empty without one.
	RemoteHost string
}

// OverridesIdentity reports whether repository-local config sets user.name or user.email.
func (i *Info) OverridesIdentity() bool {
	return i.LocalName != "" || i.LocalEmail != ""
}

// UsesHost reports whether origin points at host (ignoring case and port).
func (i *Info) UsesHost(host string) bool {
	return i.RemoteHost != "" && strings.EqualFold(i.RemoteHost, host)
}

// Inspect opens the repository containing dir, searching parent directories.
func Inspect(dir string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	cfg, err := repo.ConfigScoped(config.LocalScope)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}

	info := &Info{
		LocalName:  cfg.User.Name,
		LocalEmail: cfg.User.Email,
	}
	if wt, err := repo.Worktree(); err == nil {
		info.Root = wt.Filesystem.Root()
	}
	if origin, ok := cfg.Remotes[git.DefaultRemoteName]; ok && len(origin.URLs) > 0 {
		info.RemoteHost = remoteHost(origin.URLs[0])
	}
	return info, nil
}

func remoteHost(url string) string {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return ""
	}
	return ep.Host
}
