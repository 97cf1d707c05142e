// Package ghcli keeps the GitHub CLI's active account in step with the
// switched identity. Everything here is best effort.
package ghcli

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
)

// gh has printed both "Logged in to github.com account alice" and
// "Logged in to github.com as alice" across releases.
var loggedInPattern = regexp.MustCompile(`Logged in to \S+ (?:account|as) ([A-Za-z0-9-]+)`)

// Client drives `gh auth` for one host.
type Client struct {
	gh   *runner.Tool
	host string
	log  logger.Logger
}

func New(tool *runner.Tool, host string, log logger.Logger) *Client {
	return &Client{gh: tool, host: host, log: log}
}

// Available reports whether a valid gh executable resolves.
func (c *Client) Available(ctx context.Context) bool {
	return c.gh.Available(ctx)
}

// IsAuthenticated reports whether gh holds at least one login for the host.
// Any failure reads as false.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	users, err := c.AuthenticatedUsers(ctx)
	if err != nil {
		c.log.Debug("gh auth status unavailable", logger.Error(err))
		return false
	}
	return len(users) > 0
}

// AuthenticatedUsers lists the accounts gh is logged in to for the host.
func (c *Client) AuthenticatedUsers(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "auth", "status", "--hostname", c.host)
	if err != nil {
		return nil, err
	}
	// Older releases print status on stderr and exit 1 when any token is invalid.
	users := parseUsers(string(res.Stdout) + "\n" + string(res.Stderr))
	if len(users) == 0 {
		if !res.Success() {
			return nil, &CLIError{Kind: KindNotAuthenticated}
		}
		return nil, nil
	}
	return users, nil
}

func parseUsers(out string) []string {
	var users []string
	seen := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		m := loggedInPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		users = append(users, m[1])
	}
	return users
}

// SwitchAccount makes username gh's active account for the host.
func (c *Client) SwitchAccount(ctx context.Context, username string) error {
	users, err := c.AuthenticatedUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return &CLIError{Kind: KindNotAuthenticated}
	}
	if !containsFold(users, username) {
		return &CLIError{Kind: KindAccountNotRecognized, Username: username}
	}
	res, err := c.run(ctx, "auth", "switch", "--hostname", c.host, "--user", username)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &CLIError{Kind: KindCommandFailed, Message: firstLine(res.Stderr)}
	}
	c.log.Debug("gh active account switched", logger.String("username", username))
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}

func (c *Client) run(ctx context.Context, args ...string) (runner.Result, error) {
	res, err := c.gh.Exec(ctx, nil, args...)
	if err == nil {
		return res, nil
	}
	var inv *runner.InvalidBinaryError
	if errors.Is(err, runner.ErrNotFound) || errors.As(err, &inv) {
		return res, &CLIError{Kind: KindNotInstalled, Err: err}
	}
	return res, &CLIError{Kind: KindCommandFailed, Message: err.Error(), Err: err}
}
