// Package github talks to the GitHub REST API on behalf of a stored identity.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrBadCredentials is returned when the API rejects the token.
	ErrBadCredentials = errors.New("GitHub rejected the token")
	// ErrLoginMismatch is returned when the token belongs to another account.
	ErrLoginMismatch = errors.New("token belongs to a different GitHub account")
)

// User is the subset of GET /user we use.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Scopes lists the classic OAuth scopes; fine-grained tokens report none.
	Scopes []string `json:"-"`
}

// Client is a minimal GitHub REST client.
type Client struct {
	apiURL string
	client *http.Client
}

// NewClient creates a client for apiURL, e.g. https://api.github.com.
func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetUser returns the account the token authenticates as.
func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "gitswitch")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrBadCredentials
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GitHub API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if scopes := resp.Header.Get("X-OAuth-Scopes"); scopes != "" {
		for _, s := range strings.Split(scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				user.Scopes = append(user.Scopes, s)
			}
		}
	}
	return &user, nil
}

// VerifyToken checks that token authenticates as username (case-insensitive).
func (c *Client) VerifyToken(ctx context.Context, username, token string) (*User, error) {
	user, err := c.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Login, username) {
		return user, fmt.Errorf("%w: expected %s, got %s", ErrLoginMismatch, username, user.Login)
	}
	return user, nil
}
