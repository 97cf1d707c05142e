package secrets

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
)

// CredentialHelper speaks git's credential protocol through `git credential`,
// so whatever helper git is configured with (osxkeychain, manager, libsecret)
// holds the host credential.
type CredentialHelper struct {
	git      *runner.Tool
	protocol string
	host     string
	log      logger.Logger
}

// NewCredentialHelper returns a helper for https://host.
func NewCredentialHelper(git *runner.Tool, host string, log logger.Logger) *CredentialHelper {
	return &CredentialHelper{git: git, protocol: "https", host: host, log: log}
}

type field struct{ key, value string }

// encodeCredential renders a newline-terminated key=value block. Values
// containing newlines or NUL cannot be represented in the protocol.
func encodeCredential(fields ...field) ([]byte, error) {
	var b bytes.Buffer
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if strings.ContainsAny(f.value, "\n\x00") {
			return nil, &StoreError{Kind: KindEncodingFailed, Message: f.key + " contains a newline or NUL"}
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(f.value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func decodeCredential(out []byte) map[string]string {
	m := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

// Fill asks git for the host credential, optionally for a specific username.
func (h *CredentialHelper) Fill(ctx context.Context, username string) (Credential, bool, error) {
	in, err := encodeCredential(
		field{"protocol", h.protocol},
		field{"host", h.host},
		field{"username", username},
	)
	if err != nil {
		return Credential{}, false, err
	}
	res, err := h.exec(ctx, in, "fill")
	if err != nil {
		return Credential{}, false, err
	}
	if !res.Success() {
		// With prompts disabled git fails once every helper came up empty.
		stderr := strings.ToLower(string(res.Stderr))
		if strings.Contains(stderr, "terminal prompts disabled") || strings.Contains(stderr, "could not read") {
			return Credential{}, false, nil
		}
		return Credential{}, false, unexpected(res.ExitCode, "git credential fill failed", nil)
	}
	m := decodeCredential(res.Stdout)
	if m["password"] == "" {
		return Credential{}, false, nil
	}
	return Credential{Username: m["username"], Token: m["password"]}, true, nil
}

// Approve stores the credential through git's configured helpers.
func (h *CredentialHelper) Approve(ctx context.Context, username, token string) error {
	in, err := h.block(username, token)
	if err != nil {
		return err
	}
	res, err := h.exec(ctx, in, "approve")
	if err != nil {
		return err
	}
	if !res.Success() {
		return unexpected(res.ExitCode, "git credential approve failed", nil)
	}
	return nil
}

// Reject erases the host credential for username (any user when empty).
func (h *CredentialHelper) Reject(ctx context.Context, username string) error {
	in, err := encodeCredential(
		field{"protocol", h.protocol},
		field{"host", h.host},
		field{"username", username},
	)
	if err != nil {
		return err
	}
	res, err := h.exec(ctx, in, "reject")
	if err != nil {
		return err
	}
	if !res.Success() {
		return unexpected(res.ExitCode, "git credential reject failed", nil)
	}
	return nil
}

// Encodable reports whether the pair can be sent through the protocol.
func (h *CredentialHelper) Encodable(username, token string) error {
	_, err := h.block(username, token)
	return err
}

func (h *CredentialHelper) block(username, token string) ([]byte, error) {
	if username == "" || token == "" {
		return nil, &StoreError{Kind: KindEncodingFailed, Message: "username and token are required"}
	}
	return encodeCredential(
		field{"protocol", h.protocol},
		field{"host", h.host},
		field{"username", username},
		field{"password", token},
	)
}

func (h *CredentialHelper) exec(ctx context.Context, stdin []byte, op string) (runner.Result, error) {
	res, err := h.git.Exec(ctx, stdin, "credential", op)
	if err == nil {
		return res, nil
	}
	var inv *runner.InvalidBinaryError
	switch {
	case errors.Is(err, runner.ErrNotFound):
		return res, unexpected(-1, "git executable not found", err)
	case errors.As(err, &inv):
		return res, unexpected(-1, "git executable rejected", err)
	default:
		return res, unexpected(-1, "git credential "+op+" did not complete", err)
	}
}
