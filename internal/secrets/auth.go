package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const passphraseAccount = "passphrase"

var (
	// ErrAuthUnavailable means the method cannot run here (no terminal, nothing enrolled).
	ErrAuthUnavailable = errors.New("authentication method unavailable")
	ErrAuthDenied      = errors.New("authentication denied")
	ErrAuthCancelled   = errors.New("authentication cancelled")
)

// Authenticator checks that the user is present before a secret is released.
// Implementations must return promptly when ctx is cancelled.
type Authenticator interface {
	Authenticate(ctx context.Context, reason string) error
}

// FallbackAuthenticator tries Primary and uses Fallback only when the
// primary check is unavailable. A denial is final.
type FallbackAuthenticator struct {
	Primary  Authenticator
	Fallback Authenticator
}

func (f *FallbackAuthenticator) Authenticate(ctx context.Context, reason string) error {
	err := f.Primary.Authenticate(ctx, reason)
	if !errors.Is(err, ErrAuthUnavailable) || f.Fallback == nil {
		return err
	}
	return f.Fallback.Authenticate(ctx, reason)
}

// ConfirmAuthenticator asks an interactive terminal user to confirm. In is
// shared with any other prompt reading the same input.
type ConfirmAuthenticator struct {
	In         *bufio.Reader
	Out        io.Writer
	IsTerminal func() bool
}

func (c *ConfirmAuthenticator) Authenticate(ctx context.Context, reason string) error {
	if c.IsTerminal == nil || !c.IsTerminal() {
		return ErrAuthUnavailable
	}
	fmt.Fprintf(c.Out, "%s\nContinue? [y/N]: ", reason)
	line, err := readLine(ctx, func() (string, error) {
		return c.In.ReadString('\n')
	})
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrAuthDenied
	}
}

// PassphraseAuthenticator verifies a passphrase against the bcrypt hash stored
// in the keyring.
type PassphraseAuthenticator struct {
	Keyring KeyringAPI
	// Read returns the passphrase typed by the user.
	Read func() (string, error)
	Out  io.Writer
}

func (p *PassphraseAuthenticator) Authenticate(ctx context.Context, reason string) error {
	hash, err := p.Keyring.Get(AppService, passphraseAccount)
	if isKeyringNotFound(err) {
		return ErrAuthUnavailable
	}
	if err != nil {
		return fmt.Errorf("failed to read passphrase hash: %w", err)
	}
	if p.Out != nil {
		fmt.Fprintf(p.Out, "%s\nPassphrase: ", reason)
	}
	pass, err := readLine(ctx, p.Read)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimRight(pass, "\r\n"))); err != nil {
		return ErrAuthDenied
	}
	return nil
}

// SetPassphrase stores a bcrypt hash of passphrase as the knowledge factor.
func SetPassphrase(kr KeyringAPI, passphrase string) error {
	if len(passphrase) < 8 {
		return errors.New("passphrase must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash passphrase: %w", err)
	}
	return kr.Set(AppService, passphraseAccount, string(hash))
}

// HasPassphrase reports whether a knowledge factor is enrolled.
func HasPassphrase(kr KeyringAPI) bool {
	_, err := kr.Get(AppService, passphraseAccount)
	return err == nil
}

// readLine runs read in the background so a cancelled ctx unblocks the caller.
// An abandoned read finishes whenever input arrives.
func readLine(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := read()
		ch <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ErrAuthCancelled
	case r := <-ch:
		if errors.Is(r.err, io.EOF) && strings.TrimSpace(r.line) == "" {
			return "", ErrAuthCancelled
		}
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", r.err)
		}
		return r.line, nil
	}
}
