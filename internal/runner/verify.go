package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const codesignPath = "/usr/bin/codesign"

// InvalidBinaryError is returned when a resolved executable fails validation.
type InvalidBinaryError struct {
	Path   string
	Reason string
}

func (e *InvalidBinaryError) Error() string {
	return fmt.Sprintf("refusing to run %s: %s", e.Path, e.Reason)
}

// Verifier validates the identity of an executable before it is trusted.
type Verifier interface {
	Verify(ctx context.Context, path string) error
}

// SignatureVerifier checks code signatures with codesign on darwin. Elsewhere it
// requires a regular executable that only its owner can modify.
type SignatureVerifier struct {
	Runner Runner
	GOOS   string
	Stat   func(string) (os.FileInfo, error)
}

func (v *SignatureVerifier) Verify(ctx context.Context, path string) error {
	stat := v.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	if err != nil {
		return &InvalidBinaryError{Path: path, Reason: "cannot stat file"}
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return &InvalidBinaryError{Path: path, Reason: "not an executable file"}
	}

	if v.GOOS != "darwin" {
		if info.Mode().Perm()&0o022 != 0 {
			return &InvalidBinaryError{Path: path, Reason: "writable by group or others"}
		}
		return nil
	}

	res, err := v.Runner.Run(ctx, Command{
		Path: codesignPath,
		Args: []string{"--verify", "--strict", path},
		Env:  MinimalEnv(""),
	})
	if err != nil {
		return &InvalidBinaryError{Path: path, Reason: "signature check did not complete"}
	}
	if !res.Success() {
		reason := strings.TrimSpace(string(res.Stderr))
		if reason == "" {
			reason = "invalid code signature"
		}
		return &InvalidBinaryError{Path: path, Reason: reason}
	}
	return nil
}
