package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no candidate location holds the executable.
var ErrNotFound = errors.New("executable not found")

// DefaultSearchDirs are tried, in order, before falling back to PATH.
var DefaultSearchDirs = []string{
	"/usr/bin",
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/Library/Developer/CommandLineTools/usr/bin",
}

// DefaultTrustedPrefixes are install locations whose binaries skip signature checks.
var DefaultTrustedPrefixes = []string{
	"/usr/bin/",
	"/bin/",
	"/Library/Developer/CommandLineTools/",
	"/Applications/Xcode.app/",
	"/opt/homebrew/",
	"/usr/local/Cellar/",
}

// Resolver locates an executable by name and validates it once. A successful
// resolution is cached for the life of the Resolver.
type Resolver struct {
	Name            string
	Explicit        string // configured path, tried first
	SearchDirs      []string
	TrustedPrefixes []string
	Verifier        Verifier

	LookPath     func(string) (string, error)
	Stat         func(string) (os.FileInfo, error)
	EvalSymlinks func(string) (string, error)

	mu   sync.Mutex
	path string
}

// NewResolver returns a Resolver with the default search dirs and trusted prefixes.
func NewResolver(name, explicit string, verifier Verifier) *Resolver {
	return &Resolver{
		Name:            name,
		Explicit:        explicit,
		SearchDirs:      DefaultSearchDirs,
		TrustedPrefixes: DefaultTrustedPrefixes,
		Verifier:        verifier,
	}
}

// Resolve returns the validated absolute path of the executable.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.path != "" {
		return r.path, nil
	}

	candidate, err := r.locate()
	if err != nil {
		return "", err
	}
	if err := r.validate(ctx, candidate); err != nil {
		return "", err
	}
	r.path = candidate
	return candidate, nil
}

func (r *Resolver) locate() (string, error) {
	if r.Explicit != "" {
		if r.isFile(r.Explicit) {
			return r.Explicit, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, r.Explicit)
	}
	for _, dir := range r.SearchDirs {
		p := filepath.Join(dir, r.Name)
		if r.isFile(p) {
			return p, nil
		}
	}
	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	p, err := lookPath(r.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, r.Name)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p, nil
}

func (r *Resolver) validate(ctx context.Context, path string) error {
	eval := r.EvalSymlinks
	if eval == nil {
		eval = filepath.EvalSymlinks
	}
	real, err := eval(path)
	if err != nil {
		real = path
	}
	if r.trusted(real) {
		return nil
	}
	if r.Verifier == nil {
		return &InvalidBinaryError{Path: real, Reason: "outside trusted install locations"}
	}
	return r.Verifier.Verify(ctx, real)
}

func (r *Resolver) trusted(path string) bool {
	for _, prefix := range r.TrustedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (r *Resolver) isFile(path string) bool {
	stat := r.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(path)
	return err == nil && info.Mode().IsRegular()
}
