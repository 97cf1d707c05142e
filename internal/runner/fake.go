package runner

import (
	"context"
	"os"
	"sync"
	"time"
)

// FakeRunner is a scripted Runner for tests. Rules are matched in order by
// argument prefix; unmatched commands succeed with empty output.
type FakeRunner struct {
	mu    sync.Mutex
	rules []fakeRule
	calls []Command
}

type fakeRule struct {
	prefix []string
	handle func(Command) (Result, error)
}

// On answers commands whose args start with prefix with a fixed result.
func (f *FakeRunner) On(res Result, err error, prefix ...string) *FakeRunner {
	return f.Handle(func(Command) (Result, error) { return res, err }, prefix...)
}

// Handle answers commands whose args start with prefix with fn.
func (f *FakeRunner) Handle(fn func(Command) (Result, error), prefix ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, handle: fn})
	return f
}

func (f *FakeRunner) Run(_ context.Context, c Command) (Result, error) {
	f.mu.Lock()
	c.Args = append([]string(nil), c.Args...)
	f.calls = append(f.calls, c)
	rules := append([]fakeRule(nil), f.rules...)
	f.mu.Unlock()

	for _, r := range rules {
		if hasPrefix(c.Args, r.prefix) {
			return r.handle(c)
		}
	}
	return Result{}, nil
}

// Calls returns every command run so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CallsWith returns the commands whose args start with prefix.
func (f *FakeRunner) CallsWith(prefix ...string) []Command {
	var out []Command
	for _, c := range f.Calls() {
		if hasPrefix(c.Args, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}

// Stdout is shorthand for a successful Result with output.
func Stdout(s string) Result {
	return Result{Stdout: []byte(s)}
}

// Failure is shorthand for a Result with a non-zero exit code and stderr.
func Failure(code int, stderr string) Result {
	return Result{ExitCode: code, Stderr: []byte(stderr)}
}

// FakeTool returns a Tool that resolves name to a fixed path and runs through f.
func FakeTool(name string, f Runner) *Tool {
	path := "/usr/bin/" + name
	return &Tool{
		Resolver: &Resolver{
			Name:            name,
			SearchDirs:      []string{"/usr/bin"},
			TrustedPrefixes: []string{"/usr/bin/"},
			Stat:            func(p string) (os.FileInfo, error) { return fakeFileInfo{name: name}, nil },
			EvalSymlinks:    func(p string) (string, error) { return p, nil },
			LookPath:        func(string) (string, error) { return path, nil },
		},
		Runner: f,
		Env:    MinimalEnv("/home/test"),
	}
}

type fakeFileInfo struct {
	name string
	mode os.FileMode
}

func (f fakeFileInfo) Name() string { return f.name }
func (f fakeFileInfo) Size() int64  { return 0 }
func (f fakeFileInfo) Mode() os.FileMode {
	if f.mode == 0 {
		return 0o755
	}
	return f.mode
}
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeFileInfo) Sys() any           { return nil }
