package switcher

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitswitch/cli/internal/gitconfig"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/runner"
	"github.com/gitswitch/cli/internal/secrets"
)

var (
	tokAlice = "ghp_" + strings.Repeat("a", 36)
	tokBob   = "ghp_" + strings.Repeat("b", 36)
	tokCarol = "ghp_" + strings.Repeat("c", 36)
)

type memPersister struct {
	mu       sync.Mutex
	data     []byte
	failSave error
}

func (m *memPersister) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, os.ErrNotExist
	}
	return m.data, nil
}

func (m *memPersister) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.data = append([]byte(nil), data...)
	return nil
}

// events is a shared, ordered log of external writes.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeConfig struct {
	mu       sync.Mutex
	name     string
	email    string
	sets     int
	clears   int
	failSet  func(name, email string) error
	restores int
	failRst  error
	failGet  error
	failClr  error
	recorder *events
}

func (c *fakeConfig) Identity(context.Context) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return "", "", c.failGet
	}
	return c.name, c.email, nil
}

func (c *fakeConfig) SetIdentity(_ context.Context, name, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		if err := c.failSet(name, email); err != nil {
			return err
		}
	}
	c.name, c.email = name, email
	c.sets++
	if c.recorder != nil {
		c.recorder.add("config:" + email)
	}
	return nil
}

func (c *fakeConfig) RestoreIdentity(_ context.Context, name, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRst != nil {
		return c.failRst
	}
	c.name, c.email = name, email
	c.restores++
	return nil
}

func (c *fakeConfig) ClearCachedCredential(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	return c.failClr
}

func (c *fakeConfig) current() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.email
}

func (c *fakeConfig) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type fakeCLI struct {
	mu        sync.Mutex
	available bool
	err       error
	switched  []string
}

func (f *fakeCLI) Available(context.Context) bool { return f.available }

func (f *fakeCLI) SwitchAccount(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, username)
	return f.err
}

type harness struct {
	store    *secrets.MemoryStore
	config   *fakeConfig
	cli      *fakeCLI
	persist  *memPersister
	repo     *identity.Repository
	sw       *Switcher
	accounts *Accounts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   secrets.NewMemoryStore(),
		config:  &fakeConfig{},
		cli:     &fakeCLI{available: true},
		persist: &memPersister{},
	}
	h.repo = identity.NewRepository(h.persist, logger.NewNop())
	h.sw = New(h.store, h.config, h.cli, h.repo, logger.NewNop())
	h.accounts = NewAccounts(h.sw, logger.NewNop())
	return h
}

// gitValues emulates single-valued `git config --global` keys for a real
// gitconfig.Adapter. fail lists "key=value" writes that git refuses.
type gitValues struct {
	values map[string]string
	fail   map[string]bool
}

func (g *gitValues) handle(c runner.Command) (runner.Result, error) {
	args := c.Args[2:]
	switch args[0] {
	case "--get":
		v, ok := g.values[args[1]]
		if !ok {
			return runner.Failure(1, ""), nil
		}
		return runner.Stdout(v + "\n"), nil
	case "--unset-all":
		if _, ok := g.values[args[1]]; !ok {
			return runner.Failure(5, ""), nil
		}
		delete(g.values, args[1])
	default:
		if g.fail[args[0]+"="+args[1]] {
			return runner.Failure(255, "error: could not lock config file /home/ada/.gitconfig: File exists"), nil
		}
		g.values[args[0]] = args[1]
	}
	return runner.Result{}, nil
}

// newGitHarness is newHarness with the committer config going through
// gitconfig.Adapter over g.
func newGitHarness(t *testing.T, g *gitValues) *harness {
	t.Helper()
	h := newHarness(t)
	f := &runner.FakeRunner{}
	f.Handle(g.handle, "config", "--global")
	adapter := gitconfig.New(runner.FakeTool("git", f), "osxkeychain", "/home/ada", logger.NewNop())
	h.sw = New(h.store, adapter, nil, h.repo, logger.NewNop())
	h.accounts = NewAccounts(h.sw, logger.NewNop())
	return h
}

func person(username, token string) identity.Identity {
	return identity.New(strings.ToUpper(username[:1])+username[1:], username, token, "Name "+username, username+"@example.com")
}

// add stores an identity through the account service.
func (h *harness) add(t *testing.T, username, token string) identity.Identity {
	t.Helper()
	ident, _, err := h.accounts.Add(context.Background(), person(username, token))
	require.NoError(t, err)
	return ident
}

func (h *harness) activeID() string {
	a, ok := h.repo.Active()
	if !ok {
		return ""
	}
	return a.ID
}

var errBoom = errors.New("boom")
