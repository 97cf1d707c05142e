package switcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitswitch/cli/internal/gitconfig"
	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/secrets"
)

func TestSwitchAppliesTarget(t *testing.T) {
	h := newHarness(t)
	alice := h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.sw.Now = func() time.Time { return fixed }

	report, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, report.Noop)
	assert.True(t, report.CLISynced)
	assert.Equal(t, bob.ID, report.Identity.ID)

	cred, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, secrets.Credential{Username: "bob", Token: tokBob}, cred)
	name, email := h.config.current()
	assert.Equal(t, "Name bob", name)
	assert.Equal(t, "bob@example.com", email)

	gotBob, _ := h.repo.Get(bob.ID)
	gotAlice, _ := h.repo.Get(alice.ID)
	assert.True(t, gotBob.IsActive)
	assert.False(t, gotAlice.IsActive)
	require.NotNil(t, gotBob.LastUsedAt)
	assert.Equal(t, fixed, *gotBob.LastUsedAt)
	assert.Equal(t, []string{"alice", "bob"}, h.cli.switched)
}

func TestSwitchToActiveIsNoop(t *testing.T) {
	h := newHarness(t)
	alice := h.add(t, "alice", tokAlice)
	writes, sets, clears := len(h.store.Writes()), h.config.setCount(), h.config.clears

	report, err := h.sw.Switch(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, report.Noop)
	assert.Len(t, h.store.Writes(), writes)
	assert.Equal(t, sets, h.config.setCount())
	assert.Equal(t, clears, h.config.clears)
	assert.Equal(t, 0, h.store.AuthCalls)
}

func TestSwitchUnknownIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.sw.Switch(context.Background(), "missing")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestSwitchRollbackOnConfigFailure(t *testing.T) {
	h := newHarness(t)
	alice := h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.store.SetCurrent("u1", "t1")
	h.config.name, h.config.email = "n1", "e1@example.com"
	h.config.failSet = func(name, _ string) error {
		if name == "Name bob" {
			return errBoom
		}
		return nil
	}

	_, err := h.sw.Switch(context.Background(), bob.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, errors.Is(err, ErrInconsistentState))
	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepConfig, se.Step)

	cred, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, secrets.Credential{Username: "u1", Token: "t1"}, cred)
	name, email := h.config.current()
	assert.Equal(t, "n1", name)
	assert.Equal(t, "e1@example.com", email)
	assert.Equal(t, alice.ID, h.activeID())
}

func TestSwitchRollbackOnRepositoryFailure(t *testing.T) {
	h := newHarness(t)
	alice := h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.persist.failSave = errBoom

	_, err := h.sw.Switch(context.Background(), bob.ID)
	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepRepository, se.Step)
	assert.Nil(t, se.Rollback)

	cred, _ := h.store.Current()
	assert.Equal(t, "alice", cred.Username)
	_, email := h.config.current()
	assert.Equal(t, "alice@example.com", email)
	assert.Equal(t, alice.ID, h.activeID())
}

func TestSwitchRollbackRemovesCredentialThatWasAbsent(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	require.NoError(t, h.store.DeleteCurrentCredential(context.Background()))
	h.config.failSet = func(string, string) error { return errBoom }

	_, err := h.sw.Switch(context.Background(), bob.ID)
	require.Error(t, err)
	_, ok := h.store.Current()
	assert.False(t, ok)
}

func TestSwitchRollbackFailureIsInconsistent(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.config.failSet = func(string, string) error { return errBoom }
	rollbackErr := errors.New("keychain locked")
	h.store.WriteHook = func(c secrets.Credential) error {
		if c.Username == "alice" {
			return rollbackErr
		}
		return nil
	}

	_, err := h.sw.Switch(context.Background(), bob.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.ErrorIs(t, err, errBoom, "the triggering error is what propagates")
	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, se.Rollback, rollbackErr)
	assert.Contains(t, err.Error(), "rollback failed")
}

func TestSwitchRollbackRestoresGitConfig(t *testing.T) {
	tests := []struct {
		name  string
		prior map[string]string
	}{
		{name: "only name set", prior: map[string]string{"user.name": "Prior Name"}},
		{name: "nothing set", prior: map[string]string{}},
		{name: "values git accepts but new input would not", prior: map[string]string{"user.name": "ci-bot[bot]", "user.email": "me@localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gitValues{values: map[string]string{}, fail: map[string]bool{}}
			h := newGitHarness(t, g)
			alice := h.add(t, "alice", tokAlice)
			bob := h.add(t, "bob", tokBob)
			g.values = map[string]string{}
			for k, v := range tt.prior {
				g.values[k] = v
			}
			g.fail["user.email=bob@example.com"] = true

			_, err := h.sw.Switch(context.Background(), bob.ID)
			var se *SwitchError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StepConfig, se.Step)
			assert.NoError(t, se.Rollback)
			assert.ErrorIs(t, err, gitconfig.ErrCommandFailed)

			assert.Equal(t, tt.prior, g.values, "name written before the failure must be undone")
			cred, _ := h.store.Current()
			assert.Equal(t, "alice", cred.Username)
			assert.Equal(t, alice.ID, h.activeID())
		})
	}
}

func TestSwitchGitConfigRestoreFailureIsInconsistent(t *testing.T) {
	g := &gitValues{values: map[string]string{}, fail: map[string]bool{}}
	h := newGitHarness(t, g)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	g.values = map[string]string{"user.name": "Prior Name", "user.email": "prior@example.com"}
	g.fail["user.email=bob@example.com"] = true
	g.fail["user.name=Prior Name"] = true

	_, err := h.sw.Switch(context.Background(), bob.ID)
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.Equal(t, "Name bob", g.values["user.name"])
	assert.Equal(t, "prior@example.com", g.values["user.email"], "email is restored even though the name could not be")
}

func TestSwitchCredentialFailureLeavesConfigAlone(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	sets := h.config.setCount()
	h.store.WriteHook = func(c secrets.Credential) error {
		if c.Username == "bob" {
			return errBoom
		}
		return nil
	}

	_, err := h.sw.Switch(context.Background(), bob.ID)
	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StepCredential, se.Step)
	assert.Nil(t, se.Rollback)
	assert.Equal(t, sets, h.config.setCount())
	cred, _ := h.store.Current()
	assert.Equal(t, "alice", cred.Username)
}

func TestSwitchTokenNotFound(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	require.NoError(t, h.store.DeleteIdentitySecret(context.Background(), bob.ID))
	writes, sets := len(h.store.Writes()), h.config.setCount()

	_, err := h.sw.Switch(context.Background(), bob.ID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Len(t, h.store.Writes(), writes)
	assert.Equal(t, sets, h.config.setCount())
}

func TestSwitchAuthentication(t *testing.T) {
	tests := []struct {
		name    string
		outcome secrets.AuthOutcome
		wantErr error
	}{
		{name: "allowed", outcome: secrets.AuthAllow},
		{name: "denied", outcome: secrets.AuthDeny, wantErr: secrets.ErrAuthenticationFailed},
		{name: "cancelled", outcome: secrets.AuthCancel, wantErr: secrets.ErrAuthenticationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			alice := h.add(t, "alice", tokAlice)
			bob := h.add(t, "bob", tokBob)
			h.sw.RequireAuthentication = true
			h.store.Auth = tt.outcome
			writes := len(h.store.Writes())

			_, err := h.sw.Switch(context.Background(), bob.ID)
			assert.Equal(t, 1, h.store.AuthCalls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, h.store.Writes(), writes, "nothing is written after a failed authentication")
				assert.Equal(t, alice.ID, h.activeID())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, bob.ID, h.activeID())
		})
	}
}

func TestSwitchCLIFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.cli.err = errors.New("gh does not know account")

	report, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, report.CLISynced)
	assert.Error(t, report.CLI)
	assert.Equal(t, bob.ID, h.activeID())
}

func TestSwitchSkipsUnavailableCLI(t *testing.T) {
	h := newHarness(t)
	h.cli.available = false
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)

	report, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, report.CLISynced)
	assert.Nil(t, report.CLI)
	assert.Empty(t, h.cli.switched)
}

func TestSwitchWithIncompleteSnapshot(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.config.failGet = errBoom

	report, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Snapshot, ErrSnapshotIncomplete)
	assert.Equal(t, bob.ID, h.activeID())
}

func TestSwitchClearCacheFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	h.config.failClr = errBoom

	_, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, h.activeID())
}

func TestSwitchTransitions(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	carol := h.add(t, "carol", tokCarol)

	var seen []State
	h.sw.OnTransition = func(_, to State) { seen = append(seen, to) }

	_, err := h.sw.Switch(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []State{
		StateSnapshotCaptured, StateCredentialApplied, StateConfigApplied,
		StateRepositoryCommitted, StateCLISynced, StateDone,
	}, seen)

	seen = nil
	h.config.failSet = func(string, string) error { return errBoom }
	_, err = h.sw.Switch(context.Background(), carol.ID)
	require.Error(t, err)
	assert.Equal(t, []State{
		StateSnapshotCaptured, StateCredentialApplied, StateRollingBack, StateRolledBack,
	}, seen)
	assert.Equal(t, "rolled-back", StateRolledBack.String())
}

func TestSwitchesAreSerialized(t *testing.T) {
	h := newHarness(t)
	rec := &events{}
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)
	carol := h.add(t, "carol", tokCarol)

	h.config.recorder = rec
	h.store.WriteHook = func(c secrets.Credential) error {
		rec.add("cred:" + c.Username)
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for _, id := range []string{bob.ID, carol.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.sw.Switch(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	log := rec.all()
	require.Len(t, log, 4)
	for i := 0; i < len(log); i += 2 {
		user := log[i][len("cred:"):]
		assert.Equal(t, "config:"+user+"@example.com", log[i+1], "transactions interleaved: %v", log)
	}
	assert.Equal(t, 1, countActive(h.repo.List()))
	last := log[2][len("cred:"):]
	active, _ := h.repo.Active()
	assert.Equal(t, last, active.ServiceUsername)
}

func TestSwitchWaitIsCancellable(t *testing.T) {
	h := newHarness(t)
	h.add(t, "alice", tokAlice)
	bob := h.add(t, "bob", tokBob)

	unlock, err := h.sw.lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.sw.Switch(ctx, bob.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func countActive(items []identity.Identity) int {
	n := 0
	for _, it := range items {
		if it.IsActive {
			n++
		}
	}
	return n
}
