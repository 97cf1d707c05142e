// Package switcher moves the machine-wide GitHub credential and git committer
// identity from one stored identity to another as a single transaction, and
// coordinates identity add, edit and remove with it.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/secrets"
)

// ConfigStore is the slice of the git config adapter a switch needs.
type ConfigStore interface {
	Identity(ctx context.Context) (name, email string, err error)
	SetIdentity(ctx context.Context, name, email string) error
	// RestoreIdentity writes back values read by Identity, unsetting empty ones.
	RestoreIdentity(ctx context.Context, name, email string) error
	ClearCachedCredential(ctx context.Context) error
}

// AccountSync is an optional tool whose active account follows the switch.
type AccountSync interface {
	Available(ctx context.Context) bool
	SwitchAccount(ctx context.Context, username string) error
}

// Repository is the identity list the switcher commits to.
type Repository interface {
	List() []identity.Identity
	Get(id string) (identity.Identity, bool)
	FindByUsername(username string) (identity.Identity, bool)
	Active() (identity.Identity, bool)
	Add(ident identity.Identity) (activated bool, err error)
	Update(ident identity.Identity) error
	Remove(id string) (wasActive bool, err error)
	MarkActive(id string, usedAt *time.Time) error
}

// Report describes a completed switch.
type Report struct {
	Identity identity.Identity
	// Noop is set when the target was already active and nothing was touched.
	Noop bool
	// Snapshot wraps ErrSnapshotIncomplete when rollback coverage was reduced.
	Snapshot error
	// CLISynced is set when the optional tool accepted the new account.
	CLISynced bool
	// CLI holds the swallowed sync failure, if any.
	CLI error
}

// Switcher runs switch transactions one at a time.
type Switcher struct {
	store  secrets.Store
	config ConfigStore
	cli    AccountSync
	repo   Repository
	log    logger.Logger

	// slot holds a token while a transaction owns the shared state.
	slot chan struct{}

	// RequireAuthentication gates token retrieval behind the store's user
	// presence check.
	RequireAuthentication bool
	// OnTransition observes every state change of every attempt.
	OnTransition func(from, to State)
	Now          func() time.Time
}

// New returns a Switcher. cli may be nil.
func New(store secrets.Store, config ConfigStore, cli AccountSync, repo Repository, log logger.Logger) *Switcher {
	return &Switcher{
		store:  store,
		config: config,
		cli:    cli,
		repo:   repo,
		log:    log,
		slot:   make(chan struct{}, 1),
		Now:    time.Now,
	}
}

// lock waits for the transaction slot. Only waiting is cancellable.
func (s *Switcher) lock(ctx context.Context) (func(), error) {
	select {
	case s.slot <- struct{}{}:
		return func() { <-s.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Switch makes the identity with id active. Switching to the active identity
// is a no-op. Once authentication has passed the transaction runs to
// completion even if ctx is cancelled.
func (s *Switcher) Switch(ctx context.Context, id string) (*Report, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	target, ok := s.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrNotFound, id)
	}
	return s.apply(ctx, target, false)
}

type snapshot struct {
	credKnown bool
	cred      secrets.Credential
	credOK    bool

	configKnown bool
	name        string
	email       string

	activeID string
}

// apply runs the transaction for target. The caller holds the slot. force
// skips the already-active short-circuit for callers that changed the record.
func (s *Switcher) apply(ctx context.Context, target identity.Identity, force bool) (*Report, error) {
	report := &Report{Identity: target.WithoutSecret()}
	log := s.log.With(logger.String("identity", target.ID), logger.String("username", target.ServiceUsername))

	if !force && target.IsActive {
		log.Debug("identity already active, nothing to switch")
		report.Noop = true
		return report, nil
	}

	token, err := s.token(ctx, target)
	if err != nil {
		return nil, err
	}

	// Past this point a half-applied switch is worse than a late one.
	ctx = context.WithoutCancel(ctx)
	state := StateIdle
	move := func(to State) {
		log.Debug("switch state", logger.String("from", state.String()), logger.String("to", to.String()))
		if s.OnTransition != nil {
			s.OnTransition(state, to)
		}
		state = to
	}

	snap, snapErr := s.capture(ctx)
	if snapErr != nil {
		log.Warn("switching with incomplete snapshot", logger.Error(snapErr))
		report.Snapshot = snapErr
	}
	move(StateSnapshotCaptured)

	fail := func(step Step, cause error) (*Report, error) {
		log.Warn("switch step failed, rolling back", logger.String("step", string(step)), logger.Error(cause))
		move(StateRollingBack)
		rbErr := s.rollback(ctx, snap, step)
		move(StateRolledBack)
		if rbErr != nil {
			log.Error("rollback failed, state is inconsistent", logger.Error(rbErr))
		}
		return nil, &SwitchError{Step: step, Err: cause, Rollback: rbErr}
	}

	if err := s.store.WriteCurrentCredential(ctx, target.ServiceUsername, token); err != nil {
		return fail(StepCredential, err)
	}
	move(StateCredentialApplied)

	if err := s.config.ClearCachedCredential(ctx); err != nil {
		log.Warn("could not clear cached credential", logger.Error(err))
	}

	if err := s.config.SetIdentity(ctx, target.CommitterName, target.CommitterEmail); err != nil {
		return fail(StepConfig, err)
	}
	move(StateConfigApplied)

	now := s.Now()
	if err := s.repo.MarkActive(target.ID, &now); err != nil {
		return fail(StepRepository, err)
	}
	move(StateRepositoryCommitted)

	s.syncCLI(ctx, target.ServiceUsername, report, log)
	move(StateCLISynced)

	move(StateDone)
	log.Info("switched identity")
	if active, ok := s.repo.Active(); ok {
		report.Identity = active
	}
	return report, nil
}

// token satisfies the precondition: a non-empty token, taken from the record
// or the secret store, before anything is mutated.
func (s *Switcher) token(ctx context.Context, target identity.Identity) (string, error) {
	if target.SecretToken != "" {
		return target.SecretToken, nil
	}
	var (
		token string
		err   error
	)
	if s.RequireAuthentication {
		reason := fmt.Sprintf("Switch GitHub identity to %s", target.ServiceUsername)
		token, err = s.store.RetrieveIdentitySecretWithAuthentication(ctx, target.ID, reason)
	} else {
		token, err = s.store.RetrieveIdentitySecret(ctx, target.ID)
	}
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, target.ServiceUsername)
	case err != nil:
		return "", err
	case token == "":
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, target.ServiceUsername)
	}
	return token, nil
}

func (s *Switcher) capture(ctx context.Context) (snapshot, error) {
	var snap snapshot
	var errs []error

	cred, ok, err := s.store.ReadCurrentCredential(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("credential: %w", err))
	} else {
		snap.credKnown, snap.cred, snap.credOK = true, cred, ok
	}

	name, email, err := s.config.Identity(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("committer config: %w", err))
	} else {
		snap.configKnown, snap.name, snap.email = true, name, email
	}

	if active, ok := s.repo.Active(); ok {
		snap.activeID = active.ID
	}

	if len(errs) > 0 {
		return snap, fmt.Errorf("%w: %w", ErrSnapshotIncomplete, errors.Join(errs...))
	}
	return snap, nil
}

// rollback restores what the failed step and the steps before it may have
// touched, using only what the snapshot captured.
func (s *Switcher) rollback(ctx context.Context, snap snapshot, failed Step) error {
	var errs []error

	switch {
	case !snap.credKnown:
		s.log.Warn("previous credential unknown, leaving credential as is")
	case snap.credOK:
		if err := s.store.WriteCurrentCredential(ctx, snap.cred.Username, snap.cred.Token); err != nil {
			errs = append(errs, fmt.Errorf("restore credential: %w", err))
		}
	default:
		if err := s.store.DeleteCurrentCredential(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove credential: %w", err))
		}
	}

	if failed != StepCredential {
		if snap.configKnown {
			if err := s.config.RestoreIdentity(ctx, snap.name, snap.email); err != nil {
				errs = append(errs, fmt.Errorf("restore committer config: %w", err))
			}
		} else {
			s.log.Warn("previous committer identity not captured, leaving config as is")
		}
	}

	if err := s.repo.MarkActive(snap.activeID, nil); err != nil && !errors.Is(err, identity.ErrNotFound) {
		errs = append(errs, fmt.Errorf("restore active identity: %w", err))
	}

	if err := s.config.ClearCachedCredential(ctx); err != nil {
		s.log.Warn("could not clear cached credential after rollback", logger.Error(err))
	}
	return errors.Join(errs...)
}

func (s *Switcher) syncCLI(ctx context.Context, username string, report *Report, log logger.Logger) {
	if s.cli == nil || !s.cli.Available(ctx) {
		log.Debug("external CLI not available, skipping account sync")
		return
	}
	if err := s.cli.SwitchAccount(ctx, username); err != nil {
		log.Warn("external CLI account sync failed", logger.Error(err))
		report.CLI = err
		return
	}
	report.CLISynced = true
}
