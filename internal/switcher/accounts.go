package switcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gitswitch/cli/internal/identity"
	"github.com/gitswitch/cli/internal/logger"
	"github.com/gitswitch/cli/internal/secrets"
)

const minIDPrefix = 8

// Accounts adds, edits and removes identities, keeping the live credential in
// step whenever the active identity changes.
type Accounts struct {
	sw  *Switcher
	log logger.Logger
}

// NewAccounts returns an account service sharing sw's transaction slot.
func NewAccounts(sw *Switcher, log logger.Logger) *Accounts {
	return &Accounts{sw: sw, log: log}
}

// List returns the identities in stored order.
func (a *Accounts) List() []identity.Identity {
	return a.sw.repo.List()
}

// Active returns the active identity.
func (a *Accounts) Active() (identity.Identity, bool) {
	return a.sw.repo.Active()
}

// Resolve finds an identity by id, service username (any case) or an id
// prefix of at least eight characters.
func (a *Accounts) Resolve(ref string) (identity.Identity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return identity.Identity{}, fmt.Errorf("%w: empty reference", identity.ErrNotFound)
	}
	if it, ok := a.sw.repo.Get(ref); ok {
		return it, nil
	}
	if it, ok := a.sw.repo.FindByUsername(ref); ok {
		return it, nil
	}
	if len(ref) >= minIDPrefix {
		var matches []identity.Identity
		for _, it := range a.sw.repo.List() {
			if strings.HasPrefix(it.ID, strings.ToLower(ref)) {
				matches = append(matches, it)
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
		default:
			return identity.Identity{}, fmt.Errorf("%w: %s", ErrAmbiguousReference, ref)
		}
	}
	return identity.Identity{}, fmt.Errorf("%w: %s", identity.ErrNotFound, ref)
}

// Add validates and stores ident. The first identity ever added becomes
// active and its credential is applied; if that fails it is left inactive and
// the error is returned together with the stored record.
func (a *Accounts) Add(ctx context.Context, ident identity.Identity) (identity.Identity, *Report, error) {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	if err := ident.Validate(); err != nil {
		return identity.Identity{}, nil, err
	}
	if _, ok := a.sw.repo.FindByUsername(ident.ServiceUsername); ok {
		return identity.Identity{}, nil, fmt.Errorf("%w: %s", identity.ErrDuplicateUsername, ident.ServiceUsername)
	}

	unlock, err := a.sw.lock(ctx)
	if err != nil {
		return identity.Identity{}, nil, err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	if err := a.sw.store.StoreIdentitySecret(ctx, ident.ID, ident.SecretToken); err != nil {
		return identity.Identity{}, nil, fmt.Errorf("failed to store token: %w", err)
	}
	activated, err := a.sw.repo.Add(ident)
	if err != nil {
		if derr := a.sw.store.DeleteIdentitySecret(ctx, ident.ID); derr != nil {
			a.log.Warn("could not remove token of rejected identity", logger.Error(derr))
		}
		return identity.Identity{}, nil, err
	}
	stored, _ := a.sw.repo.Get(ident.ID)
	a.log.Info("identity added", logger.String("identity", ident.ID), logger.Bool("active", activated))
	if !activated {
		return stored, nil, nil
	}

	stored.SecretToken = ident.SecretToken
	report, err := a.sw.apply(ctx, stored, true)
	if err != nil {
		if merr := a.sw.repo.MarkActive("", nil); merr != nil {
			err = errors.Join(err, merr)
		}
		stored, _ = a.sw.repo.Get(ident.ID)
		return stored, nil, err
	}
	return report.Identity, report, nil
}

// Update replaces the identity with the same id. An empty SecretToken keeps
// the stored token. When the active identity is edited the new values are
// applied immediately.
func (a *Accounts) Update(ctx context.Context, ident identity.Identity) (identity.Identity, *Report, error) {
	stored, ok := a.sw.repo.Get(ident.ID)
	if !ok {
		return identity.Identity{}, nil, fmt.Errorf("%w: %s", identity.ErrNotFound, ident.ID)
	}

	storedToken, err := a.sw.store.RetrieveIdentitySecret(ctx, ident.ID)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return identity.Identity{}, nil, fmt.Errorf("failed to read stored token: %w", err)
	}
	if err := identity.ValidateUpdate(ident, storedToken); err != nil {
		return identity.Identity{}, nil, err
	}
	if other, ok := a.sw.repo.FindByUsername(ident.ServiceUsername); ok && other.ID != ident.ID {
		return identity.Identity{}, nil, fmt.Errorf("%w: %s", identity.ErrDuplicateUsername, ident.ServiceUsername)
	}

	unlock, err := a.sw.lock(ctx)
	if err != nil {
		return identity.Identity{}, nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	token := storedToken
	if ident.SecretToken != "" && ident.SecretToken != storedToken {
		if err := a.sw.store.StoreIdentitySecret(ctx, ident.ID, ident.SecretToken); err != nil {
			return identity.Identity{}, nil, fmt.Errorf("failed to store token: %w", err)
		}
		token = ident.SecretToken
	}
	if err := a.sw.repo.Update(ident); err != nil {
		return identity.Identity{}, nil, err
	}
	updated, _ := a.sw.repo.Get(ident.ID)
	a.log.Info("identity updated", logger.String("identity", ident.ID))
	if !stored.IsActive {
		return updated, nil, nil
	}

	updated.SecretToken = token
	report, err := a.sw.apply(ctx, updated, true)
	if err != nil {
		return updated.WithoutSecret(), nil, err
	}
	return report.Identity, report, nil
}

// Remove deletes the identity and its token. Removing the active identity
// activates the first remaining one, or deletes the live credential when none
// is left. If the replacement cannot be applied the live credential is deleted
// too and a *RemoveError is returned.
func (a *Accounts) Remove(ctx context.Context, id string) (*Report, error) {
	unlock, err := a.sw.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	removed, _ := a.sw.repo.Get(id)
	wasActive, err := a.sw.repo.Remove(id)
	if err != nil {
		return nil, err
	}
	if err := a.sw.store.DeleteIdentitySecret(ctx, id); err != nil {
		a.log.Warn("could not delete identity token", logger.String("identity", id), logger.Error(err))
	}
	a.log.Info("identity removed", logger.String("identity", id), logger.Bool("was_active", wasActive))
	if !wasActive {
		return nil, nil
	}

	remaining := a.sw.repo.List()
	if len(remaining) == 0 {
		return nil, a.clearLive(ctx)
	}
	report, err := a.sw.apply(ctx, remaining[0], true)
	if err != nil {
		// Rollback put the removed identity's credential back.
		if clearErr := a.clearLive(ctx); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return nil, &RemoveError{Removed: removed.WithoutSecret(), Err: err}
	}
	return report, nil
}

// clearLive deletes the host credential and drops git's cached copy.
func (a *Accounts) clearLive(ctx context.Context) error {
	if err := a.sw.store.DeleteCurrentCredential(ctx); err != nil {
		return fmt.Errorf("failed to delete current credential: %w", err)
	}
	if err := a.sw.config.ClearCachedCredential(ctx); err != nil {
		a.log.Warn("could not clear cached credential", logger.Error(err))
	}
	return nil
}
