package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitswitch/cli/internal/logger"
)

var (
	// ErrDuplicateUsername is returned when a service username is already taken (case-insensitive).
	ErrDuplicateUsername = errors.New("an identity with this service username already exists")
	// ErrNotFound is returned when an id does not match any identity.
	ErrNotFound = errors.New("identity not found")
)

// Repository owns the ordered identity list and persists its non-secret fields.
// Tokens are never held here; they live in the secret store.
//
// The repository keeps at most one identity active but never picks a successor
// on its own: that decision is coupled to applying a credential and belongs to
// the caller.
type Repository struct {
	mu      sync.RWMutex
	store   Persister
	log     logger.Logger
	items   []Identity
	loadErr error

	activeIdx   int
	activeValid bool
}

// NewRepository loads the persisted identities. A missing or corrupt document
// yields an empty repository; the error is kept for LoadError.
func NewRepository(store Persister, log logger.Logger) *Repository {
	r := &Repository{store: store, log: log}

	data, err := store.Load()
	switch {
	case err == nil:
		items, derr := Decode(data)
		if derr != nil {
			r.loadErr = derr
			log.Warn("identities document unreadable, starting empty", logger.Error(derr))
			break
		}
		r.items = normalizeActive(items, log)
	case IsNotExist(err):
	default:
		r.loadErr = fmt.Errorf("failed to load identities: %w", err)
		log.Warn("identities document unreadable, starting empty", logger.Error(err))
	}
	return r
}

// normalizeActive clears the flag on all but the first active identity.
func normalizeActive(items []Identity, log logger.Logger) []Identity {
	seen := false
	for i := range items {
		if !items[i].IsActive {
			continue
		}
		if seen {
			log.Warn("more than one active identity persisted, clearing extra", logger.String("id", items[i].ID))
			items[i].IsActive = false
			continue
		}
		seen = true
	}
	return items
}

// LoadError returns the error encountered while loading, if any.
func (r *Repository) LoadError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// List returns a copy of all identities in insertion order.
func (r *Repository) List() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, len(r.items))
	for i, it := range r.items {
		out[i] = it.clone()
	}
	return out
}

// Len returns the number of identities.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Get returns the identity with id.
func (r *Repository) Get(id string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.items[idx].clone(), true
	}
	return Identity{}, false
}

// FindByUsername returns the identity whose service username matches, ignoring case.
func (r *Repository) FindByUsername(username string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if SameUsername(it.ServiceUsername, username) {
			return it.clone(), true
		}
	}
	return Identity{}, false
}

// Active returns the active identity, if any.
func (r *Repository) Active() (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.activeValid {
		r.activeIdx = -1
		for i, it := range r.items {
			if it.IsActive {
				r.activeIdx = i
				break
			}
		}
		r.activeValid = true
	}
	if r.activeIdx < 0 {
		return Identity{}, false
	}
	return r.items[r.activeIdx].clone(), true
}

// Add appends identity. When the repository was empty the new identity becomes
// active and activated is true; the caller must then apply its credential.
func (r *Repository) Add(identity Identity) (activated bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(identity.ServiceUsername, "") {
		return false, fmt.Errorf("%w: %s", ErrDuplicateUsername, identity.ServiceUsername)
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	identity = identity.WithoutSecret()
	identity.IsActive = len(r.items) == 0

	next := append(r.snapshotLocked(), identity)
	if err := r.commitLocked(next); err != nil {
		return false, err
	}
	return identity.IsActive, nil
}

// Update replaces the stored identity with the same id. Activation state and
// timestamps are kept from the stored record. Unknown ids are a no-op.
func (r *Repository) Update(identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(identity.ID)
	if idx < 0 {
		return nil
	}
	if r.usernameTaken(identity.ServiceUsername, identity.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, identity.ServiceUsername)
	}

	stored := r.items[idx]
	identity = identity.WithoutSecret()
	identity.IsActive = stored.IsActive
	identity.CreatedAt = stored.CreatedAt
	identity.LastUsedAt = stored.LastUsedAt

	next := r.snapshotLocked()
	next[idx] = identity
	return r.commitLocked(next)
}

// Remove deletes the identity with id and reports whether it was active. When it
// was, no identity is active afterwards.
func (r *Repository) Remove(id string) (wasActive bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	wasActive = r.items[idx].IsActive

	next := make([]Identity, 0, len(r.items)-1)
	next = append(next, r.items[:idx]...)
	next = append(next, r.items[idx+1:]...)
	if err := r.commitLocked(next); err != nil {
		return false, err
	}
	return wasActive, nil
}

// MarkActive makes exactly the identity with id active, or none when id is
// empty. When usedAt is set it becomes the identity's LastUsedAt. If persisting
// fails the in-memory state is left unchanged.
func (r *Repository) MarkActive(id string, usedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" && r.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	changed := false
	next := r.snapshotLocked()
	for i := range next {
		want := next[i].ID == id
		if next[i].IsActive != want {
			next[i].IsActive = want
			changed = true
		}
		if want && usedAt != nil {
			t := usedAt.UTC()
			next[i].LastUsedAt = &t
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.commitLocked(next)
}

func (r *Repository) indexOf(id string) int {
	for i, it := range r.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) usernameTaken(username, exceptID string) bool {
	for _, it := range r.items {
		if it.ID != exceptID && SameUsername(it.ServiceUsername, username) {
			return true
		}
	}
	return false
}

func (r *Repository) snapshotLocked() []Identity {
	out := make([]Identity, len(r.items))
	for i, it := range r.items {
		out[i] = it.clone()
	}
	return out
}

// commitLocked persists next and only then swaps it in.
func (r *Repository) commitLocked(next []Identity) error {
	data, err := Encode(next)
	if err != nil {
		return fmt.Errorf("failed to encode identities: %w", err)
	}
	if err := r.store.Save(data); err != nil {
		return fmt.Errorf("failed to persist identities: %w", err)
	}
	r.items = next
	r.activeValid = false
	return nil
}
