package secrets

import (
	"context"
	"strings"
	"sync"
)

// AuthOutcome scripts what MemoryStore does when authentication is requested.
type AuthOutcome int

const (
	AuthAllow AuthOutcome = iota
	AuthDeny
	AuthCancel
)

// MemoryStore is an in-process Store used by tests and dry runs. Failures can
// be injected per operation.
type MemoryStore struct {
	mu         sync.Mutex
	current    *Credential
	identities map[string]string

	Auth       AuthOutcome
	AuthCalls  int
	FailRead   error
	FailWrite  error
	FailDelete error
	// WriteHook runs before every current-credential write; a non-nil error
	// aborts the write.
	WriteHook func(Credential) error

	writes  []Credential
	deletes int
}

// NewMemoryStore returns an empty MemoryStore that allows authentication.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: map[string]string{}}
}

// SetCurrent seeds the host credential without recording a write.
func (m *MemoryStore) SetCurrent(username, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &Credential{Username: username, Token: token}
}

// Current returns the host credential as stored.
func (m *MemoryStore) Current() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Credential{}, false
	}
	return *m.current, true
}

// Writes returns every successful current-credential write in order.
func (m *MemoryStore) Writes() []Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Credential(nil), m.writes...)
}

// Deletes counts successful current-credential deletions.
func (m *MemoryStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// Secret returns the stored token for id.
func (m *MemoryStore) Secret(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.identities[id]
	return t, ok
}

func (m *MemoryStore) ReadCurrentCredential(_ context.Context) (Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return Credential{}, false, m.FailRead
	}
	if m.current == nil {
		return Credential{}, false, nil
	}
	return *m.current, true, nil
}

func (m *MemoryStore) WriteCurrentCredential(_ context.Context, username, token string) error {
	cred := Credential{Username: username, Token: token}
	m.mu.Lock()
	hook := m.WriteHook
	fail := m.FailWrite
	m.mu.Unlock()

	if fail != nil {
		return fail
	}
	if username == "" || token == "" {
		return &StoreError{Kind: KindEncodingFailed, Message: "username and token are required"}
	}
	if hook != nil {
		if err := hook(cred); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &cred
	m.writes = append(m.writes, cred)
	return nil
}

func (m *MemoryStore) DeleteCurrentCredential(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	if m.current != nil {
		m.current = nil
		m.deletes++
	}
	return nil
}

func (m *MemoryStore) HasCredential(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return false, m.FailRead
	}
	if m.current == nil {
		return false, nil
	}
	return username == "" || strings.EqualFold(m.current.Username, username), nil
}

func (m *MemoryStore) StoreIdentitySecret(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	if id == "" || token == "" {
		return &StoreError{Kind: KindEncodingFailed, Message: "identity id and token are required"}
	}
	m.identities[id] = token
	return nil
}

func (m *MemoryStore) RetrieveIdentitySecret(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return "", m.FailRead
	}
	t, ok := m.identities[id]
	if !ok {
		return "", ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) DeleteIdentitySecret(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.identities, id)
	return nil
}

func (m *MemoryStore) RetrieveIdentitySecretWithAuthentication(ctx context.Context, id, reason string) (string, error) {
	m.mu.Lock()
	m.AuthCalls++
	outcome := m.Auth
	m.mu.Unlock()

	switch outcome {
	case AuthDeny:
		return "", authFailed("denied", ErrAuthDenied)
	case AuthCancel:
		return "", authFailed("cancelled", ErrAuthCancelled)
	}
	if err := ctx.Err(); err != nil {
		return "", authFailed("cancelled", err)
	}
	return m.RetrieveIdentitySecret(ctx, id)
}
