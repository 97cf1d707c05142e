package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringAPI is the minimal OS keyring surface; service is the namespace and
// account the entry name.
type KeyringAPI interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

// ErrKeyringNotFound is what KeyringAPI implementations return for a missing entry.
var ErrKeyringNotFound = keyring.ErrNotFound

// OSKeyring is the go-keyring backed KeyringAPI: Keychain on macOS, Secret
// Service on Linux, Credential Manager on Windows.
type OSKeyring struct{}

func (OSKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (OSKeyring) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

func (OSKeyring) Delete(service, account string) error {
	return keyring.Delete(service, account)
}

func isKeyringNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}
