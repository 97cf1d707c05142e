// Package secrets is the protected secret store: the single "current" HTTPS
// credential git uses for the service host, and one token per identity.
package secrets

import "context"

const (
	// IdentityService namespaces per-identity tokens in the OS keyring.
	IdentityService = "gitswitch.identity"
	// AppService holds application secrets such as the passphrase hash.
	AppService = "gitswitch.app"
)

// Credential is a username/token pair.
type Credential struct {
	Username string
	Token    string
}

// Store is the secret store port used by the switcher and the account service.
type Store interface {
	// ReadCurrentCredential returns the credential git will use for the host;
	// ok is false when there is none.
	ReadCurrentCredential(ctx context.Context) (cred Credential, ok bool, err error)
	// WriteCurrentCredential replaces the host credential, whatever user it belonged to.
	WriteCurrentCredential(ctx context.Context, username, token string) error
	// DeleteCurrentCredential removes the host credential. Absent is not an error.
	DeleteCurrentCredential(ctx context.Context) error
	// HasCredential reports whether a host credential exists, optionally for a specific user.
	HasCredential(ctx context.Context, username string) (bool, error)

	StoreIdentitySecret(ctx context.Context, id, token string) error
	// RetrieveIdentitySecret returns ErrNotFound when no token is stored for id.
	RetrieveIdentitySecret(ctx context.Context, id string) (string, error)
	// DeleteIdentitySecret is a no-op for unknown ids.
	DeleteIdentitySecret(ctx context.Context, id string) error
	// RetrieveIdentitySecretWithAuthentication gates RetrieveIdentitySecret behind
	// a user presence check; denial or cancellation yields ErrAuthenticationFailed.
	RetrieveIdentitySecretWithAuthentication(ctx context.Context, id, reason string) (string, error)
}
