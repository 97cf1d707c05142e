package secrets

import (
	"context"
	"strings"

	"github.com/gitswitch/cli/internal/logger"
)

// Keychain is the production Store: the host credential goes through git's
// credential helper, identity tokens go to the OS keyring under IdentityService.
type Keychain struct {
	helper  *CredentialHelper
	keyring KeyringAPI
	auth    Authenticator
	log     logger.Logger
}

// NewKeychain wires a Keychain. auth may be nil, in which case authenticated
// retrieval is refused.
func NewKeychain(helper *CredentialHelper, kr KeyringAPI, auth Authenticator, log logger.Logger) *Keychain {
	return &Keychain{helper: helper, keyring: kr, auth: auth, log: log}
}

func (k *Keychain) ReadCurrentCredential(ctx context.Context) (Credential, bool, error) {
	return k.helper.Fill(ctx, "")
}

// WriteCurrentCredential upserts by host: an entry that differs from the new
// pair (other user, or same user with a stale token) is erased first, so only
// one credential for the host remains.
func (k *Keychain) WriteCurrentCredential(ctx context.Context, username, token string) error {
	if err := k.helper.Encodable(username, token); err != nil {
		return err
	}

	// An unreadable existing entry could survive the write next to the new one.
	existing, ok, err := k.helper.Fill(ctx, "")
	if err != nil {
		return err
	}
	if ok && (!strings.EqualFold(existing.Username, username) || existing.Token != token) {
		if err := k.helper.Reject(ctx, existing.Username); err != nil {
			return err
		}
	}
	if err := k.helper.Approve(ctx, username, token); err != nil {
		return err
	}
	k.log.Debug("host credential written", logger.String("username", username))
	return nil
}

func (k *Keychain) DeleteCurrentCredential(ctx context.Context) error {
	existing, ok, err := k.helper.Fill(ctx, "")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return k.helper.Reject(ctx, existing.Username)
}

func (k *Keychain) HasCredential(ctx context.Context, username string) (bool, error) {
	cred, ok, err := k.helper.Fill(ctx, "")
	if err != nil || !ok {
		return false, err
	}
	return username == "" || strings.EqualFold(cred.Username, username), nil
}

func (k *Keychain) StoreIdentitySecret(_ context.Context, id, token string) error {
	if id == "" || token == "" {
		return &StoreError{Kind: KindEncodingFailed, Message: "identity id and token are required"}
	}
	if err := k.keyring.Set(IdentityService, id, token); err != nil {
		return unexpected(-1, "keyring write failed", err)
	}
	return nil
}

func (k *Keychain) RetrieveIdentitySecret(_ context.Context, id string) (string, error) {
	token, err := k.keyring.Get(IdentityService, id)
	if isKeyringNotFound(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unexpected(-1, "keyring read failed", err)
	}
	return token, nil
}

func (k *Keychain) DeleteIdentitySecret(_ context.Context, id string) error {
	err := k.keyring.Delete(IdentityService, id)
	if err != nil && !isKeyringNotFound(err) {
		return unexpected(-1, "keyring delete failed", err)
	}
	return nil
}

func (k *Keychain) RetrieveIdentitySecretWithAuthentication(ctx context.Context, id, reason string) (string, error) {
	if k.auth == nil {
		return "", authFailed("no authentication method configured", nil)
	}
	if err := k.auth.Authenticate(ctx, reason); err != nil {
		return "", authFailed(err.Error(), err)
	}
	return k.RetrieveIdentitySecret(ctx, id)
}
