// Package identity holds the Identity record, its validation rules, the JSON
// codec for the non-secret fields and the Repository that owns the ordered list.
package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is one configured GitHub account: service username, token and the
// committer identity that goes with it.
type Identity struct {
	ID              string
	DisplayName     string
	ServiceUsername string
	// SecretToken is only carried in memory on its way to or from the secret
	// store. The codec never writes it.
	SecretToken    string
	CommitterName  string
	CommitterEmail string
	IsActive       bool
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// New returns an inactive identity with a fresh id and creation time.
func New(displayName, username, token, committerName, committerEmail string) Identity {
	return Identity{
		ID:              uuid.NewString(),
		DisplayName:     strings.TrimSpace(displayName),
		ServiceUsername: strings.TrimSpace(username),
		SecretToken:     token,
		CommitterName:   strings.TrimSpace(committerName),
		CommitterEmail:  strings.TrimSpace(committerEmail),
		CreatedAt:       time.Now().UTC(),
	}
}

// SameUsername compares service usernames the way GitHub does, ignoring case.
func SameUsername(a, b string) bool {
	return strings.EqualFold(a, b)
}

// WithoutSecret returns a copy with the token cleared.
func (i Identity) WithoutSecret() Identity {
	i.SecretToken = ""
	return i
}

func (i Identity) clone() Identity {
	if i.LastUsedAt != nil {
		t := *i.LastUsedAt
		i.LastUsedAt = &t
	}
	return i
}
