package identity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxDisplayName    = 100
	maxUsername       = 39
	maxCommitterName  = 200
	maxCommitterEmail = 254
)

var (
	// GitHub logins: alphanumerics separated by single hyphens.
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*$`)
	emailRegex    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

	tokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,251}$`),
		regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{22,244}$`),
		regexp.MustCompile(`^[a-f0-9]{40}$`),
	}
)

// ValidationError reports a field that failed a shape constraint.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Constraint: fmt.Sprintf(format, args...)}
}

// ValidateDisplayName checks the user-facing label.
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if strings.TrimSpace(name) == "" || n > maxDisplayName {
		return invalid("displayName", "must be 1-%d characters", maxDisplayName)
	}
	if hasControl(name) {
		return invalid("displayName", "must not contain control characters")
	}
	return nil
}

// ValidateUsername checks a GitHub login.
func ValidateUsername(username string) error {
	if username == "" || len(username) > maxUsername {
		return invalid("serviceUsername", "must be 1-%d characters", maxUsername)
	}
	if !usernameRegex.MatchString(username) {
		return invalid("serviceUsername", "may only contain alphanumerics and single hyphens, and cannot begin or end with a hyphen")
	}
	return nil
}

// ValidateCommitterName checks the value destined for user.name.
func ValidateCommitterName(name string) error {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > maxCommitterName {
		return invalid("committerName", "must be 1-%d characters", maxCommitterName)
	}
	if hasControl(name) || strings.ContainsAny(name, "[]") {
		return invalid("committerName", "must not contain control characters or brackets")
	}
	return nil
}

// ValidateCommitterEmail checks the value destined for user.email.
func ValidateCommitterEmail(email string) error {
	if email == "" || len(email) > maxCommitterEmail {
		return invalid("committerEmail", "must be 1-%d characters", maxCommitterEmail)
	}
	if hasControl(email) || strings.ContainsAny(email, "[]") {
		return invalid("committerEmail", "must not contain control characters or brackets")
	}
	if !emailRegex.MatchString(email) {
		return invalid("committerEmail", "is not a valid email address")
	}
	return nil
}

// ValidateToken checks the format of newly entered secret material.
func ValidateToken(token string) error {
	if token == "" {
		return invalid("secretToken", "must not be empty")
	}
	for _, p := range tokenPatterns {
		if p.MatchString(token) {
			return nil
		}
	}
	return invalid("secretToken", "is not a recognised GitHub token format")
}

// Validate checks every field of a new identity, including its token.
func (i Identity) Validate() error {
	if err := i.validateFields(); err != nil {
		return err
	}
	return ValidateToken(i.SecretToken)
}

// ValidateUpdate checks an edited identity. Token format is only enforced when
// the edit supplies a token different from the stored one, so legacy tokens
// that predate the format rules keep working.
func ValidateUpdate(updated Identity, storedToken string) error {
	if err := updated.validateFields(); err != nil {
		return err
	}
	if updated.SecretToken == "" || updated.SecretToken == storedToken {
		return nil
	}
	return ValidateToken(updated.SecretToken)
}

func (i Identity) validateFields() error {
	if err := ValidateDisplayName(i.DisplayName); err != nil {
		return err
	}
	if err := ValidateUsername(i.ServiceUsername); err != nil {
		return err
	}
	if err := ValidateCommitterName(i.CommitterName); err != nil {
		return err
	}
	return ValidateCommitterEmail(i.CommitterEmail)
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
