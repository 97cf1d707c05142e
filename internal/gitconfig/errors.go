package gitconfig

import "fmt"

// ErrorKind classifies a ConfigError.
type ErrorKind int

const (
	KindExecutableNotFound ErrorKind = iota + 1
	KindCommandFailed
	KindInvalidValue
	KindInvalidBinary
)

// ConfigError is returned by every Adapter operation.
type ConfigError struct {
	Kind ErrorKind
	// Field names the rejected key or value for KindInvalidValue.
	Field string
	// Message is sanitized and safe to show to the user.
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case KindExecutableNotFound:
		return "git executable not found"
	case KindInvalidBinary:
		if e.Message != "" {
			return "git executable rejected: " + e.Message
		}
		return "git executable rejected"
	case KindInvalidValue:
		if e.Message != "" {
			return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Message)
		}
		return fmt.Sprintf("invalid value for %s", e.Field)
	default:
		if e.Message != "" {
			return "git command failed: " + e.Message
		}
		return "git command failed"
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches another ConfigError of the same kind, so callers can write
// errors.Is(err, gitconfig.ErrInvalidValue).
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	return ok && t.Kind == e.Kind
}

var (
	ErrExecutableNotFound = &ConfigError{Kind: KindExecutableNotFound}
	ErrCommandFailed      = &ConfigError{Kind: KindCommandFailed}
	ErrInvalidValue       = &ConfigError{Kind: KindInvalidValue}
	ErrInvalidBinary      = &ConfigError{Kind: KindInvalidBinary}
)

func invalidValue(field, msg string) error {
	return &ConfigError{Kind: KindInvalidValue, Field: field, Message: msg}
}
