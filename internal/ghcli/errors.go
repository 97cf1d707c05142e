package ghcli

import "fmt"

// ErrorKind classifies a CLIError.
type ErrorKind int

const (
	KindNotInstalled ErrorKind = iota + 1
	KindNotAuthenticated
	KindAccountNotRecognized
	KindCommandFailed
)

// CLIError is returned by Client.SwitchAccount.
type CLIError struct {
	Kind     ErrorKind
	Username string
	Message  string
	Err      error
}

func (e *CLIError) Error() string {
	switch e.Kind {
	case KindNotInstalled:
		return "gh is not installed"
	case KindNotAuthenticated:
		return "gh is not authenticated"
	case KindAccountNotRecognized:
		return fmt.Sprintf("gh does not know account %q", e.Username)
	default:
		if e.Message != "" {
			return "gh command failed: " + e.Message
		}
		return "gh command failed"
	}
}

func (e *CLIError) Unwrap() error { return e.Err }

func (e *CLIError) Is(target error) bool {
	t, ok := target.(*CLIError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotInstalled         = &CLIError{Kind: KindNotInstalled}
	ErrNotAuthenticated     = &CLIError{Kind: KindNotAuthenticated}
	ErrAccountNotRecognized = &CLIError{Kind: KindAccountNotRecognized}
	ErrCommandFailed        = &CLIError{Kind: KindCommandFailed}
)
