package secrets

import "fmt"

// ErrorKind classifies a StoreError.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindDuplicate
	KindUnexpectedStatus
	KindEncodingFailed
	KindAuthenticationFailed
)

// StoreError is returned by Store implementations.
type StoreError struct {
	Kind ErrorKind
	// Status is the OS or helper exit status for KindUnexpectedStatus.
	Status  int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var base string
	switch e.Kind {
	case KindNotFound:
		base = "secret not found"
	case KindDuplicate:
		base = "secret already exists"
	case KindEncodingFailed:
		base = "secret could not be encoded"
	case KindAuthenticationFailed:
		base = "authentication failed"
	default:
		base = fmt.Sprintf("secret store returned unexpected status %d", e.Status)
	}
	if e.Message != "" {
		return base + ": " + e.Message
	}
	return base
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches another StoreError of the same kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound             = &StoreError{Kind: KindNotFound}
	ErrDuplicate            = &StoreError{Kind: KindDuplicate}
	ErrUnexpectedStatus     = &StoreError{Kind: KindUnexpectedStatus}
	ErrEncodingFailed       = &StoreError{Kind: KindEncodingFailed}
	ErrAuthenticationFailed = &StoreError{Kind: KindAuthenticationFailed}
)

func unexpected(status int, msg string, err error) error {
	return &StoreError{Kind: KindUnexpectedStatus, Status: status, Message: msg, Err: err}
}

func authFailed(msg string, err error) error {
	return &StoreError{Kind: KindAuthenticationFailed, Message: msg, Err: err}
}
