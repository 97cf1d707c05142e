package switcher

import (
	"errors"
	"fmt"

	"github.com/gitswitch/cli/internal/identity"
)

var (
	// ErrTokenNotFound means the target identity has no token to apply.
	ErrTokenNotFound = errors.New("no token stored for identity")
	// ErrSnapshotIncomplete marks a snapshot that could not read every field.
	// It is diagnostic only: the switch still runs with reduced rollback coverage.
	ErrSnapshotIncomplete = errors.New("current state could only be partially captured")
	// ErrInconsistentState matches a SwitchError whose rollback also failed.
	ErrInconsistentState = errors.New("switch failed and automatic recovery failed, verify your credentials manually")
	// ErrAmbiguousReference is returned when an id prefix matches several identities.
	ErrAmbiguousReference = errors.New("reference matches more than one identity")
)

// Step names the apply step a switch failed in.
type Step string

const (
	StepCredential Step = "credential"
	StepConfig     Step = "config"
	StepRepository Step = "repository"
)

// SwitchError is a failed switch. Err is what went wrong; Rollback is set only
// when restoring the previous state failed too.
type SwitchError struct {
	Step     Step
	Err      error
	Rollback error
}

func (e *SwitchError) Error() string {
	msg := fmt.Sprintf("switch failed applying %s: %v", e.Step, e.Err)
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback failed: %v)", e.Rollback)
	}
	return msg
}

func (e *SwitchError) Unwrap() error { return e.Err }

func (e *SwitchError) Is(target error) bool {
	return target == ErrInconsistentState && e.Rollback != nil
}

// RemoveError is returned when the active identity was removed but the
// identity chosen to replace it could not be applied. The removal stands and
// no identity is active.
type RemoveError struct {
	Removed identity.Identity
	Err     error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("identity %s removed, but activating the next identity failed: %v", e.Removed.ServiceUsername, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }
