package switcher

// State is a position in one switch attempt.
type State int

const (
	StateIdle State = iota
	StateSnapshotCaptured
	StateCredentialApplied
	StateConfigApplied
	StateRepositoryCommitted
	StateCLISynced
	StateDone
	StateRollingBack
	StateRolledBack
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateSnapshotCaptured:    "snapshot-captured",
	StateCredentialApplied:   "credential-applied",
	StateConfigApplied:       "config-applied",
	StateRepositoryCommitted: "repository-committed",
	StateCLISynced:           "cli-synced",
	StateDone:                "done",
	StateRollingBack:         "rolling-back",
	StateRolledBack:          "rolled-back",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
