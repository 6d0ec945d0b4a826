package workflow

// State represents a report state in the filing lifecycle
type State string

const (
	StateDraft                 State = "draft"
	StateDeterminationComplete State = "determination_complete"
	StateCollecting            State = "collecting"
	StateReadyToFile           State = "ready_to_file"
	StateFiled                 State = "filed"
	StateExempt                State = "exempt"
)

var validStates = map[State]bool{
	StateDraft:                 true,
	StateDeterminationComplete: true,
	StateCollecting:            true,
	StateReadyToFile:           true,
	StateFiled:                 true,
	StateExempt:                true,
}

// filed is a completed filing; exempt is a compliance artifact and may not be
// undone even by an administrator.
var terminalStates = map[State]bool{
	StateFiled:  true,
	StateExempt: true,
}

// IsTerminal returns true if the state permits no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid report state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
