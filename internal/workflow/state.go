package workflow

// State represents a report's position in the approval lifecycle
type State string

const (
	StateUnread               State = "unread"
	StatePendingFirstApproval State = "pending_first_approval"
	StateApproved             State = "approved"
	StateRejected             State = "rejected"
)

var validStates = map[State]bool{
	StateUnread:               true,
	StatePendingFirstApproval: true,
	StateApproved:             true,
	StateRejected:             true,
}

// Approved is an immutable audit record; the machine permits no further
// transitions out of it.
var terminalStates = map[State]bool{
	StateApproved: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
