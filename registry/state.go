package registry

import "time"

// State is a lease lifecycle state.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateActive
	StateRenewing
	StateDegraded
	StateUnregistering
	StateTerminated
)

var stateNames = [...]string{
	StateUnregistered:  "unregistered",
	StateRegistering:   "registering",
	StateActive:        "active",
	StateRenewing:      "renewing",
	StateDegraded:      "degraded",
	StateUnregistering: "unregistering",
	StateTerminated:    "terminated",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Transition describes one state change of a Client.
type Transition struct {
	From    State
	To      State
	LeaseID string
	At      time.Time
}
