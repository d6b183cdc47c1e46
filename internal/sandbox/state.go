package sandbox

import "slices"

// State is the lifecycle position of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInstalling    State = "installing"
	StateStarting      State = "starting"
	StateReady         State = "ready"
	StateErrored       State = "errored"
)

// transitions lists the states reachable from each state. Errored has no
// way out: recovery means a new session.
var transitions = map[State][]State{
	StateUninitialized: {StateInstalling, StateErrored},
	StateInstalling:    {StateStarting, StateErrored},
	StateStarting:      {StateReady, StateErrored},
	StateReady:         {StateErrored},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID         string `json:"id"`
	State      State  `json:"state"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Superseded bool   `json:"superseded,omitempty"`
}
