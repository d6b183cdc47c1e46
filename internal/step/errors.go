package step

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrUnknownStep       = errors.New("unknown step")
	ErrInvalidTransition = errors.New("invalid step transition")
)

// TransitionError is returned when a status change is not allowed from the
// step's current status.
type TransitionError struct {
	ID   int
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("step %d: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
