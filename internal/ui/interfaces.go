package ui

import (
	"context"

	"github.com/Cyclone1070/buildforme/internal/workflow"
)

// Presenter shows a build's progress to the user.
//
// Present consumes events until the channel closes or ctx is done. cancel
// stops the build; presenters call it when the user quits early.
type Presenter interface {
	Present(ctx context.Context, prompt string, events <-chan workflow.Event, cancel func()) error
}
