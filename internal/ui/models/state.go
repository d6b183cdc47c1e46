package models

import (
	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
)

// State holds everything the views render.
type State struct {
	Width  int
	Height int

	Prompt    string
	Archetype string
	// Stage is what the build waits on: "classify", "generate" or "".
	Stage string

	// Steps in registration order; updates replace the entry with the same ID.
	Steps []step.Step

	SessionState sandbox.State
	PreviewURL   string
	Diagnostic   string

	Files int
	Prose string

	Done    bool
	Summary applier.Summary
	Err     error

	Spinner  spinner.Model
	Viewport viewport.Model
	DotCount int
}

// UpsertStep records s, replacing an older copy of the same step.
func (s *State) UpsertStep(st step.Step) {
	for i := range s.Steps {
		if s.Steps[i].ID == st.ID {
			s.Steps[i] = st
			return
		}
	}
	s.Steps = append(s.Steps, st)
}
