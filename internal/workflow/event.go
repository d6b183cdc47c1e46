package workflow

import (
	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/step"
)

// Event is the interface for all workflow events.
// UI handles events via type switch.
type Event interface {
	isEvent()
}

// ThinkingEvent is emitted when the build waits on the model.
type ThinkingEvent struct {
	Stage string // "classify" or "generate"
}

func (ThinkingEvent) isEvent() {}

// ArchetypeEvent is emitted once the prompt is classified.
type ArchetypeEvent struct {
	Archetype archetype.Archetype
}

func (ArchetypeEvent) isEvent() {}

// StepEvent is emitted whenever a step is registered or changes status.
type StepEvent struct {
	Step step.Step
}

func (StepEvent) isEvent() {}

// FileEvent is emitted for every change to a file in the tree.
type FileEvent struct {
	Path string
	Kind filetree.EventKind
}

func (FileEvent) isEvent() {}

// SessionEvent is emitted on every sandbox state change.
type SessionEvent struct {
	SessionID  string
	State      sandbox.State
	PreviewURL string
	Diagnostic string
}

func (SessionEvent) isEvent() {}

// TextEvent carries the model's prose once generation ends.
type TextEvent struct {
	Text string
}

func (TextEvent) isEvent() {}

// DoneEvent is the last event of a build.
type DoneEvent struct {
	Summary applier.Summary
	Err     error
}

func (DoneEvent) isEvent() {}
