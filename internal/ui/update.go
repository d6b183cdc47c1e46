package ui

import (
	"time"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/ui/models"
	"github.com/Cyclone1070/buildforme/internal/ui/services"
	"github.com/Cyclone1070/buildforme/internal/ui/views"
	"github.com/Cyclone1070/buildforme/internal/workflow"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// chromeHeight is the number of lines outside the viewport: header, blank,
// status and help.
const chromeHeight = 4

// BubbleTeaModel implements tea.Model
type BubbleTeaModel struct {
	state models.State

	// Dependencies
	renderer services.MarkdownRenderer

	events     <-chan workflow.Event
	cancel     func()
	exitOnDone bool
}

// SpinnerFactory creates a new spinner
type SpinnerFactory func() spinner.Model

// newBubbleTeaModel creates a new Bubble Tea model
func newBubbleTeaModel(
	prompt string,
	events <-chan workflow.Event,
	cancel func(),
	exitOnDone bool,
	renderer services.MarkdownRenderer,
	spinnerFactory SpinnerFactory,
) BubbleTeaModel {
	if cancel == nil {
		cancel = func() {}
	}
	return BubbleTeaModel{
		state: models.State{
			Prompt:   prompt,
			Viewport: viewport.New(80, 20),
			Spinner:  spinnerFactory(),
		},
		renderer:   renderer,
		events:     events,
		cancel:     cancel,
		exitOnDone: exitOnDone,
	}
}

// Internal messages
type tickMsg time.Time
type eventMsg struct{ ev workflow.Event }
type eventsClosedMsg struct{}

// Init initializes the model
func (m BubbleTeaModel) Init() tea.Cmd {
	return tea.Batch(
		m.state.Spinner.Tick,
		tick(),
		listenForEvents(m.events),
	)
}

// Update handles messages
func (m BubbleTeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.state.Width = msg.Width
		m.state.Height = msg.Height
		m.state.Viewport.Width = msg.Width
		m.state.Viewport.Height = max(msg.Height-chromeHeight, 1)
		m.updateViewport()
		return m, nil

	case tickMsg:
		m.state.DotCount = (m.state.DotCount + 1) % 4
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.state.Spinner, cmd = m.state.Spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.ev)
		m.updateViewport()
		if _, done := msg.ev.(workflow.DoneEvent); done && m.exitOnDone {
			return m, tea.Quit
		}
		return m, listenForEvents(m.events)

	case eventsClosedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.state.Viewport, cmd = m.state.Viewport.Update(msg)
	return m, cmd
}

// apply folds one build event into the state.
func (m *BubbleTeaModel) apply(ev workflow.Event) {
	switch ev := ev.(type) {
	case workflow.ThinkingEvent:
		m.state.Stage = ev.Stage
	case workflow.ArchetypeEvent:
		m.state.Archetype = ev.Archetype.String()
	case workflow.StepEvent:
		m.state.UpsertStep(ev.Step)
	case workflow.FileEvent:
		switch ev.Kind {
		case filetree.Created:
			m.state.Files++
		case filetree.Deleted:
			m.state.Files--
		}
	case workflow.SessionEvent:
		m.state.SessionState = ev.State
		m.state.PreviewURL = ev.PreviewURL
		m.state.Diagnostic = ev.Diagnostic
	case workflow.TextEvent:
		m.state.Prose = ev.Text
	case workflow.DoneEvent:
		m.state.Done = true
		m.state.Stage = ""
		m.state.Summary = ev.Summary
		m.state.Err = ev.Err
	}
}

func (m BubbleTeaModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.cancel()
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.state.Viewport, cmd = m.state.Viewport.Update(msg)
	return m, cmd
}

// View renders the UI
func (m BubbleTeaModel) View() string {
	return views.RenderRoot(m.state)
}

// updateViewport updates the viewport content, following the tail while
// the build runs.
func (m *BubbleTeaModel) updateViewport() {
	m.state.Viewport.SetContent(views.FormatBody(m.state, m.renderer))
	if !m.state.Done {
		m.state.Viewport.GotoBottom()
	}
}

func listenForEvents(ch <-chan workflow.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
