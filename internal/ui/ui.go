// Package ui renders build progress, either as a full-screen terminal UI or
// as plain log lines.
package ui

import (
	"context"

	"github.com/Cyclone1070/buildforme/internal/ui/services"
	"github.com/Cyclone1070/buildforme/internal/workflow"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// UI implements Presenter using Bubble Tea
type UI struct {
	renderer       services.MarkdownRenderer
	spinnerFactory SpinnerFactory
	exitOnDone     bool
	programOpts    []tea.ProgramOption
}

// Option configures a UI.
type Option func(*UI)

// WithExitOnDone makes the UI quit as soon as the build finishes instead of
// waiting for the user.
func WithExitOnDone() Option {
	return func(u *UI) { u.exitOnDone = true }
}

// WithProgramOptions passes options to the Bubble Tea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(u *UI) { u.programOpts = append(u.programOpts, opts...) }
}

// DefaultSpinner is the spinner used when no factory is given.
func DefaultSpinner() spinner.Model {
	return spinner.New(spinner.WithSpinner(spinner.Dot))
}

// NewUI creates a new Bubble Tea UI
func NewUI(renderer services.MarkdownRenderer, spinnerFactory SpinnerFactory, opts ...Option) *UI {
	if spinnerFactory == nil {
		spinnerFactory = DefaultSpinner
	}
	u := &UI{
		renderer:       renderer,
		spinnerFactory: spinnerFactory,
		programOpts:    []tea.ProgramOption{tea.WithAltScreen()},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Present runs the program until the user quits, or until the build is
// done when WithExitOnDone is set.
func (u *UI) Present(ctx context.Context, prompt string, events <-chan workflow.Event, cancel func()) error {
	model := newBubbleTeaModel(prompt, events, cancel, u.exitOnDone, u.renderer, u.spinnerFactory)
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, u.programOpts...)
	_, err := tea.NewProgram(model, opts...).Run()
	return err
}
