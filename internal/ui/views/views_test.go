package views

import (
	"errors"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/Cyclone1070/buildforme/internal/ui/models"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/stretchr/testify/assert"
)

type MockMarkdownRenderer struct{}

func (MockMarkdownRenderer) Render(content string, width int) (string, error) {
	return "md:" + content, nil
}

func TestFormatSteps(t *testing.T) {
	steps := []step.Step{
		{ID: 1, Title: "Create package.json", Status: step.StatusCompleted},
		{ID: 2, Title: "Run npm install", Status: step.StatusFailed, Reason: "exit code 1\nmore"},
		{ID: 3, Title: "Run npm run dev", Status: step.StatusPending},
	}
	out := FormatSteps(steps, spinner.New())

	assert.Contains(t, out, "✔ Create package.json")
	assert.Contains(t, out, "✘ Run npm install")
	assert.Contains(t, out, "exit code 1")
	assert.NotContains(t, out, "more")
	assert.Contains(t, out, "Run npm run dev")
}

func TestFormatSteps_Empty(t *testing.T) {
	assert.Contains(t, FormatSteps(nil, spinner.New()), "No steps yet")
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		name  string
		state models.State
		want  []string
	}{
		{"classifying", models.State{Stage: "classify"}, []string{"Choosing a template", "sandbox: idle"}},
		{"generating", models.State{Stage: "generate", SessionState: sandbox.StateInstalling}, []string{"Generating", "sandbox: installing"}},
		{"ready", models.State{Done: true, Summary: applier.Summary{Completed: 4}, SessionState: sandbox.StateReady, PreviewURL: "http://localhost:5173/"},
			[]string{"Done: 4 completed, 0 failed", "preview: http://localhost:5173/"}},
		{"failed", models.State{Done: true, Err: errors.New("x"), SessionState: sandbox.StateErrored}, []string{"Build failed", "sandbox: errored"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.Spinner = spinner.New()
			out := RenderStatus(tt.state)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestFormatBody(t *testing.T) {
	s := models.State{
		Width:      80,
		Steps:      []step.Step{{ID: 1, Title: "Create index.js", Status: step.StatusCompleted}},
		Prose:      "All set.",
		Diagnostic: "npm ERR! missing script: dev",
		Err:        errors.New("pipeline halted"),
		Spinner:    spinner.New(),
	}
	out := FormatBody(s, MockMarkdownRenderer{})

	assert.Contains(t, out, "Create index.js")
	assert.Contains(t, out, "md:All set.")
	assert.Contains(t, out, "missing script: dev")
	assert.Contains(t, out, "pipeline halted")
}

func TestRenderRoot(t *testing.T) {
	vp := viewport.New(60, 5)
	vp.SetContent("step list")
	s := models.State{Prompt: "todo app", Archetype: "react", Viewport: vp, Spinner: spinner.New()}

	out := RenderRoot(s)
	assert.Contains(t, out, "todo app")
	assert.Contains(t, out, "[react]")
	assert.Contains(t, out, "step list")
	assert.Contains(t, out, "q: quit")
}
