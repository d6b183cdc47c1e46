package views

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/ui/models"
)

// RenderStatus renders the status bar: what the build is doing, then the
// sandbox state.
func RenderStatus(s models.State) string {
	var left string
	switch {
	case s.Done && s.Err != nil:
		left = StatusErrorStyle.Render("✘ Build failed")
	case s.Done:
		left = StatusReadyStyle.Render(fmt.Sprintf("✔ Done: %d completed, %d failed", s.Summary.Completed, s.Summary.Failed))
	case s.Stage == "classify":
		left = StatusThinkingStyle.Render(fmt.Sprintf("%s Choosing a template%s", s.Spinner.View(), strings.Repeat(".", s.DotCount)))
	case s.Stage == "generate":
		left = StatusThinkingStyle.Render(fmt.Sprintf("%s Generating%s", s.Spinner.View(), strings.Repeat(".", s.DotCount)))
	default:
		left = StatusDefaultStyle.Render("Starting")
	}

	return left + "  " + RenderSession(s)
}

// RenderSession renders the sandbox state and preview URL.
func RenderSession(s models.State) string {
	switch s.SessionState {
	case "":
		return MutedStyle.Render("sandbox: idle")
	case sandbox.StateReady:
		return StatusReadyStyle.Render("preview: " + s.PreviewURL)
	case sandbox.StateErrored:
		return StatusErrorStyle.Render("sandbox: errored")
	case sandbox.StateInstalling, sandbox.StateStarting:
		return StatusThinkingStyle.Render(fmt.Sprintf("%s sandbox: %s", s.Spinner.View(), s.SessionState))
	default:
		return MutedStyle.Render("sandbox: " + string(s.SessionState))
	}
}
