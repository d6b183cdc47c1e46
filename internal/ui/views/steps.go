package views

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/charmbracelet/bubbles/spinner"
)

// StepGlyph returns the status marker for a step.
func StepGlyph(s step.Status, sp spinner.Model) string {
	switch s {
	case step.StatusInProgress:
		return StepInProgressStyle.Render(sp.View())
	case step.StatusCompleted:
		return StepCompletedStyle.Render("✔")
	case step.StatusFailed:
		return StepFailedStyle.Render("✘")
	default:
		return StepPendingStyle.Render("•")
	}
}

// FormatSteps renders one line per step, with the failure reason under a
// failed step.
func FormatSteps(steps []step.Step, sp spinner.Model) string {
	if len(steps) == 0 {
		return MutedStyle.Render("No steps yet.")
	}
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		title := s.Title
		if s.Status == step.StatusPending {
			title = StepPendingStyle.Render(title)
		}
		fmt.Fprintf(&b, "%s %s", StepGlyph(s.Status, sp), title)
		if s.Status == step.StatusFailed && s.Reason != "" {
			b.WriteString("\n    ")
			b.WriteString(StepFailedStyle.Render(firstLine(s.Reason)))
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
