package views

import (
	"fmt"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/ui/models"
	"github.com/Cyclone1070/buildforme/internal/ui/services"
	"github.com/charmbracelet/lipgloss"
)

// RenderHeader renders the prompt and the chosen template.
func RenderHeader(s models.State) string {
	line := HeaderStyle.Render("buildforme") + " " + s.Prompt
	if s.Archetype != "" {
		line += MutedStyle.Render(fmt.Sprintf("  [%s]", s.Archetype))
	}
	if s.Files > 0 {
		line += MutedStyle.Render(fmt.Sprintf("  %d files", s.Files))
	}
	return line
}

// FormatBody renders the steps, then the model's prose and any diagnostic
// once they exist. It is the viewport content.
func FormatBody(s models.State, renderer services.MarkdownRenderer) string {
	sections := []string{FormatSteps(s.Steps, s.Spinner)}

	if s.Prose != "" {
		width := max(s.Width-4, 20)
		prose, err := services.RenderMarkdown(s.Prose, width, renderer)
		if err != nil {
			prose = s.Prose
		}
		sections = append(sections, prose)
	}
	if s.Diagnostic != "" {
		sections = append(sections, DiagnosticBoxStyle.Render(strings.TrimRight(s.Diagnostic, "\n")))
	}
	if s.Err != nil {
		sections = append(sections, StatusErrorStyle.Render("Error: ")+s.Err.Error())
	}
	return strings.Join(sections, "\n\n")
}

// RenderRoot renders the complete UI layout
func RenderRoot(s models.State) string {
	help := MutedStyle.Render("q: quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		RenderHeader(s),
		"",
		s.Viewport.View(),
		RenderStatus(s),
		help,
	)
}
