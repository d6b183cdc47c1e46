package services

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders markdown for a terminal of the given width.
type MarkdownRenderer interface {
	Render(content string, width int) (string, error)
}

// GlamourRenderer renders with glamour, building one renderer per width.
type GlamourRenderer struct {
	style     string
	renderers map[int]*glamour.TermRenderer
}

// NewGlamourRenderer creates a renderer. An empty style picks one from the
// terminal background.
func NewGlamourRenderer(style string) *GlamourRenderer {
	return &GlamourRenderer{style: style, renderers: make(map[int]*glamour.TermRenderer)}
}

func (g *GlamourRenderer) Render(content string, width int) (string, error) {
	r, ok := g.renderers[width]
	if !ok {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
		if g.style == "" {
			opts = append(opts, glamour.WithAutoStyle())
		} else {
			opts = append(opts, glamour.WithStylePath(g.style))
		}
		var err error
		r, err = glamour.NewTermRenderer(opts...)
		if err != nil {
			return "", err
		}
		g.renderers[width] = r
	}
	return r.Render(content)
}

// RenderMarkdown renders content, falling back to the raw text when the
// renderer fails or is missing.
func RenderMarkdown(content string, width int, renderer MarkdownRenderer) (string, error) {
	if renderer == nil || strings.TrimSpace(content) == "" {
		return content, nil
	}
	if width <= 0 {
		width = 80
	}
	out, err := renderer.Render(content, width)
	if err != nil {
		return content, err
	}
	return strings.TrimRight(out, "\n"), nil
}
