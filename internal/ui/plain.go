package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/Cyclone1070/buildforme/internal/workflow"
)

// Plain implements Presenter by printing one line per event. It suits
// pipes and CI logs.
type Plain struct {
	out io.Writer
}

// NewPlain creates a Plain presenter writing to out.
func NewPlain(out io.Writer) *Plain {
	return &Plain{out: out}
}

func (p *Plain) Present(ctx context.Context, prompt string, events <-chan workflow.Event, cancel func()) error {
	fmt.Fprintf(p.out, "building: %s\n", prompt)
	for {
		select {
		case <-ctx.Done():
			if cancel != nil {
				cancel()
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.print(ev)
		}
	}
}

func (p *Plain) print(ev workflow.Event) {
	switch ev := ev.(type) {
	case workflow.ThinkingEvent:
		fmt.Fprintf(p.out, "... %s\n", ev.Stage)
	case workflow.ArchetypeEvent:
		fmt.Fprintf(p.out, "template: %s\n", ev.Archetype)
	case workflow.StepEvent:
		s := ev.Step
		switch s.Status {
		case step.StatusInProgress:
			fmt.Fprintf(p.out, "[%d] %s\n", s.ID, s.Title)
		case step.StatusCompleted:
			fmt.Fprintf(p.out, "[%d] done\n", s.ID)
		case step.StatusFailed:
			fmt.Fprintf(p.out, "[%d] failed: %s\n", s.ID, s.Reason)
		}
	case workflow.SessionEvent:
		switch {
		case ev.PreviewURL != "":
			fmt.Fprintf(p.out, "sandbox: %s %s\n", ev.State, ev.PreviewURL)
		case ev.Diagnostic != "":
			fmt.Fprintf(p.out, "sandbox: %s\n%s\n", ev.State, strings.TrimRight(ev.Diagnostic, "\n"))
		default:
			fmt.Fprintf(p.out, "sandbox: %s\n", ev.State)
		}
	case workflow.TextEvent:
		fmt.Fprintln(p.out, ev.Text)
	case workflow.DoneEvent:
		if ev.Err != nil {
			fmt.Fprintf(p.out, "build failed: %v\n", ev.Err)
			return
		}
		fmt.Fprintf(p.out, "build finished: %d completed, %d failed\n", ev.Summary.Completed, ev.Summary.Failed)
	}
}
