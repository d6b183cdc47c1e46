// Package artifact parses the generation service's artifact protocol into
// ordered build actions.
//
// An artifact interleaves prose with action blocks:
//
//	<boltArtifact id="app" title="Todo app">
//	  <boltAction type="file" filePath="src/main.tsx">...</boltAction>
//	  <boltAction type="shell">npm install</boltAction>
//	</boltArtifact>
package artifact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

var (
	// ErrAmbiguous marks a block that could not be classified. The block is
	// still delivered as a Shell action carrying its raw text.
	ErrAmbiguous = errors.New("ambiguous action block")
	// ErrPrefixMismatch is returned by Stream.Feed when the new text does not
	// extend the text previously fed.
	ErrPrefixMismatch = errors.New("artifact text does not extend previous input")
	// ErrStreamClosed is returned by Stream.Feed after Close.
	ErrStreamClosed = errors.New("artifact stream closed")
)

// Kind is the action variant.
type Kind string

const (
	KindWriteFile  Kind = "write_file"
	KindRunCommand Kind = "run_command"
	KindShell      Kind = "shell"
)

// Action is one parsed build action. Which fields are set depends on Kind:
// WriteFile uses Path and Content, RunCommand uses Command and Args, Shell
// uses RawText.
type Action struct {
	Index       int      `json:"index"`
	Kind        Kind     `json:"kind"`
	Path        string   `json:"path,omitempty"`
	Content     string   `json:"content,omitempty"`
	Command     string   `json:"command,omitempty"`
	Args        []string `json:"args,omitempty"`
	RawText     string   `json:"rawText,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Err         error    `json:"-"`
}

// Ambiguous reports whether the block could not be classified.
func (a Action) Ambiguous() bool {
	return errors.Is(a.Err, ErrAmbiguous)
}

// CommandLine renders a RunCommand as a single shell-quoted line.
func (a Action) CommandLine() string {
	return shellquote.Join(append([]string{a.Command}, a.Args...)...)
}

func (a Action) String() string {
	switch a.Kind {
	case KindWriteFile:
		return fmt.Sprintf("write %s (%d bytes)", a.Path, len(a.Content))
	case KindRunCommand:
		return "run " + a.CommandLine()
	default:
		return "shell " + firstLine(a.RawText)
	}
}

func ambiguous(reason string) error {
	return fmt.Errorf("%w: %s", ErrAmbiguous, reason)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
