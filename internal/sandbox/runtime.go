// Package sandbox orchestrates one isolated execution session per build:
// materializing the file tree, installing dependencies, starting the dev
// server and binding its preview address.
package sandbox

import (
	"context"

	"github.com/Cyclone1070/buildforme/internal/filetree"
)

// ServerReadyFunc is called when a dev server inside the sandbox starts
// listening.
type ServerReadyFunc func(port int, url string)

// Process is a command running inside the sandbox.
type Process interface {
	// Wait blocks until the process exits and returns its exit code. A
	// non-nil error means the process did not exit normally.
	Wait() (int, error)
	// Output returns the combined output captured so far.
	Output() string
	// Kill stops the process.
	Kill() error
}

// Runtime is the execution capability a session drives. Spawn failures
// caused by the runtime itself wrap ErrSandboxUnavailable; a command that
// cannot be found is reported as a *CommandError.
type Runtime interface {
	WriteFiles(ctx context.Context, files []filetree.File) error
	WriteFile(ctx context.Context, path, content string) error
	Remove(ctx context.Context, path string) error
	Spawn(ctx context.Context, name string, args []string) (Process, error)
	// SpawnServer starts the dev server. Only its output is watched for the
	// address passed to the OnServerReady callback.
	SpawnServer(ctx context.Context, name string, args []string) (Process, error)
	OnServerReady(fn ServerReadyFunc)
	Close() error
}
