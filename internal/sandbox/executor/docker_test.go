package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	runFunc func(cmd []string) (*Result, error)
	calls   [][]string
}

func (m *mockRunner) Run(_ context.Context, cmd []string) (*Result, error) {
	m.calls = append(m.calls, cmd)
	if m.runFunc != nil {
		return m.runFunc(cmd)
	}
	return nil, errors.New("not implemented")
}

var testDockerConfig = DockerConfig{
	CheckCommand:  []string{"docker", "info"},
	StartCommand:  []string{"open", "-a", "Docker"},
	RetryAttempts: 5,
	RetryInterval: 10 * time.Millisecond,
}

func TestEnsureDockerReady(t *testing.T) {
	t.Run("Success immediately", func(t *testing.T) {
		runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
			if cmd[0] == "docker" && cmd[1] == "info" {
				return &Result{ExitCode: 0}, nil
			}
			return nil, errors.New("unexpected command")
		}}
		require.NoError(t, EnsureDockerReady(context.Background(), runner, testDockerConfig))
		assert.Len(t, runner.calls, 1)
	})

	t.Run("Start required and succeeds", func(t *testing.T) {
		checkCalls := 0
		runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
			if cmd[0] == "docker" && cmd[1] == "info" {
				checkCalls++
				if checkCalls == 1 {
					return &Result{ExitCode: 1}, nil
				}
				return &Result{ExitCode: 0}, nil
			}
			if cmd[0] == "open" {
				return &Result{ExitCode: 0}, nil
			}
			return nil, errors.New("unexpected command")
		}}
		require.NoError(t, EnsureDockerReady(context.Background(), runner, testDockerConfig))
		assert.Equal(t, 2, checkCalls)
	})

	t.Run("Start fails", func(t *testing.T) {
		runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
			return nil, errors.New("command failed")
		}}
		assert.Error(t, EnsureDockerReady(context.Background(), runner, testDockerConfig))
	})

	t.Run("Never becomes ready", func(t *testing.T) {
		runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
			if cmd[0] == "open" {
				return &Result{}, nil
			}
			return &Result{ExitCode: 1}, nil
		}}
		err := EnsureDockerReady(context.Background(), runner, testDockerConfig)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after retries")
	})
}

func TestDocker_Lifecycle(t *testing.T) {
	local := newTestLocal(t)
	runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
		switch {
		case cmd[1] == "info":
			return &Result{}, nil
		case cmd[1] == "run":
			return &Result{Output: "Unable to find image locally\nabc123\n"}, nil
		case cmd[1] == "rm":
			return &Result{}, nil
		}
		return nil, errors.New("unexpected command")
	}}

	d, err := newDocker(context.Background(), local, runner, DockerOptions{Config: testDockerConfig})
	require.NoError(t, err)
	assert.Equal(t, "abc123", d.ContainerID())

	run := strings.Join(runner.calls[1], " ")
	assert.Contains(t, run, "-v "+local.Dir()+":/app")
	assert.Contains(t, run, "-p 5173:5173")
	assert.Contains(t, run, "node:20-alpine sleep infinity")

	require.NoError(t, d.Close())
	assert.Equal(t, []string{"docker", "rm", "-f", "abc123"}, runner.calls[len(runner.calls)-1])
}

func TestDocker_ContainerStartFails(t *testing.T) {
	local := newTestLocal(t)
	runner := &mockRunner{runFunc: func(cmd []string) (*Result, error) {
		if cmd[1] == "run" {
			return &Result{ExitCode: 125, Output: "port is already allocated"}, nil
		}
		return &Result{}, nil
	}}

	_, err := newDocker(context.Background(), local, runner, DockerOptions{Config: testDockerConfig})
	assert.ErrorIs(t, err, sandbox.ErrSandboxUnavailable)
	assert.Contains(t, err.Error(), "port is already allocated")
}

func TestDocker_ExecArgv(t *testing.T) {
	local, err := NewLocal(LocalOptions{Dir: t.TempDir(), Env: []string{"NODE_ENV=development"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	d := &Docker{Local: local, containerID: "abc123"}

	tests := []struct {
		name   string
		argv   []string
		server bool
		want   []string
	}{
		{
			name: "command",
			argv: []string{"npm", "install"},
			want: []string{"docker", "exec", "-w", "/app", "-e", "HOST=0.0.0.0", "-e", "NODE_ENV=development", "abc123", "npm", "install"},
		},
		{
			name:   "npm dev server listens on all interfaces",
			argv:   []string{"npm", "run", "dev"},
			server: true,
			want:   []string{"docker", "exec", "-w", "/app", "-e", "HOST=0.0.0.0", "-e", "NODE_ENV=development", "abc123", "npm", "run", "dev", "--", "--host", "0.0.0.0"},
		},
		{
			name:   "existing script args are kept",
			argv:   []string{"npm", "run", "dev", "--", "--port", "5173"},
			server: true,
			want:   []string{"docker", "exec", "-w", "/app", "-e", "HOST=0.0.0.0", "-e", "NODE_ENV=development", "abc123", "npm", "run", "dev", "--", "--port", "5173", "--host", "0.0.0.0"},
		},
		{
			name:   "other servers get the env only",
			argv:   []string{"node", "server.js"},
			server: true,
			want:   []string{"docker", "exec", "-w", "/app", "-e", "HOST=0.0.0.0", "-e", "NODE_ENV=development", "abc123", "node", "server.js"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			if tt.server {
				got = d.serverArgv(tt.argv[0], tt.argv[1:])
			} else {
				got = d.execArgv(tt.argv[0], tt.argv[1:])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
