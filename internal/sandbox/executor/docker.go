package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"go.uber.org/zap"
)

const (
	containerWorkDir = "/app"
	bindAll          = "0.0.0.0"
)

// Result is the outcome of a short-lived helper command.
type Result struct {
	Output   string
	ExitCode int
}

// commandRunner runs a command to completion.
type commandRunner interface {
	Run(ctx context.Context, cmd []string) (*Result, error)
}

// osRunner runs helper commands on the host.
type osRunner struct {
	maxOutput int
}

func (r osRunner) Run(ctx context.Context, command []string) (*Result, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}
	out := newCollector(r.maxOutput, binarySampleSize, nil)
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	res := &Result{Output: out.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return nil, err
	}
	return res, nil
}

// DockerConfig contains configuration for Docker readiness checks.
type DockerConfig struct {
	CheckCommand  []string // e.g., ["docker", "info"]
	StartCommand  []string // e.g., ["docker", "desktop", "start"]
	RetryAttempts int
	RetryInterval time.Duration
}

// EnsureDockerReady checks if Docker is running and attempts to start it if
// not, then polls the check command until it succeeds or attempts run out.
func EnsureDockerReady(ctx context.Context, runner commandRunner, config DockerConfig) error {
	if res, err := runner.Run(ctx, config.CheckCommand); err == nil && res.ExitCode == 0 {
		return nil
	}

	if _, err := runner.Run(ctx, config.StartCommand); err != nil {
		return err
	}

	interval := config.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range config.RetryAttempts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if res, err := runner.Run(ctx, config.CheckCommand); err == nil && res.ExitCode == 0 {
				return nil
			}
		}
	}

	res, err := runner.Run(ctx, config.CheckCommand)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker failed to start after retries: exit code %d", res.ExitCode)
	}
	return nil
}

// DockerOptions configures a Docker runtime.
type DockerOptions struct {
	Local  LocalOptions
	Image  string // Default: node:20-alpine
	Port   int    // dev server port published to the host. Default: 5173
	Config DockerConfig
}

// Docker is a sandbox.Runtime that keeps files in a host directory
// bind-mounted into a long-lived container and runs commands there.
type Docker struct {
	*Local
	runner      commandRunner
	containerID string
}

// NewDocker makes sure the daemon is up and starts the container.
func NewDocker(ctx context.Context, opts DockerOptions) (*Docker, error) {
	local, err := NewLocal(opts.Local)
	if err != nil {
		return nil, err
	}
	d, err := newDocker(ctx, local, osRunner{maxOutput: local.maxOutput}, opts)
	if err != nil {
		_ = local.Close()
		return nil, err
	}
	return d, nil
}

func newDocker(ctx context.Context, local *Local, runner commandRunner, opts DockerOptions) (*Docker, error) {
	if opts.Image == "" {
		opts.Image = "node:20-alpine"
	}
	if opts.Port <= 0 {
		opts.Port = 5173
	}

	if err := EnsureDockerReady(ctx, runner, opts.Config); err != nil {
		return nil, fmt.Errorf("%w: docker: %v", sandbox.ErrSandboxUnavailable, err)
	}

	port := strconv.Itoa(opts.Port)
	res, err := runner.Run(ctx, []string{
		"docker", "run", "-d", "--rm",
		"-v", local.dir + ":" + containerWorkDir,
		"-w", containerWorkDir,
		"-p", port + ":" + port,
		opts.Image, "sleep", "infinity",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: start container: %v", sandbox.ErrSandboxUnavailable, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: start container: exit code %d: %s", sandbox.ErrSandboxUnavailable, res.ExitCode, strings.TrimSpace(res.Output))
	}

	id := strings.TrimSpace(res.Output)
	if i := strings.LastIndexByte(id, '\n'); i >= 0 {
		id = id[i+1:]
	}
	local.log.Info("container started", zap.String("container", id), zap.String("image", opts.Image))
	return &Docker{Local: local, runner: runner, containerID: id}, nil
}

// ContainerID returns the id of the sandbox container.
func (d *Docker) ContainerID() string { return d.containerID }

// Spawn runs the command inside the container.
func (d *Docker) Spawn(ctx context.Context, name string, args []string) (sandbox.Process, error) {
	return d.start(ctx, d.execArgv(name, args), false)
}

// SpawnServer starts the dev server inside the container. It must listen
// on all interfaces for the published port to reach it.
func (d *Docker) SpawnServer(ctx context.Context, name string, args []string) (sandbox.Process, error) {
	return d.start(ctx, d.serverArgv(name, args), true)
}

func (d *Docker) execArgv(name string, args []string) []string {
	argv := []string{"docker", "exec", "-w", containerWorkDir, "-e", "HOST=" + bindAll}
	for _, kv := range d.env {
		argv = append(argv, "-e", kv)
	}
	argv = append(argv, d.containerID, name)
	return append(argv, args...)
}

// serverArgv also forwards --host to npm scripts, which is how Vite is told
// to listen beyond loopback.
func (d *Docker) serverArgv(name string, args []string) []string {
	if name == "npm" && len(args) > 0 && args[0] == "run" {
		args = slices.Clone(args)
		if !slices.Contains(args, "--") {
			args = append(args, "--")
		}
		args = append(args, "--host", bindAll)
	}
	return d.execArgv(name, args)
}

// Close removes the container, then the work directory.
func (d *Docker) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if res, err := d.runner.Run(ctx, []string{"docker", "rm", "-f", d.containerID}); err != nil {
		errs = append(errs, fmt.Errorf("remove container %s: %w", d.containerID, err))
	} else if res.ExitCode != 0 {
		errs = append(errs, fmt.Errorf("remove container %s: exit code %d", d.containerID, res.ExitCode))
	}
	if err := d.Local.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
