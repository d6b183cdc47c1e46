// Package executor provides sandbox runtimes: Local runs commands on the
// host inside a private work directory, Docker runs them in a container
// with the same directory bind-mounted.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	securejoin "github.com/cyphar/filepath-securejoin"
	"go.uber.org/zap"
)

const (
	defaultMaxOutputBytes   = 1 << 20
	defaultGracefulShutdown = 2 * time.Second
)

// LocalOptions configures a Local runtime.
type LocalOptions struct {
	// Dir is the work directory. When empty a temp dir is created and removed
	// on Close.
	Dir              string
	MaxOutputBytes   int
	GracefulShutdown time.Duration
	Env              []string
	Logger           *zap.Logger
}

// Local is a sandbox.Runtime backed by a host directory.
type Local struct {
	dir       string
	ownsDir   bool
	maxOutput int
	grace     time.Duration
	env       []string
	log       *zap.Logger

	mu      sync.Mutex
	onReady sandbox.ServerReadyFunc
	procs   map[*process]struct{}
	closed  bool
}

// NewLocal creates a Local runtime.
func NewLocal(opts LocalOptions) (*Local, error) {
	dir, owns := opts.Dir, false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "buildforme-*")
		if err != nil {
			return nil, fmt.Errorf("%w: create work dir: %v", sandbox.ErrSandboxUnavailable, err)
		}
		dir, owns = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", sandbox.ErrSandboxUnavailable, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve work dir: %v", sandbox.ErrSandboxUnavailable, err)
	}

	l := &Local{
		dir:       abs,
		ownsDir:   owns,
		maxOutput: opts.MaxOutputBytes,
		grace:     opts.GracefulShutdown,
		env:       opts.Env,
		log:       logging.OrNop(opts.Logger),
		procs:     make(map[*process]struct{}),
	}
	if l.maxOutput <= 0 {
		l.maxOutput = defaultMaxOutputBytes
	}
	if l.grace <= 0 {
		l.grace = defaultGracefulShutdown
	}
	return l, nil
}

// Dir returns the work directory.
func (l *Local) Dir() string { return l.dir }

// resolve maps a tree path into the work directory. Symlinks cannot lead
// outside it.
func (l *Local) resolve(p string) (string, error) {
	norm, err := filetree.Normalize(p)
	if err != nil {
		return "", err
	}
	if norm == filetree.Root {
		return l.dir, nil
	}
	return securejoin.SecureJoin(l.dir, strings.TrimPrefix(norm, "/"))
}

func (l *Local) WriteFiles(ctx context.Context, files []filetree.File) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.WriteFile(ctx, f.Path, f.Content); err != nil {
			return err
		}
	}
	return nil
}

func (l *Local) WriteFile(_ context.Context, path, content string) error {
	target, err := l.resolve(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if target == l.dir {
		return fmt.Errorf("write %s: %w", path, filetree.ErrPathConflict)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return writeFileAtomic(target, []byte(content), 0o644)
}

func (l *Local) Remove(_ context.Context, path string) error {
	target, err := l.resolve(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if target == l.dir {
		return fmt.Errorf("remove %s: %w", path, filetree.ErrInvalidPath)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (l *Local) Spawn(ctx context.Context, name string, args []string) (sandbox.Process, error) {
	return l.start(ctx, append([]string{name}, args...), false)
}

func (l *Local) SpawnServer(ctx context.Context, name string, args []string) (sandbox.Process, error) {
	return l.start(ctx, append([]string{name}, args...), true)
}

// start runs argv in the work directory. Cancelling ctx interrupts the
// process; it is killed if it outlives the grace period. A server process
// has its output scanned for the address it listens on.
func (l *Local) start(ctx context.Context, argv []string, server bool) (*process, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: runtime closed", sandbox.ErrSandboxUnavailable)
	}

	line := strings.Join(argv, " ")
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = l.dir
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Stdin = nil
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = l.grace

	var onLine func(string)
	if server {
		onLine = l.readyScanner()
	}
	out := newCollector(l.maxOutput, binarySampleSize, onLine)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &sandbox.CommandError{Command: line, ExitCode: 127, Output: err.Error()}
		}
		return nil, fmt.Errorf("%w: start %s: %v", sandbox.ErrSandboxUnavailable, argv[0], err)
	}
	l.log.Debug("process started", zap.String("command", line), zap.Int("pid", cmd.Process.Pid))

	p := &process{cmd: cmd, out: out, grace: l.grace, done: make(chan struct{})}
	l.mu.Lock()
	l.procs[p] = struct{}{}
	l.mu.Unlock()
	go p.run(l.forget)
	return p, nil
}

func (l *Local) forget(p *process) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.procs, p)
}

func (l *Local) OnServerReady(fn sandbox.ServerReadyFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReady = fn
}

// readyScanner returns a line scanner that announces the first server URL
// one process prints.
func (l *Local) readyScanner() func(string) {
	var announced bool
	return func(line string) {
		if announced {
			return
		}
		port, url, ok := detectServerURL(line)
		if !ok {
			return
		}
		announced = true

		l.mu.Lock()
		fn := l.onReady
		l.mu.Unlock()
		if fn == nil {
			return
		}
		l.log.Info("server ready", zap.Int("port", port), zap.String("url", url))
		fn(port, url)
	}
}

// Close stops every running process and removes an owned work directory.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	procs := make([]*process, 0, len(l.procs))
	for p := range l.procs {
		procs = append(procs, p)
	}
	l.mu.Unlock()

	for _, p := range procs {
		_ = p.Kill()
	}
	deadline := time.After(l.grace + time.Second)
	for _, p := range procs {
		select {
		case <-p.done:
		case <-deadline:
		}
	}

	if l.ownsDir {
		if err := os.RemoveAll(l.dir); err != nil {
			return fmt.Errorf("remove work dir: %w", err)
		}
	}
	return nil
}
