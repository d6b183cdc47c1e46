package sandbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"go.uber.org/zap"
)

// RunCommand runs one command against the session. The install and dev
// commands are not spawned again: they start the session if needed and wait
// for the matching phase. Any other command runs once the install phase is
// over, so it never races the dependency install.
func (s *Session) RunCommand(ctx context.Context, name string, args []string) error {
	argv := append([]string{name}, args...)
	switch {
	case slices.Equal(argv, s.opts.InstallCommand):
		s.Start()
		return s.WaitInstalled(ctx)
	case slices.Equal(argv, s.opts.DevCommand):
		s.Start()
		return s.WaitReady(ctx)
	}
	return s.exec(ctx, argv)
}

// RunShell runs a shell script. Segments joined by "&&" that name the
// install or dev command are routed to the session phases; the rest run
// through sh in order, stopping at the first failure.
func (s *Session) RunShell(ctx context.Context, script string) error {
	var pending []string
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		joined := strings.Join(pending, " && ")
		pending = nil
		return s.exec(ctx, []string{"sh", "-c", joined})
	}

	for _, seg := range splitAnd(script) {
		if name, args, ok := artifact.SplitCommand(seg); ok && s.isPhaseCommand(name, args) {
			if err := flush(); err != nil {
				return err
			}
			if err := s.RunCommand(ctx, name, args); err != nil {
				return err
			}
			continue
		}
		pending = append(pending, seg)
	}
	return flush()
}

func (s *Session) isPhaseCommand(name string, args []string) bool {
	argv := append([]string{name}, args...)
	return slices.Equal(argv, s.opts.InstallCommand) || slices.Equal(argv, s.opts.DevCommand)
}

// splitAnd splits a one-line script on "&&". Multi-line scripts are kept
// whole.
func splitAnd(script string) []string {
	script = strings.TrimSpace(script)
	if script == "" {
		return nil
	}
	if strings.Contains(script, "\n") {
		return []string{script}
	}
	var segs []string
	for _, seg := range strings.Split(script, "&&") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

func (s *Session) exec(ctx context.Context, argv []string) error {
	if s.isSuperseded() {
		return ErrSuperseded
	}
	if s.Started() {
		if err := s.WaitInstalled(ctx); err != nil {
			return err
		}
	}

	line := strings.Join(argv, " ")
	proc, err := s.rt.Spawn(ctx, argv[0], argv[1:])
	if err != nil {
		metrics.RecordSandboxCommand(false)
		if errors.Is(err, ErrSandboxUnavailable) {
			s.fail(err, "")
		}
		return err
	}
	s.track(proc)

	code, err := proc.Wait()
	switch {
	case s.isSuperseded():
		return ErrSuperseded
	case ctx.Err() != nil:
		metrics.RecordSandboxCommand(false)
		return ctx.Err()
	case err != nil:
		metrics.RecordSandboxCommand(false)
		return fmt.Errorf("%w: %s: %v", ErrSandboxUnavailable, line, err)
	case code != 0:
		metrics.RecordSandboxCommand(false)
		s.log.Info("command failed", zap.String("command", line), zap.Int("exit_code", code))
		return &CommandError{Command: line, ExitCode: code, Output: proc.Output()}
	}
	metrics.RecordSandboxCommand(true)
	s.log.Debug("command finished", zap.String("command", line))
	return nil
}
