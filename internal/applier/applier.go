// Package applier executes build actions in order against the file tree and
// the sandbox, driving each action's step through its lifecycle.
package applier

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"github.com/Cyclone1070/buildforme/internal/step"
	"go.uber.org/zap"
)

var (
	// ErrHalted is returned by Run when a failed action stops the pipeline.
	ErrHalted = errors.New("pipeline halted")
	// ErrNoCommander is returned for command actions when no commander is set.
	ErrNoCommander = errors.New("no command runner configured")
)

// Policy decides what happens after a failed action.
type Policy int

const (
	// FailFast stops at the first failed action. Ambiguous blocks fail their
	// step without stopping.
	FailFast Policy = iota
	// BestEffort keeps going after failures.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fail_fast"
}

// Commander runs non-file actions and returns once they have finished.
type Commander interface {
	RunCommand(ctx context.Context, name string, args []string) error
	RunShell(ctx context.Context, script string) error
}

// Job pairs an action with the step registered for it.
type Job struct {
	StepID int
	Action artifact.Action
}

// Summary counts the outcome of a Run.
type Summary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Applier applies actions one at a time.
type Applier struct {
	tracker   *step.Tracker
	tree      *filetree.Tree
	commander Commander
	policy    Policy
	log       *zap.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithPolicy sets the failure policy. The default is FailFast.
func WithPolicy(p Policy) Option {
	return func(a *Applier) { a.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Applier) { a.log = logging.OrNop(l) }
}

// New creates an Applier. commander may be nil when only file actions are
// expected.
func New(tracker *step.Tracker, tree *filetree.Tree, commander Commander, opts ...Option) *Applier {
	a := &Applier{
		tracker:   tracker,
		tree:      tree,
		commander: commander,
		policy:    FailFast,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply runs one job: it begins the step, performs the action and completes
// or fails the step. The action's error is returned.
func (a *Applier) Apply(ctx context.Context, job Job) error {
	if err := a.tracker.Begin(job.StepID); err != nil {
		return err
	}

	act := job.Action
	log := a.log.With(zap.Int("step", job.StepID), zap.String("action", act.String()))
	log.Debug("applying action")

	if err := a.execute(ctx, act); err != nil {
		if ferr := a.tracker.Fail(job.StepID, err.Error()); ferr != nil {
			log.Warn("failing step", zap.Error(ferr))
		}
		metrics.RecordStep(string(act.Kind), string(step.StatusFailed))
		log.Info("action failed", zap.Error(err))
		return err
	}

	if err := a.tracker.Complete(job.StepID); err != nil {
		return err
	}
	metrics.RecordStep(string(act.Kind), string(step.StatusCompleted))
	return nil
}

func (a *Applier) execute(ctx context.Context, act artifact.Action) error {
	if act.Ambiguous() {
		return act.Err
	}
	switch act.Kind {
	case artifact.KindWriteFile:
		_, err := a.tree.UpsertFile(act.Path, act.Content)
		return err
	case artifact.KindRunCommand:
		if a.commander == nil {
			return ErrNoCommander
		}
		return a.commander.RunCommand(ctx, act.Command, act.Args)
	case artifact.KindShell:
		if a.commander == nil {
			return ErrNoCommander
		}
		return a.commander.RunShell(ctx, act.RawText)
	default:
		return fmt.Errorf("unknown action kind %q", act.Kind)
	}
}

// Run applies jobs strictly in order. Under FailFast the first failure of a
// classifiable action stops the run with ErrHalted, leaving later steps
// Pending. Cancelling ctx stops the run before the next job.
func (a *Applier) Run(ctx context.Context, jobs iter.Seq[Job]) (Summary, error) {
	var sum Summary
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		err := a.Apply(ctx, job)
		switch {
		case err == nil:
			sum.Completed++
		case ctx.Err() != nil:
			sum.Failed++
			return sum, ctx.Err()
		default:
			sum.Failed++
			if a.policy == FailFast && !job.Action.Ambiguous() {
				a.log.Info("pipeline halted", zap.Int("step", job.StepID))
				return sum, fmt.Errorf("%w at step %d: %w", ErrHalted, job.StepID, err)
			}
		}
	}
	return sum, nil
}

// Jobs registers a step for each action as it is produced and yields the
// resulting jobs.
func Jobs(tracker *step.Tracker, actions iter.Seq[artifact.Action]) iter.Seq[Job] {
	return func(yield func(Job) bool) {
		for act := range actions {
			s := tracker.Register(act)
			if !yield(Job{StepID: s.ID, Action: act}) {
				return
			}
		}
	}
}
