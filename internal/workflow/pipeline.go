package workflow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"go.uber.org/zap"
)

// stepBuffer bounds step updates in flight between the tracker and the
// build's event queue.
const stepBuffer = 1024

// run executes the pipeline for b and always finishes with a DoneEvent.
func (m *Manager) run(b *Build) {
	steps, unsubscribeSteps := m.tracker.Subscribe(stepBuffer)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for s := range steps {
			b.emit(StepEvent{Step: s})
		}
	}()
	unsubscribeTree := m.tree.Subscribe(func(ev filetree.Event) {
		if ev.NodeKind == filetree.KindFile {
			b.emit(FileEvent{Path: ev.Path, Kind: ev.Kind})
		}
	})

	res := m.execute(b)
	if b.isSuperseded() && res.Err != nil {
		res.Err = fmt.Errorf("%w: %w", sandbox.ErrSuperseded, res.Err)
	}

	unsubscribeTree()
	unsubscribeSteps()
	<-forwarded

	b.result = res
	logFields := []zap.Field{
		zap.Int("completed", res.Summary.Completed),
		zap.Int("failed", res.Summary.Failed),
		zap.Duration("duration", time.Since(b.startedAt)),
	}
	if res.Err != nil {
		b.log.Info("build finished with error", append(logFields, zap.Error(res.Err))...)
	} else {
		b.log.Info("build finished", append(logFields, zap.String("preview", res.PreviewURL))...)
	}
	b.emit(DoneEvent{Summary: res.Summary, Err: res.Err})
	b.events.Close()
	close(b.done)
}

func (m *Manager) execute(b *Build) Result {
	ctx := b.ctx
	var res Result

	b.emit(ThinkingEvent{Stage: "classify"})
	a, err := m.classifier.Classify(ctx, b.prompt)
	if err != nil {
		res.Err = fmt.Errorf("classify: %w", err)
		return res
	}
	res.Archetype = a
	b.emit(ArchetypeEvent{Archetype: a})

	tmpl, err := m.opts.Catalog.Template(a)
	if err != nil {
		res.Err = err
		return res
	}

	// Seed: the archetype's starting files.
	seeder := applier.New(m.tracker, m.tree, nil, applier.WithLogger(b.log))
	for _, seed := range tmpl.UIPrompts {
		sum, err := seeder.Run(ctx, applier.Jobs(m.tracker, slices.Values(artifact.Parse(seed, true))))
		res.Summary = add(res.Summary, sum)
		if err != nil {
			res.Err = fmt.Errorf("seed: %w", err)
			return res
		}
	}

	var commander applier.Commander = skipCommander{log: b.log}
	var sessions *lazySession
	if m.opts.NewRuntime != nil {
		sessions = &lazySession{open: func() (*sandbox.Session, error) { return m.openSession(b) }}
		commander = sessions
	}
	app := applier.New(m.tracker, m.tree, commander,
		applier.WithPolicy(m.opts.Policy),
		applier.WithLogger(b.log),
	)

	// Generation: actions are applied as soon as each block completes.
	text, sum, err := m.generate(ctx, b, app, tmpl)
	res.Summary = add(res.Summary, sum)
	res.Title = artifact.ArtifactTitle(text)
	if prose := artifact.Prose(text); prose != "" {
		b.emit(TextEvent{Text: prose})
	}
	if err != nil {
		res.Err = err
		return res
	}

	if sessions != nil {
		session, err := sessions.get()
		if err != nil {
			res.Err = err
			return res
		}
		if err := session.WaitReady(ctx); err != nil {
			res.Err = err
			return res
		}
		res.PreviewURL = session.PreviewURL()
	}
	return res
}

// lazySession opens the build's session on the first command. Generated
// artifacts write their files before running anything, so by then the tree
// holds the project the install step needs.
type lazySession struct {
	open    func() (*sandbox.Session, error)
	once    sync.Once
	session *sandbox.Session
	err     error
}

func (l *lazySession) get() (*sandbox.Session, error) {
	l.once.Do(func() {
		l.session, l.err = l.open()
	})
	return l.session, l.err
}

func (l *lazySession) RunCommand(ctx context.Context, name string, args []string) error {
	s, err := l.get()
	if err != nil {
		return err
	}
	return s.RunCommand(ctx, name, args)
}

func (l *lazySession) RunShell(ctx context.Context, script string) error {
	s, err := l.get()
	if err != nil {
		return err
	}
	return s.RunShell(ctx, script)
}

// openSession creates the build's runtime and session. Session state
// changes are forwarded as events.
func (m *Manager) openSession(b *Build) (*sandbox.Session, error) {
	rt, err := m.opts.NewRuntime(b.ctx)
	if err != nil {
		if errors.Is(err, sandbox.ErrSandboxUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", sandbox.ErrSandboxUnavailable, err)
	}

	opts := m.opts.Session
	opts.OnStateChange = func(s sandbox.Snapshot) {
		b.emit(SessionEvent{
			SessionID:  s.ID,
			State:      s.State,
			PreviewURL: s.PreviewURL,
			Diagnostic: s.Diagnostic,
		})
	}
	opts.Logger = b.log
	session := sandbox.NewSession(rt, m.tree, opts)
	if !b.setSession(session) {
		return nil, sandbox.ErrSuperseded
	}
	return session, nil
}

// generate streams the chat completion into the applier. The stream is
// read on its own goroutine so long-running commands never stall it; when
// the applier stops early the stream is cancelled.
func (m *Manager) generate(ctx context.Context, b *Build, app *applier.Applier, tmpl archetype.Template) (string, applier.Summary, error) {
	b.emit(ThinkingEvent{Stage: "generate"})

	msgs := make([]models.Message, 0, len(tmpl.Prompts)+1)
	for _, p := range tmpl.Prompts {
		msgs = append(msgs, models.Message{Role: models.RoleUser, Content: p})
	}
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: b.prompt})
	req := &models.GenerateRequest{
		System:    m.opts.Catalog.SystemPrompt,
		Messages:  msgs,
		MaxTokens: m.opts.ChatMaxTokens,
	}

	genCtx, stop := context.WithCancel(ctx)
	defer stop()

	actions := newQueue[artifact.Action]()
	stream := artifact.NewStream()
	var genErr error
	genDone := make(chan struct{})
	go func() {
		defer close(genDone)
		defer actions.Close()

		start := time.Now()
		_, err := m.opts.Provider.GenerateStream(genCtx, req, func(delta string) {
			fresh, err := stream.Append(delta)
			if err != nil {
				b.log.Warn("dropping stream delta", zap.Error(err))
				return
			}
			for _, a := range fresh {
				actions.Push(a)
			}
		})
		metrics.RecordGeneration("generate", time.Since(start), err)
		if err != nil {
			genErr = err
			return
		}
		for _, a := range stream.Close() {
			actions.Push(a)
		}
	}()

	sum, runErr := app.Run(ctx, applier.Jobs(m.tracker, drain(ctx, actions)))
	if runErr == nil {
		runErr = ctx.Err()
	}
	stop()
	<-genDone

	text := stream.Text()
	switch {
	case runErr != nil:
		return text, sum, runErr
	case genErr != nil:
		return text, sum, fmt.Errorf("generate: %w", genErr)
	}
	return text, sum, nil
}

// drain yields queued items until the queue closes or ctx is done.
func drain[T any](ctx context.Context, q *queue[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := q.Pop(ctx)
			if !ok || !yield(v) {
				return
			}
		}
	}
}

func add(a, b applier.Summary) applier.Summary {
	return applier.Summary{Completed: a.Completed + b.Completed, Failed: a.Failed + b.Failed}
}

// skipCommander completes command actions without running them. It is
// used when a build has no sandbox.
type skipCommander struct {
	log *zap.Logger
}

func (c skipCommander) RunCommand(_ context.Context, name string, args []string) error {
	c.log.Debug("sandbox disabled, skipping command", zap.String("command", name), zap.Strings("args", args))
	return nil
}

func (c skipCommander) RunShell(_ context.Context, script string) error {
	c.log.Debug("sandbox disabled, skipping script", zap.String("script", script))
	return nil
}
