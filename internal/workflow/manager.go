// Package workflow runs builds: classify the prompt, apply the seed
// artifact, stream the generated artifact into the applier and wait for the
// sandbox preview. A new build supersedes the previous one.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/provider"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoBuild is returned by Manager.Edit before the first build.
var ErrNoBuild = errors.New("no build started")

// RuntimeFactory creates the sandbox runtime for a new build.
type RuntimeFactory func(ctx context.Context) (sandbox.Runtime, error)

// Options configures a Manager.
type Options struct {
	Provider provider.Provider
	Catalog  *archetype.Catalog

	// NewRuntime creates each build's sandbox. When nil, builds run without
	// a sandbox and command actions complete without running.
	NewRuntime RuntimeFactory
	Session    sandbox.Options

	Policy            applier.Policy
	ClassifyMaxTokens int // Default: 200
	ChatMaxTokens     int // Default: 8000
	Logger            *zap.Logger
}

// Manager owns the project state shared by successive builds: one file
// tree and one step tracker, reset when a build starts.
type Manager struct {
	opts       Options
	classifier *archetype.Classifier
	tree       *filetree.Tree
	tracker    *step.Tracker
	log        *zap.Logger

	mu      sync.Mutex
	current *Build
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.ClassifyMaxTokens <= 0 {
		opts.ClassifyMaxTokens = 200
	}
	if opts.ChatMaxTokens <= 0 {
		opts.ChatMaxTokens = 8000
	}
	log := logging.OrNop(opts.Logger)
	return &Manager{
		opts:       opts,
		classifier: archetype.NewClassifier(opts.Provider, opts.ClassifyMaxTokens, log),
		tree:       filetree.New(),
		tracker:    step.NewTracker(),
		log:        log,
	}
}

// Tree returns the project file tree.
func (m *Manager) Tree() *filetree.Tree { return m.tree }

// Tracker returns the step tracker.
func (m *Manager) Tracker() *step.Tracker { return m.tracker }

// Current returns the latest build, or nil.
func (m *Manager) Current() *Build {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start supersedes the running build, if any, and starts a new one for
// prompt. The previous build is cancelled and its session closed before the
// tree and tracker are cleared.
func (m *Manager) Start(ctx context.Context, prompt string) *Build {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.current; prev != nil {
		prev.supersede()
	}
	m.tracker.Reset()
	m.tree.Reset()

	b := newBuild(ctx, prompt)
	b.log = m.log.With(zap.String("build", b.id))
	m.current = b
	go m.run(b)
	return b
}

// Edit writes a user change into the tree. The sandbox picks it up like any
// other write; the last write to a path wins.
func (m *Manager) Edit(path, content string) error {
	if m.Current() == nil {
		return ErrNoBuild
	}
	if _, err := m.tree.UpsertFile(path, content); err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	return nil
}

// Close supersedes the current build and releases its sandbox.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.supersede()
	}
	return nil
}

// Result is the outcome of a build.
type Result struct {
	Archetype  archetype.Archetype
	Title      string
	Summary    applier.Summary
	PreviewURL string
	Err        error
}

// Build is one run of the pipeline.
type Build struct {
	id     string
	prompt string
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	events    *queue[Event]
	out       chan Event
	pumpOnce  sync.Once
	done      chan struct{}
	result    Result
	startedAt time.Time

	mu         sync.Mutex
	session    *sandbox.Session
	superseded bool
}

func newBuild(parent context.Context, prompt string) *Build {
	ctx, cancel := context.WithCancel(parent)
	return &Build{
		id:        uuid.NewString(),
		prompt:    prompt,
		ctx:       ctx,
		cancel:    cancel,
		events:    newQueue[Event](),
		out:       make(chan Event, 64),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

// ID returns the build id.
func (b *Build) ID() string { return b.id }

// Prompt returns the user prompt.
func (b *Build) Prompt() string { return b.prompt }

// Events returns the build's events in order. The channel closes after the
// DoneEvent. Events are buffered until first read, so a caller that never
// reads does not stall the build.
func (b *Build) Events() <-chan Event {
	b.pumpOnce.Do(func() { go b.pump() })
	return b.out
}

func (b *Build) pump() {
	defer close(b.out)
	for {
		ev, ok := b.events.Pop(context.Background())
		if !ok {
			return
		}
		b.out <- ev
	}
}

func (b *Build) emit(ev Event) {
	b.events.Push(ev)
}

// Done is closed when the build finishes.
func (b *Build) Done() <-chan struct{} { return b.done }

// Wait blocks until the build finishes and returns its result.
func (b *Build) Wait() Result {
	<-b.done
	return b.result
}

// Cancel stops the build. Its sandbox keeps the state it reached.
func (b *Build) Cancel() { b.cancel() }

// Session returns the build's sandbox session, or nil when it has none yet.
func (b *Build) Session() *sandbox.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// setSession records s unless the build was already superseded, in which
// case s is closed at once.
func (b *Build) setSession(s *sandbox.Session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.superseded {
		_ = s.Close()
		return false
	}
	b.session = s
	return true
}

// supersede cancels the build, waits for it to stop and closes its session.
func (b *Build) supersede() {
	b.mu.Lock()
	b.superseded = true
	b.mu.Unlock()

	b.cancel()
	<-b.done

	if s := b.Session(); s != nil {
		if err := s.Close(); err != nil {
			b.log.Warn("closing superseded session", zap.Error(err))
		}
	}
}

func (b *Build) isSuperseded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.superseded
}
