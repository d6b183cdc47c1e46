package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/logging"
	"github.com/Cyclone1070/buildforme/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultReadyTimeout = 2 * time.Minute

// Options configures a Session.
type Options struct {
	InstallCommand []string      // Default: npm install
	DevCommand     []string      // Default: npm run dev
	ReadyTimeout   time.Duration // Default: 2 minutes
	Logger         *zap.Logger
	// OnStateChange is called after every state change, in order. It must
	// not block.
	OnStateChange func(Snapshot)
}

// Session owns one sandbox for one build. It starts itself when the tree
// first has content, keeps the sandbox filesystem in step with the tree,
// and exposes install and readiness as one-shot waits.
//
// The session takes ownership of its Runtime and closes it in Close.
type Session struct {
	id   string
	rt   Runtime
	tree *filetree.Tree
	opts Options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu keeps OnStateChange calls in transition order.
	notifyMu sync.Mutex

	mu           sync.Mutex
	state        State
	previewURL   string
	diagnostic   string
	err          error
	superseded   bool
	materialized bool
	procs        []Process

	installed chan struct{} // closed when the install phase ends
	ready     chan struct{} // closed on Ready or Errored
	closed    chan struct{} // closed by Close

	started     atomic.Bool
	startOnce   sync.Once
	unsubscribe func()

	qmu        sync.Mutex
	queue      []filetree.Event
	wake       chan struct{}
	workerDone chan struct{}
}

// NewSession creates a session over tree. If the tree already has content
// the session starts immediately.
func NewSession(rt Runtime, tree *filetree.Tree, opts Options) *Session {
	if len(opts.InstallCommand) == 0 {
		opts.InstallCommand = []string{"npm", "install"}
	}
	if len(opts.DevCommand) == 0 {
		opts.DevCommand = []string{"npm", "run", "dev"}
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		rt:         rt,
		tree:       tree,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateUninitialized,
		installed:  make(chan struct{}),
		ready:      make(chan struct{}),
		closed:     make(chan struct{}),
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	s.log = logging.OrNop(opts.Logger).With(zap.String("session", s.id))

	rt.OnServerReady(s.serverReady)
	s.unsubscribe = tree.Subscribe(s.observe)
	go s.resyncLoop()
	metrics.SessionOpened()

	if !tree.IsEmpty() {
		s.Start()
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         s.id,
		State:      s.state,
		PreviewURL: s.previewURL,
		Diagnostic: s.diagnostic,
		Superseded: s.superseded,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.Snapshot().State }

// PreviewURL returns the dev server address once Ready.
func (s *Session) PreviewURL() string { return s.Snapshot().PreviewURL }

// Diagnostic returns the failure output of an errored session.
func (s *Session) Diagnostic() string { return s.Snapshot().Diagnostic }

// Err returns the error that moved the session to Errored.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start begins materialization and install. Only the first call has an
// effect; tree events call it implicitly.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
	})
}

// Started reports whether Start has run.
func (s *Session) Started() bool { return s.started.Load() }

// WaitInstalled blocks until the install phase has finished.
func (s *Session) WaitInstalled(ctx context.Context) error {
	return s.wait(ctx, s.installed)
}

// WaitReady blocks until the dev server is ready or the session fails.
func (s *Session) WaitReady(ctx context.Context) error {
	return s.wait(ctx, s.ready)
}

func (s *Session) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
	case <-s.closed:
		return ErrSuperseded
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.superseded:
		return ErrSuperseded
	case s.state == StateErrored:
		return s.err
	default:
		return nil
	}
}

// Close supersedes the session: it stops following the tree, kills its
// processes best-effort and ignores their completion from now on.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.superseded {
		s.mu.Unlock()
		return nil
	}
	s.superseded = true
	close(s.closed)
	procs := s.procs
	s.procs = nil
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	for _, p := range procs {
		_ = p.Kill()
	}
	<-s.workerDone

	metrics.SessionClosed()
	s.log.Info("session closed")
	return s.rt.Close()
}

func (s *Session) isSuperseded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.superseded
}

// transition moves to state to and runs apply under the lock. It reports
// false, changing nothing, when the move is illegal or the session is
// superseded.
func (s *Session) transition(to State, apply func()) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	from := s.state
	if s.superseded || !CanTransition(from, to) {
		s.mu.Unlock()
		return false
	}
	s.state = to
	if apply != nil {
		apply()
	}
	switch to {
	case StateStarting:
		close(s.installed)
	case StateReady:
		close(s.ready)
	case StateErrored:
		if from == StateUninitialized || from == StateInstalling {
			close(s.installed)
		}
		if from != StateReady {
			close(s.ready)
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	metrics.RecordSessionState(string(to))
	s.log.Info("session state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(snap)
	}
	return true
}

func (s *Session) fail(err error, diagnostic string) {
	if diagnostic == "" {
		diagnostic = err.Error()
	}
	if s.transition(StateErrored, func() {
		s.err = err
		s.diagnostic = diagnostic
	}) {
		s.log.Warn("session errored", zap.Error(err))
	}
}

func (s *Session) run() {
	if !s.transition(StateInstalling, nil) {
		return
	}

	files := s.tree.Files()
	if err := s.rt.WriteFiles(s.ctx, files); err != nil {
		s.fail(fmt.Errorf("%w: materialize tree: %v", ErrSandboxUnavailable, err), "")
		return
	}
	s.mu.Lock()
	s.materialized = true
	s.mu.Unlock()
	s.signal()
	s.log.Info("tree materialized", zap.Int("files", len(files)))

	if err := s.runPhase(s.opts.InstallCommand); err != nil {
		s.fail(err, diagnostic(err))
		return
	}
	if !s.transition(StateStarting, nil) {
		return
	}

	dev, err := s.rt.SpawnServer(s.ctx, s.opts.DevCommand[0], s.opts.DevCommand[1:])
	if err != nil {
		metrics.RecordSandboxCommand(false)
		s.fail(err, "")
		return
	}
	s.track(dev)
	go s.watchDevServer(dev)

	timer := time.NewTimer(s.opts.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-s.ready:
	case <-s.closed:
	case <-timer.C:
		s.fail(ErrReadyTimeout, fmt.Sprintf("dev server did not report ready within %s\n%s", s.opts.ReadyTimeout, dev.Output()))
	}
}

// runPhase runs argv to completion for the install phase.
func (s *Session) runPhase(argv []string) error {
	proc, err := s.spawn(argv)
	if err != nil {
		return err
	}
	code, err := proc.Wait()
	switch {
	case s.isSuperseded():
		return ErrSuperseded
	case err != nil:
		metrics.RecordSandboxCommand(false)
		return fmt.Errorf("%w: %s: %v", ErrSandboxUnavailable, strings.Join(argv, " "), err)
	case code != 0:
		metrics.RecordSandboxCommand(false)
		return &CommandError{Command: strings.Join(argv, " "), ExitCode: code, Output: proc.Output()}
	}
	metrics.RecordSandboxCommand(true)
	return nil
}

func (s *Session) spawn(argv []string) (Process, error) {
	proc, err := s.rt.Spawn(s.ctx, argv[0], argv[1:])
	if err != nil {
		metrics.RecordSandboxCommand(false)
		return nil, err
	}
	s.track(proc)
	return proc, nil
}

func (s *Session) track(p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.superseded {
		_ = p.Kill()
		return
	}
	s.procs = append(s.procs, p)
}

func (s *Session) watchDevServer(dev Process) {
	code, err := dev.Wait()
	if s.isSuperseded() {
		return
	}
	cause := fmt.Errorf("%w: dev server exited with code %d", ErrSandboxUnavailable, code)
	if err != nil {
		cause = fmt.Errorf("%w: dev server stopped: %v", ErrSandboxUnavailable, err)
	}
	s.fail(cause, dev.Output())
}

func (s *Session) serverReady(port int, url string) {
	if s.transition(StateReady, func() { s.previewURL = url }) {
		s.log.Info("dev server ready", zap.Int("port", port), zap.String("url", url))
	}
}

// observe runs inside tree mutations, so it only queues.
func (s *Session) observe(ev filetree.Event) {
	s.Start()
	s.qmu.Lock()
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) resyncLoop() {
	defer close(s.workerDone)
	for {
		select {
		case <-s.closed:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		materialized, errored := s.materialized, s.state == StateErrored
		s.mu.Unlock()
		if !materialized {
			continue
		}

		for {
			s.qmu.Lock()
			if len(s.queue) == 0 {
				s.qmu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.qmu.Unlock()

			if !errored {
				s.resync(ev)
			}
		}
	}
}

// resync writes the current tree state of ev's path into the sandbox.
// Reading the tree rather than replaying event content keeps the sandbox
// converging on the latest write.
func (s *Session) resync(ev filetree.Event) {
	var err error
	switch {
	case ev.Kind == filetree.Deleted:
		err = s.rt.Remove(s.ctx, ev.Path)
	case ev.NodeKind == filetree.KindFile:
		content, rerr := s.tree.ReadFile(ev.Path)
		if rerr != nil {
			return // removed again; its Deleted event is queued
		}
		err = s.rt.WriteFile(s.ctx, ev.Path, content)
	default:
		return
	}
	if err != nil {
		s.log.Warn("resync failed", zap.String("path", ev.Path), zap.Error(err))
		return
	}
	s.log.Debug("resynced", zap.String("path", ev.Path), zap.String("kind", ev.Kind.String()))
}

func diagnostic(err error) string {
	if ce, ok := err.(*CommandError); ok {
		return fmt.Sprintf("%s\n%s", ce.Error(), ce.Tail(40))
	}
	return err.Error()
}
