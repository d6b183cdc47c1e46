package mocks

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/Cyclone1070/buildforme/internal/filetree"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
)

// MockProcess implements sandbox.Process. It runs until Exit or Kill.
type MockProcess struct {
	Line string

	mu     sync.Mutex
	done   chan struct{}
	once   sync.Once
	code   int
	err    error
	output string
	killed bool
}

// NewMockProcess creates a running process.
func NewMockProcess(line string) *MockProcess {
	return &MockProcess{Line: line, done: make(chan struct{})}
}

// Exit finishes the process with code and output.
func (p *MockProcess) Exit(code int, output string) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code, p.output = code, output
		p.mu.Unlock()
		close(p.done)
	})
}

// Crash finishes the process abnormally.
func (p *MockProcess) Crash(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code, p.err = -1, err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *MockProcess) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.err
}

func (p *MockProcess) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *MockProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(-1, "")
	return nil
}

// Killed reports whether Kill was called.
func (p *MockProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// MockRuntime implements sandbox.Runtime in memory.
//
// SpawnFunc decides what each command does. When nil, or when it returns
// (nil, nil), the command exits 0 at once, except for commands listed in
// LongRunning, which keep running until exited by the test.
type MockRuntime struct {
	Mu      sync.Mutex
	Files   map[string]string
	Spawned []string
	// Servers lists the command lines started through SpawnServer.
	Servers     []string
	Procs       map[string]*MockProcess
	LongRunning map[string]bool
	// FilesAtSpawn holds a copy of Files taken at each spawn, keyed by
	// command line. Later spawns of the same line overwrite earlier ones.
	FilesAtSpawn map[string]map[string]string
	SpawnFunc    func(line string) (*MockProcess, error)
	WriteErr     error
	Closed       bool

	ready sandbox.ServerReadyFunc
}

// NewMockRuntime creates an empty runtime where "npm run dev" keeps running.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Files:        make(map[string]string),
		Procs:        make(map[string]*MockProcess),
		LongRunning:  map[string]bool{"npm run dev": true},
		FilesAtSpawn: make(map[string]map[string]string),
	}
}

func (r *MockRuntime) WriteFiles(_ context.Context, files []filetree.File) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.WriteErr != nil {
		return r.WriteErr
	}
	for _, f := range files {
		r.Files[f.Path] = f.Content
	}
	return nil
}

func (r *MockRuntime) WriteFile(_ context.Context, path, content string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.Files[path] = content
	return nil
}

func (r *MockRuntime) Remove(_ context.Context, path string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for p := range r.Files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(r.Files, p)
		}
	}
	return nil
}

func (r *MockRuntime) Spawn(_ context.Context, name string, args []string) (sandbox.Process, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	r.Mu.Lock()
	r.Spawned = append(r.Spawned, line)
	r.FilesAtSpawn[line] = maps.Clone(r.Files)
	fn := r.SpawnFunc
	long := r.LongRunning[line]
	r.Mu.Unlock()

	var proc *MockProcess
	if fn != nil {
		p, err := fn(line)
		if err != nil {
			return nil, err
		}
		proc = p
	}
	if proc == nil {
		proc = NewMockProcess(line)
		if !long {
			proc.Exit(0, "")
		}
	}

	r.Mu.Lock()
	r.Procs[line] = proc
	r.Mu.Unlock()
	return proc, nil
}

func (r *MockRuntime) SpawnServer(ctx context.Context, name string, args []string) (sandbox.Process, error) {
	r.Mu.Lock()
	r.Servers = append(r.Servers, strings.Join(append([]string{name}, args...), " "))
	r.Mu.Unlock()
	return r.Spawn(ctx, name, args)
}

func (r *MockRuntime) OnServerReady(fn sandbox.ServerReadyFunc) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.ready = fn
}

// FireServerReady simulates a dev server announcing itself.
func (r *MockRuntime) FireServerReady(port int, url string) {
	r.Mu.Lock()
	fn := r.ready
	r.Mu.Unlock()
	if fn != nil {
		fn(port, url)
	}
}

func (r *MockRuntime) Close() error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.Closed = true
	return nil
}

// File returns the sandbox content of path.
func (r *MockRuntime) File(path string) (string, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	c, ok := r.Files[path]
	return c, ok
}

// SpawnCount returns how many times line was spawned.
func (r *MockRuntime) SpawnCount(line string) int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	n := 0
	for _, s := range r.Spawned {
		if s == line {
			n++
		}
	}
	return n
}

// Proc returns the last process spawned for line.
func (r *MockRuntime) Proc(line string) *MockProcess {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Procs[line]
}

// IsClosed reports whether Close was called.
func (r *MockRuntime) IsClosed() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Closed
}
