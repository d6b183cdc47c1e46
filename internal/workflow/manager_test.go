package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Cyclone1070/buildforme/internal/applier"
	"github.com/Cyclone1070/buildforme/internal/archetype"
	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/Cyclone1070/buildforme/internal/provider/models"
	"github.com/Cyclone1070/buildforme/internal/sandbox"
	"github.com/Cyclone1070/buildforme/internal/step"
	"github.com/Cyclone1070/buildforme/internal/testing/mocks"
	"github.com/Cyclone1070/buildforme/internal/testing/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const generated = `Here is your todo app.

<boltArtifact id="todo-app" title="Todo App">
<boltAction type="file" filePath="src/App.tsx">export default function App() {
  return <h1>Todos</h1>;
}
</boltAction>
<boltAction type="shell">npm install</boltAction>
<boltAction type="shell">npm run dev</boltAction>
</boltArtifact>

Run it and add some todos.`

const waitFor = 3 * time.Second

// chunks splits s into pieces of n bytes, like a token stream.
func chunks(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

// readyRuntime announces the dev server as soon as it is spawned.
func readyRuntime() *mocks.MockRuntime {
	rt := mocks.NewMockRuntime()
	rt.SpawnFunc = func(line string) (*mocks.MockProcess, error) {
		if line == "npm run dev" {
			go rt.FireServerReady(5173, "http://localhost:5173/")
		}
		return nil, nil
	}
	return rt
}

func runtimes(rts ...*mocks.MockRuntime) RuntimeFactory {
	var n atomic.Int32
	return func(context.Context) (sandbox.Runtime, error) {
		i := int(n.Add(1)) - 1
		if i >= len(rts) {
			return nil, errors.New("no runtime left")
		}
		return rts[i], nil
	}
}

func newManager(t *testing.T, p *testhelpers.MockProvider, factory RuntimeFactory) (*Manager, *archetype.Catalog) {
	t.Helper()
	catalog, err := archetype.LoadCatalog()
	require.NoError(t, err)
	m := NewManager(Options{
		Provider:   p,
		Catalog:    catalog,
		NewRuntime: factory,
		Session:    sandbox.Options{ReadyTimeout: waitFor},
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, catalog
}

func seedActions(t *testing.T, c *archetype.Catalog, a archetype.Archetype) int {
	t.Helper()
	seed, err := c.Seed(a)
	require.NoError(t, err)
	return len(artifact.Parse(seed, true))
}

func collect(t *testing.T, b *Build) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(waitFor)
	for {
		select {
		case ev, ok := <-b.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func waitResult(t *testing.T, b *Build) Result {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(waitFor):
		t.Fatal("build did not finish")
	}
	return b.Wait()
}

func TestBuild_ReactEndToEnd(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("react").
		WithStreamResponse(chunks(generated, 13)...)
	rt := readyRuntime()
	m, catalog := newManager(t, p, runtimes(rt))

	b := m.Start(context.Background(), "Build a todo app")
	events := collect(t, b)
	res := b.Wait()

	require.NoError(t, res.Err)
	assert.Equal(t, archetype.React, res.Archetype)
	assert.Equal(t, "Todo App", res.Title)
	assert.Equal(t, "http://localhost:5173/", res.PreviewURL)
	seeded := seedActions(t, catalog, archetype.React)
	assert.Equal(t, applier.Summary{Completed: seeded + 3}, res.Summary)

	content, err := m.Tree().ReadFile("/src/App.tsx")
	require.NoError(t, err)
	assert.Contains(t, content, "<h1>Todos</h1>")
	assert.Equal(t, 1, rt.SpawnCount("npm install"), "install runs once")
	assert.Equal(t, 1, rt.SpawnCount("npm run dev"), "dev server runs once")

	for _, s := range m.Tracker().Steps() {
		assert.Equal(t, step.StatusCompleted, s.Status, s.Title)
	}

	// Generation request: system prompt, template prompts, then the user prompt.
	reqs := p.Requests()
	require.Len(t, reqs, 2)
	gen := reqs[1]
	assert.Equal(t, catalog.SystemPrompt, gen.System)
	assert.Equal(t, 8000, gen.MaxTokens)
	require.Len(t, gen.Messages, 3)
	assert.Equal(t, catalog.DesignPrompt, gen.Messages[0].Content)
	assert.Equal(t, "Build a todo app", gen.Messages[2].Content)
	for _, msg := range gen.Messages {
		assert.Equal(t, models.RoleUser, msg.Role)
	}

	// Event stream.
	require.NotEmpty(t, events)
	assert.Equal(t, ThinkingEvent{Stage: "classify"}, events[0])
	assert.Contains(t, events, Event(ArchetypeEvent{Archetype: archetype.React}))
	assert.Contains(t, events, Event(TextEvent{Text: "Here is your todo app.\n\nRun it and add some todos."}))
	done, ok := events[len(events)-1].(DoneEvent)
	require.True(t, ok, "last event must be DoneEvent")
	assert.NoError(t, done.Err)

	var states []sandbox.State
	var files []string
	for _, ev := range events {
		switch e := ev.(type) {
		case SessionEvent:
			states = append(states, e.State)
		case FileEvent:
			files = append(files, e.Path)
		}
	}
	assert.Equal(t, []sandbox.State{sandbox.StateInstalling, sandbox.StateStarting, sandbox.StateReady}, states)
	assert.Contains(t, files, "/package.json")
	assert.Contains(t, files, "/src/App.tsx")
}

func TestBuild_SessionMaterializesFilesBeforeInstall(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("node").
		WithStreamResponse(generated)
	rt := readyRuntime()
	m, _ := newManager(t, p, runtimes(rt))

	res := waitResult(t, m.Start(context.Background(), "node service"))
	require.NoError(t, res.Err)

	atInstall := rt.FilesAtSpawn["npm install"]
	assert.Contains(t, atInstall, "/package.json")
	assert.Contains(t, atInstall, "/src/App.tsx")
}

func TestBuild_NoSandbox(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("node").
		WithStreamResponse(generated)
	m, catalog := newManager(t, p, nil)

	b := m.Start(context.Background(), "a node script")
	res := waitResult(t, b)

	require.NoError(t, res.Err)
	assert.Empty(t, res.PreviewURL)
	assert.Nil(t, b.Session())
	assert.Equal(t, seedActions(t, catalog, archetype.Node)+3, res.Summary.Completed)
}

func TestBuild_UnrecognizedArchetype(t *testing.T) {
	p := testhelpers.NewMockProvider().WithTextResponse("cobol")
	m, _ := newManager(t, p, runtimes(readyRuntime()))

	b := m.Start(context.Background(), "mainframe batch job")
	events := collect(t, b)
	res := b.Wait()

	assert.ErrorIs(t, res.Err, archetype.ErrUnrecognized)
	assert.Empty(t, m.Tracker().Steps())
	assert.True(t, m.Tree().IsEmpty())
	assert.Len(t, p.Requests(), 1, "generation must not run")
	assert.IsType(t, DoneEvent{}, events[len(events)-1])
}

func TestBuild_FailFastHaltsOnInstallFailure(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("react").
		WithStreamResponse(chunks(generated, 20)...)
	rt := mocks.NewMockRuntime()
	rt.SpawnFunc = func(line string) (*mocks.MockProcess, error) {
		if line != "npm install" {
			return nil, nil
		}
		proc := mocks.NewMockProcess(line)
		proc.Exit(1, "npm ERR! code ERESOLVE\n")
		return proc, nil
	}
	m, catalog := newManager(t, p, runtimes(rt))

	b := m.Start(context.Background(), "Build a todo app")
	res := waitResult(t, b)

	assert.ErrorIs(t, res.Err, applier.ErrHalted)
	assert.ErrorIs(t, res.Err, sandbox.ErrCommandFailed)

	steps := m.Tracker().Steps()
	seeded := seedActions(t, catalog, archetype.React)
	require.Len(t, steps, seeded+2, "the dev server step is never registered")
	assert.Equal(t, step.StatusCompleted, steps[seeded].Status)
	assert.Equal(t, step.StatusFailed, steps[seeded+1].Status)
	assert.Zero(t, rt.SpawnCount("npm run dev"))

	// Prior state stays for inspection.
	_, err := m.Tree().ReadFile("/src/App.tsx")
	assert.NoError(t, err)
	assert.Equal(t, sandbox.StateErrored, b.Session().State())
	assert.Contains(t, b.Session().Diagnostic(), "ERESOLVE")
}

func TestBuild_UpstreamFailureMidStream(t *testing.T) {
	partial := `<boltArtifact id="a" title="A"><boltAction type="file" filePath="index.js">console.log(1)</boltAction><boltAction type="file" filePath="b.js">`
	p := testhelpers.NewMockProvider().
		WithTextResponse("node").
		WithResponse(testhelpers.MockResponse{
			Chunks: chunks(partial, 16),
			Err:    models.NewStatusError(503, "overloaded", nil),
		})
	m, _ := newManager(t, p, nil)

	res := waitResult(t, m.Start(context.Background(), "x"))

	assert.ErrorIs(t, res.Err, models.ErrUpstreamUnavailable)
	content, err := m.Tree().ReadFile("/index.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", content)
	_, err = m.Tree().ReadFile("/b.js")
	assert.Error(t, err, "an unfinished block is not applied")
}

func TestBuild_SupersededByNewBuild(t *testing.T) {
	first := `<boltArtifact id="a" title="A"><boltAction type="file" filePath="src/old.ts">old</boltAction><boltAction type="shell">npm install</boltAction>`
	p := testhelpers.NewMockProvider().
		WithTextResponse("react").
		WithResponse(testhelpers.MockResponse{
			Chunks: []string{first, "</boltArtifact>"},
			Gate:   make(chan struct{}),
		}).
		WithTextResponse("react").
		WithStreamResponse(chunks(generated, 32)...)
	rt1, rt2 := readyRuntime(), readyRuntime()
	m, _ := newManager(t, p, runtimes(rt1, rt2))

	b1 := m.Start(context.Background(), "first")
	require.Eventually(t, func() bool { return rt1.SpawnCount("npm install") > 0 }, waitFor, 5*time.Millisecond)

	b2 := m.Start(context.Background(), "second")

	res1 := b1.Wait()
	assert.ErrorIs(t, res1.Err, sandbox.ErrSuperseded)
	assert.True(t, rt1.IsClosed())
	assert.True(t, b1.Session().Snapshot().Superseded)

	res2 := waitResult(t, b2)
	require.NoError(t, res2.Err)
	assert.Equal(t, "http://localhost:5173/", res2.PreviewURL)

	_, err := m.Tree().ReadFile("/src/old.ts")
	assert.Error(t, err, "a new build starts from a fresh tree")
	assert.Same(t, b2, m.Current())
}

func TestBuild_Cancel(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("node").
		WithResponse(testhelpers.MockResponse{
			Chunks: []string{"<boltArtifact id=\"a\" title=\"A\">", "never"},
			Gate:   make(chan struct{}),
		})
	m, _ := newManager(t, p, nil)

	b := m.Start(context.Background(), "x")
	require.Eventually(t, func() bool { return len(p.Requests()) == 2 }, waitFor, 5*time.Millisecond)
	b.Cancel()

	res := waitResult(t, b)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.NotErrorIs(t, res.Err, sandbox.ErrSuperseded)
}

func TestManager_Edit(t *testing.T) {
	m, _ := newManager(t, testhelpers.NewMockProvider(), nil)
	assert.ErrorIs(t, m.Edit("/a.js", "x"), ErrNoBuild)

	p := testhelpers.NewMockProvider().
		WithTextResponse("react").
		WithStreamResponse(generated)
	rt := readyRuntime()
	m, _ = newManager(t, p, runtimes(rt))
	res := waitResult(t, m.Start(context.Background(), "todo"))
	require.NoError(t, res.Err)

	require.NoError(t, m.Edit("/src/App.tsx", "export default () => null;\n"))
	content, err := m.Tree().ReadFile("/src/App.tsx")
	require.NoError(t, err)
	assert.Equal(t, "export default () => null;\n", content)

	require.Eventually(t, func() bool {
		c, ok := rt.File("/src/App.tsx")
		return ok && c == "export default () => null;\n"
	}, waitFor, 5*time.Millisecond, "edits reach the sandbox")

	assert.Error(t, m.Edit("/src", "not a folder any more"))
}

func TestBuild_EventsAreBufferedUntilRead(t *testing.T) {
	p := testhelpers.NewMockProvider().
		WithTextResponse("node").
		WithStreamResponse(generated)
	m, _ := newManager(t, p, nil)

	b := m.Start(context.Background(), "x")
	require.NoError(t, waitResult(t, b).Err)

	events := collect(t, b)
	assert.IsType(t, ThinkingEvent{}, events[0])
	assert.IsType(t, DoneEvent{}, events[len(events)-1])
}
