// Package filetree is the in-memory project model: an ownership tree of
// files and folders addressed by normalized path.
package filetree

import (
	"path"
	"slices"
	"sync"
)

type entry struct {
	kind     Kind
	content  string
	children []string // child names, insertion order
}

// Tree is an arena of nodes keyed by normalized path. The root folder
// always exists. Safe for concurrent use; mutations are serialized and
// their events are delivered in mutation order.
type Tree struct {
	// writeMu serializes mutation plus notification so observers see
	// events in the same order the mutations committed.
	writeMu sync.Mutex
	mu      sync.RWMutex
	nodes   map[string]*entry

	obsMu     sync.Mutex
	observers []subscription
	nextObsID int
}

type subscription struct {
	id int
	fn Observer
}

// New returns a tree holding only the root folder.
func New() *Tree {
	return &Tree{
		nodes: map[string]*entry{Root: {kind: KindFolder}},
	}
}

// Subscribe registers fn for change events and returns a function that
// removes it.
func (t *Tree) Subscribe(fn Observer) func() {
	t.obsMu.Lock()
	id := t.nextObsID
	t.nextObsID++
	t.observers = append(t.observers, subscription{id: id, fn: fn})
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		t.observers = slices.DeleteFunc(t.observers, func(s subscription) bool { return s.id == id })
	}
}

func (t *Tree) notify(events []Event) {
	t.obsMu.Lock()
	observers := slices.Clone(t.observers)
	t.obsMu.Unlock()

	for _, ev := range events {
		for _, s := range observers {
			s.fn(ev)
		}
	}
}

// UpsertFile creates or overwrites the file at p, creating missing
// ancestor folders. It reports whether the file was Created or Modified.
// Nothing changes if any part of the path conflicts with an existing node.
func (t *Tree) UpsertFile(p, content string) (EventKind, error) {
	norm, err := Normalize(p)
	if err != nil {
		return 0, &PathError{Op: "upsert", Path: p, Err: err}
	}
	if norm == Root {
		return 0, &PathError{Op: "upsert", Path: p, Err: ErrPathConflict}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	events, err := t.upsertLocked(norm, content)
	if err != nil {
		return 0, err
	}
	t.notify(events)
	return events[len(events)-1].Kind, nil
}

func (t *Tree) upsertLocked(p, content string) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parents := ancestors(p)
	for _, a := range parents {
		if n, ok := t.nodes[a]; ok && n.kind != KindFolder {
			return nil, &PathError{Op: "upsert", Path: p, Err: ErrPathConflict}
		}
	}
	existing, ok := t.nodes[p]
	if ok && existing.kind != KindFile {
		return nil, &PathError{Op: "upsert", Path: p, Err: ErrPathConflict}
	}

	var events []Event
	for i, a := range parents {
		if _, ok := t.nodes[a]; ok {
			continue
		}
		t.nodes[a] = &entry{kind: KindFolder}
		t.link(parents[i-1], path.Base(a))
		events = append(events, Event{Path: a, Kind: Created, NodeKind: KindFolder})
	}

	if ok {
		existing.content = content
		return append(events, Event{Path: p, Kind: Modified, NodeKind: KindFile}), nil
	}
	t.nodes[p] = &entry{kind: KindFile, content: content}
	t.link(parents[len(parents)-1], path.Base(p))
	return append(events, Event{Path: p, Kind: Created, NodeKind: KindFile}), nil
}

func (t *Tree) link(parent, name string) {
	n := t.nodes[parent]
	n.children = append(n.children, name)
}

// Delete removes the node at p and, for a folder, everything beneath it.
// Parent folders are left in place even when they become empty.
func (t *Tree) Delete(p string) error {
	norm, err := Normalize(p)
	if err != nil {
		return &PathError{Op: "delete", Path: p, Err: err}
	}
	if norm == Root {
		return &PathError{Op: "delete", Path: p, Err: ErrInvalidPath}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	n, ok := t.nodes[norm]
	if !ok {
		t.mu.Unlock()
		return &PathError{Op: "delete", Path: p, Err: ErrNotFound}
	}
	kind := n.kind
	t.removeLocked(norm)
	parent := t.nodes[path.Dir(norm)]
	parent.children = slices.DeleteFunc(parent.children, func(name string) bool { return name == path.Base(norm) })
	t.mu.Unlock()

	t.notify([]Event{{Path: norm, Kind: Deleted, NodeKind: kind}})
	return nil
}

func (t *Tree) removeLocked(p string) {
	n := t.nodes[p]
	for _, child := range n.children {
		t.removeLocked(path.Join(p, child))
	}
	delete(t.nodes, p)
}

// ReadFile returns the content of the file at p. A folder at p is
// reported as ErrNotFound since no file exists there.
func (t *Tree) ReadFile(p string) (string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return "", &PathError{Op: "read", Path: p, Err: err}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[norm]
	if !ok || n.kind != KindFile {
		return "", &PathError{Op: "read", Path: p, Err: ErrNotFound}
	}
	return n.content, nil
}

// ListChildren returns the names directly under the folder at p, in the
// order they were created.
func (t *Tree) ListChildren(p string) ([]string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return nil, &PathError{Op: "list", Path: p, Err: err}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[norm]
	if !ok {
		return nil, &PathError{Op: "list", Path: p, Err: ErrNotFound}
	}
	if n.kind != KindFolder {
		return nil, &PathError{Op: "list", Path: p, Err: ErrNotAFolder}
	}
	return slices.Clone(n.children), nil
}

// Stat returns a read view of the node at p including its descendants.
func (t *Tree) Stat(p string) (Node, error) {
	norm, err := Normalize(p)
	if err != nil {
		return Node{}, &PathError{Op: "stat", Path: p, Err: err}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.nodes[norm]; !ok {
		return Node{}, &PathError{Op: "stat", Path: p, Err: ErrNotFound}
	}
	return t.viewLocked(norm), nil
}

// View returns a read view of the whole tree.
func (t *Tree) View() Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.viewLocked(Root)
}

func (t *Tree) viewLocked(p string) Node {
	n := t.nodes[p]
	v := Node{Path: p, Name: path.Base(p), Kind: n.kind, Content: n.content}
	if p == Root {
		v.Name = ""
	}
	for _, child := range n.children {
		v.Children = append(v.Children, t.viewLocked(path.Join(p, child)))
	}
	return v
}

// Files returns every file depth-first, siblings in creation order. The
// slice is a consistent snapshot.
func (t *Tree) Files() []File {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []File
	var walk func(p string)
	walk = func(p string) {
		n := t.nodes[p]
		if n.kind == KindFile {
			out = append(out, File{Path: p, Content: n.content})
			return
		}
		for _, child := range n.children {
			walk(path.Join(p, child))
		}
	}
	walk(Root)
	return out
}

// Len returns the number of nodes, excluding the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes) - 1
}

// IsEmpty reports whether the root has no children.
func (t *Tree) IsEmpty() bool {
	return t.Len() == 0
}

// Reset removes everything below the root without emitting events. It is
// used when a new build replaces the previous project.
func (t *Tree) Reset() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = map[string]*entry{Root: {kind: KindFolder}}
}
