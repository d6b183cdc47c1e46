// Package step tracks the user-visible lifecycle of build actions.
package step

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Cyclone1070/buildforme/internal/artifact"
)

// Tracker assigns steps to actions and records their status. Steps move
// Pending -> InProgress -> Completed|Failed only. Subscribers receive a copy
// of every changed step; slow subscribers lose updates rather than block
// the caller.
type Tracker struct {
	mu     sync.RWMutex
	steps  []Step
	byID   map[int]int // id -> index in steps
	nextID int

	subMu     sync.Mutex
	subs      map[int]chan Step
	nextSubID int
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byID:   make(map[int]int),
		nextID: 1,
		subs:   make(map[int]chan Step),
	}
}

// Register creates a Pending step for a and returns it. Ids keep
// increasing across Reset so a stale id never names a newer step.
func (t *Tracker) Register(a artifact.Action) Step {
	t.mu.Lock()
	s := Step{
		ID:                t.nextID,
		Title:             a.Title,
		Description:       a.Description,
		Status:            StatusPending,
		Kind:              a.Kind,
		SourceActionIndex: a.Index,
	}
	t.nextID++
	t.byID[s.ID] = len(t.steps)
	t.steps = append(t.steps, s)
	t.mu.Unlock()

	t.publish(s)
	return s
}

// Begin moves a Pending step to InProgress.
func (t *Tracker) Begin(id int) error {
	return t.transition(id, StatusInProgress, "")
}

// Complete moves an InProgress step to Completed.
func (t *Tracker) Complete(id int) error {
	return t.transition(id, StatusCompleted, "")
}

// Fail moves an InProgress step to Failed with reason.
func (t *Tracker) Fail(id int, reason string) error {
	return t.transition(id, StatusFailed, reason)
}

func (t *Tracker) transition(id int, to Status, reason string) error {
	t.mu.Lock()
	idx, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("step %d: %w", id, ErrUnknownStep)
	}
	s := &t.steps[idx]
	if !allowed(s.Status, to) {
		from := s.Status
		t.mu.Unlock()
		return &TransitionError{ID: id, From: from, To: to}
	}
	s.Status = to
	s.Reason = reason
	updated := *s
	t.mu.Unlock()

	t.publish(updated)
	return nil
}

func allowed(from, to Status) bool {
	switch to {
	case StatusInProgress:
		return from == StatusPending
	case StatusCompleted, StatusFailed:
		return from == StatusInProgress
	default:
		return false
	}
}

// Get returns the step with id.
func (t *Tracker) Get(id int) (Step, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byID[id]
	if !ok {
		return Step{}, false
	}
	return t.steps[idx], true
}

// Steps returns a copy of all steps in registration order.
func (t *Tracker) Steps() []Step {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.steps)
}

// Counts returns the number of steps per status.
func (t *Tracker) Counts() map[Status]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[Status]int, 4)
	for _, s := range t.steps {
		counts[s.Status]++
	}
	return counts
}

// Reset forgets all steps. Subscribers stay registered.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.byID = make(map[int]int)
}

// Subscribe returns a channel of step updates with the given buffer and a
// function that closes it.
func (t *Tracker) Subscribe(buffer int) (<-chan Step, func()) {
	ch := make(chan Step, buffer)
	t.subMu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) publish(s Step) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
