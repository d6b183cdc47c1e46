package step

import (
	"errors"
	"testing"

	"github.com/Cyclone1070/buildforme/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAction(index int, path string) artifact.Action {
	return artifact.Action{Index: index, Kind: artifact.KindWriteFile, Path: path, Title: "Create " + path}
}

func TestRegister_AssignsMonotonicIDs(t *testing.T) {
	tracker := NewTracker()

	a := tracker.Register(writeAction(0, "a"))
	b := tracker.Register(writeAction(1, "b"))

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "Create b", b.Title)
	assert.Equal(t, 1, b.SourceActionIndex)
	assert.Equal(t, artifact.KindWriteFile, b.Kind)
}

func TestTransitions_HappyPath(t *testing.T) {
	tracker := NewTracker()
	s := tracker.Register(writeAction(0, "a"))

	require.NoError(t, tracker.Begin(s.ID))
	got, _ := tracker.Get(s.ID)
	assert.Equal(t, StatusInProgress, got.Status)

	require.NoError(t, tracker.Complete(s.ID))
	got, _ = tracker.Get(s.ID)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestTransitions_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *Tracker, id int)
		act   func(tr *Tracker, id int) error
		want  Status
	}{
		{
			name: "Complete From Pending",
			act:  func(tr *Tracker, id int) error { return tr.Complete(id) },
			want: StatusPending,
		},
		{
			name:  "Begin Twice",
			setup: func(tr *Tracker, id int) { _ = tr.Begin(id) },
			act:   func(tr *Tracker, id int) error { return tr.Begin(id) },
			want:  StatusInProgress,
		},
		{
			name: "Fail After Complete",
			setup: func(tr *Tracker, id int) {
				_ = tr.Begin(id)
				_ = tr.Complete(id)
			},
			act:  func(tr *Tracker, id int) error { return tr.Fail(id, "late") },
			want: StatusCompleted,
		},
		{
			name: "Fail From Pending",
			act:  func(tr *Tracker, id int) error { return tr.Fail(id, "skipped") },
			want: StatusPending,
		},
		{
			name: "Begin After Fail",
			setup: func(tr *Tracker, id int) {
				_ = tr.Begin(id)
				_ = tr.Fail(id, "boom")
			},
			act:  func(tr *Tracker, id int) error { return tr.Begin(id) },
			want: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()
			s := tracker.Register(writeAction(0, "a"))
			if tt.setup != nil {
				tt.setup(tracker, s.ID)
			}

			err := tt.act(tracker, s.ID)

			assert.ErrorIs(t, err, ErrInvalidTransition)
			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, s.ID, te.ID)
			got, _ := tracker.Get(s.ID)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestFail_FromInProgress(t *testing.T) {
	tracker := NewTracker()
	running := tracker.Register(writeAction(0, "a"))
	require.NoError(t, tracker.Begin(running.ID))

	require.NoError(t, tracker.Fail(running.ID, "exit status 1"))

	got, _ := tracker.Get(running.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "exit status 1", got.Reason)
}

func TestUnknownStep(t *testing.T) {
	tracker := NewTracker()
	assert.ErrorIs(t, tracker.Begin(42), ErrUnknownStep)

	s := tracker.Register(writeAction(0, "a"))
	tracker.Reset()

	assert.ErrorIs(t, tracker.Begin(s.ID), ErrUnknownStep)
	next := tracker.Register(writeAction(0, "a"))
	assert.Greater(t, next.ID, s.ID)
}

func TestSteps_ReturnsCopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Register(writeAction(0, "a"))

	steps := tracker.Steps()
	steps[0].Status = StatusFailed

	got, _ := tracker.Get(1)
	assert.Equal(t, StatusPending, got.Status)
}

func TestCounts(t *testing.T) {
	tracker := NewTracker()
	for i := range 3 {
		tracker.Register(writeAction(i, "x"))
	}
	require.NoError(t, tracker.Begin(1))
	require.NoError(t, tracker.Complete(1))
	require.NoError(t, tracker.Begin(2))
	require.NoError(t, tracker.Fail(2, "no"))

	assert.Equal(t, map[Status]int{StatusCompleted: 1, StatusFailed: 1, StatusPending: 1}, tracker.Counts())
}

func TestSubscribe_ReceivesUpdates(t *testing.T) {
	tracker := NewTracker()
	updates, unsubscribe := tracker.Subscribe(8)

	s := tracker.Register(writeAction(0, "a"))
	require.NoError(t, tracker.Begin(s.ID))
	require.NoError(t, tracker.Complete(s.ID))
	unsubscribe()

	var statuses []Status
	for u := range updates {
		statuses = append(statuses, u.Status)
	}
	assert.Equal(t, []Status{StatusPending, StatusInProgress, StatusCompleted}, statuses)
}

func TestSubscribe_FullSubscriberNeverBlocks(t *testing.T) {
	tracker := NewTracker()
	_, unsubscribe := tracker.Subscribe(0)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		s := tracker.Register(writeAction(0, "a"))
		_ = tracker.Begin(s.ID)
		_ = tracker.Complete(s.ID)
		close(done)
	}()

	<-done
	assert.Len(t, tracker.Steps(), 1)
}
