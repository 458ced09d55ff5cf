package model

import (
	"time"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
)

// TaskStateKind enumerates the states a Task can be in.
type TaskStateKind int

const (
	// TaskNotStarted means the task was never attempted.
	TaskNotStarted TaskStateKind = iota
	// TaskAttemptsWithFailure means the task ran and failed one or more
	// times; Failures holds one message per attempt.
	TaskAttemptsWithFailure
	// TaskComplete means the task ran to completion successfully.
	TaskComplete
	// TaskInProgress means a worker is (or, if orphaned, was) working on the
	// task. PriorFailures optionally carries failures from before this
	// attempt started.
	TaskInProgress
)

// TaskState is the state of a single task, plus any failure messages carried
// along with that state.
type TaskState struct {
	Kind          TaskStateKind
	Failures      []string // TaskAttemptsWithFailure
	PriorFailures []string // TaskInProgress, nil if none
}

// IsComplete reports whether the state is TaskComplete.
func (s TaskState) IsComplete() bool { return s.Kind == TaskComplete }

// MergeWith combines the receiver (the task's currently stored state) with an
// incoming state, producing the state that should be written back.
//
// The combination rules mirror a very particular asymmetry: accumulating
// failure messages is only meaningful between AttemptsWithFailure and
// InProgress pairs (in either direction), since those are the only pairs
// that both carry a failure history worth preserving. Every other
// combination simply adopts the incoming state.
func (s TaskState) MergeWith(other TaskState) (TaskState, error) {
	switch {
	case s.Kind == TaskAttemptsWithFailure && other.Kind == TaskAttemptsWithFailure:
		return TaskState{Kind: TaskAttemptsWithFailure, Failures: append(append([]string(nil), s.Failures...), other.Failures...)}, nil
	case s.Kind == TaskAttemptsWithFailure && other.Kind == TaskInProgress && other.PriorFailures == nil:
		return TaskState{Kind: TaskInProgress, PriorFailures: append([]string(nil), s.Failures...)}, nil
	case s.Kind == TaskAttemptsWithFailure && other.Kind == TaskInProgress && other.PriorFailures != nil:
		return TaskState{}, modelerrors.Bug("must not create an in-progress state preloaded with failed attempts")
	case s.Kind == TaskInProgress && s.PriorFailures != nil && other.Kind == TaskAttemptsWithFailure:
		return TaskState{Kind: TaskAttemptsWithFailure, Failures: append(append([]string(nil), s.PriorFailures...), other.Failures...)}, nil
	default:
		return other, nil
	}
}

// Task is the persisted record of one unit of work against one
// (process, version) pair.
type Task struct {
	// StoredAt is set automatically on every write and is roughly the time
	// the task was last saved, whether it succeeded or failed.
	StoredAt time.Time
	Process  string
	Version  string
	State    TaskState
}

// CanBeStarted reports whether this task should be (re-)submitted for work,
// given the time the current process started.
//
// NotStarted and AttemptsWithFailure tasks can always be (re-)started.
// InProgress tasks can only be restarted if they were stored before this
// process started — meaning the worker that owned them is presumed dead.
// Complete tasks are never restarted. This check is inherently racy under
// contention between multiple workers sharing one Store; callers running a
// single scheduler instance per Store are unaffected.
func (t Task) CanBeStarted(startupTime time.Time) bool {
	switch t.State.Kind {
	case TaskNotStarted, TaskAttemptsWithFailure:
		return true
	case TaskInProgress:
		return startupTime.After(t.StoredAt)
	default:
		return false
	}
}
