// Package async implements the cooperative task scheduler, channel store,
// and PIR fork/join/suspend/select/race primitives. Tasks run
// on goroutines, but a turn token serializes progress so only one task's
// code executes at a time between suspension points: the same observable
// guarantees as a single-threaded cooperative scheduler, built with Go's
// native concurrency primitives rather than a hand-rolled continuation
// machine.
package async

import (
	"sync"

	"github.com/layeredvm/layeredvm/ir/value"
)

// TaskFn is a task body. It runs to completion (or until it suspends via
// a Scheduler method) and produces the task's result.
type TaskFn func() value.Value

// Task is one spawned unit of cooperative work, identified by a
// document-unique taskId. Once finished, its result is cached: repeated
// Awaits never re-execute the body.
type Task struct {
	ID string

	mu     sync.Mutex
	status value.FutureStatus
	result value.Value
	done   chan struct{}
}

func newTask(id string) *Task {
	return &Task{ID: id, status: value.FutureStatusPending, done: make(chan struct{})}
}

// finish is idempotent: only the first call stores a result and closes
// done; later calls (which should not happen under correct scheduling)
// are no-ops rather than a panic.
func (t *Task) finish(v value.Value) {
	t.mu.Lock()
	if t.status != value.FutureStatusPending {
		t.mu.Unlock()
		return
	}
	t.result = v
	if v.IsError() {
		t.status = value.FutureStatusError
	} else {
		t.status = value.FutureStatusReady
	}
	t.mu.Unlock()
	close(t.done)
}

// Future returns the opaque handle bound to a spawn/fork target.
func (t *Task) Future() value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return value.Value{Kind: value.KindFuture, FutureHandle: value.Future{TaskID: t.ID, Status: t.status}}
}

// Result returns the cached result; only meaningful once done is closed.
func (t *Task) Result() value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}
