package async

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/layeredvm/layeredvm/ir/detect"
	"github.com/layeredvm/layeredvm/ir/metrics"
	"github.com/layeredvm/layeredvm/ir/value"
)

// Mode selects one of the four selectable scheduling disciplines.
type Mode string

const (
	ModeSequential   Mode = "sequential"
	ModeParallel     Mode = "parallel"
	ModeBreadthFirst Mode = "breadth-first"
	ModeDepthFirst   Mode = "depth-first"
)

// Scheduler is the single-threaded-cooperative task/channel runtime.
// Exactly one task (or the root, non-task execution) holds the
// turn at a time; suspension points (Await, channel Send/Recv, Select,
// Race) release it and reacquire on resume.
type Scheduler struct {
	mode Mode
	turn *turnQueue

	mu       sync.Mutex
	tasks    map[string]*Task
	channels map[string]*Channel
	current  string

	globalSteps    int64
	maxGlobalSteps int64

	RunID    string
	Metrics  metrics.Metrics
	Detector *detect.RaceDetector
	Deadlock *detect.DeadlockDetector

	seqMu sync.Mutex
	seq   map[string]int
}

// NewScheduler constructs a scheduler in the given mode with a global
// step budget (checked via CheckGlobalSteps).
func NewScheduler(mode Mode, maxGlobalSteps int) *Scheduler {
	return &Scheduler{
		mode:           mode,
		turn:           newTurnQueue(mode),
		tasks:          map[string]*Task{},
		channels:       map[string]*Channel{},
		maxGlobalSteps: int64(maxGlobalSteps),
		Metrics:        metrics.NopMetrics{},
		seq:            map[string]int{},
	}
}

// RecordAccess feeds a memory access by the current task into the race
// detector, if one is attached. No-op otherwise.
func (s *Scheduler) RecordAccess(location string, write bool) {
	if s.Detector == nil {
		return
	}
	task := s.CurrentTaskID()
	s.seqMu.Lock()
	s.seq[task]++
	n := s.seq[task]
	s.seqMu.Unlock()
	kind := detect.AccessRead
	if write {
		kind = detect.AccessWrite
	}
	s.Detector.RecordAccess(detect.Access{Task: task, Location: location, Kind: kind, Seq: n})
}

// TrackAcquire/TrackAcquired/TrackRelease feed the current task's lock
// acquisitions into the deadlock detector, if one is attached. No-ops
// otherwise. The cooperative scheduler has no real blocking lock
// primitive (only one task ever runs at a time), so the document itself
// decides when an attempt (TrackAcquire) is followed by a grant
// (TrackAcquired, via the `lockAcquired` effect); an attempt a document
// leaves unconfirmed models a still-blocked waiter for the detector's
// wait-for graph.
func (s *Scheduler) TrackAcquire(lock string) {
	if s.Deadlock == nil {
		return
	}
	s.Deadlock.TrackLockAcquisition(s.CurrentTaskID(), lock)
}

func (s *Scheduler) TrackAcquired(lock string) {
	if s.Deadlock == nil {
		return
	}
	s.Deadlock.TrackLockAcquired(s.CurrentTaskID(), lock)
}

func (s *Scheduler) TrackRelease(lock string) {
	if s.Deadlock == nil {
		return
	}
	s.Deadlock.TrackLockRelease(s.CurrentTaskID(), lock)
}

func (s *Scheduler) freshID() string { return uuid.NewString() }

// EnterRoot acquires the turn for the root (non-task) execution. Any
// caller driving the scheduler from outside a spawned task (the CFG
// engine's main loop, the orchestrator's prepass) must bracket that
// execution with EnterRoot/ExitRoot so the single-runner invariant
// holds for root code too, not just for spawned tasks. Suspension
// points release and reacquire the turn symmetrically for root and task
// callers alike. No-op in sequential mode, where spawned tasks run
// inline and nothing ever interleaves.
func (s *Scheduler) EnterRoot() {
	if s.mode != ModeSequential {
		s.turn.acquire()
	}
}

// ExitRoot releases the turn acquired by EnterRoot.
func (s *Scheduler) ExitRoot() {
	if s.mode != ModeSequential {
		s.turn.release()
	}
}

// CheckGlobalSteps increments the cross-task step counter and reports
// NonTermination once the global budget is exceeded.
func (s *Scheduler) CheckGlobalSteps() value.Value {
	n := atomic.AddInt64(&s.globalSteps, 1)
	if s.maxGlobalSteps > 0 && n > s.maxGlobalSteps {
		return value.Err(value.CodeNonTermination, "global step budget exceeded")
	}
	return value.Void()
}

// GlobalSteps reports the cross-task step count so far.
func (s *Scheduler) GlobalSteps() int64 {
	return atomic.LoadInt64(&s.globalSteps)
}

// ActiveTaskCount reports tasks that have not yet finished.
func (s *Scheduler) ActiveTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		select {
		case <-t.done:
		default:
			n++
		}
	}
	return n
}

// CurrentTaskID returns the id of whichever task currently holds the
// turn, or "" for the root execution.
func (s *Scheduler) CurrentTaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) setCurrent(id string) (prev string) {
	s.mu.Lock()
	prev = s.current
	s.current = id
	s.mu.Unlock()
	return prev
}

func (s *Scheduler) runGuarded(fn TaskFn) (result value.Value) {
	defer func() {
		if r := recover(); r != nil {
			result = value.Errf(value.CodeDomainError, "task panic: %v", r)
		}
	}()
	return fn()
}

// Spawn creates a task under a fresh document-unique id.
func (s *Scheduler) Spawn(fn TaskFn) *Task {
	return s.SpawnWithID(s.freshID(), fn)
}

// SpawnWithID creates a task under an explicit id, used by fork branches
// whose taskId is named in the document.
func (s *Scheduler) SpawnWithID(id string, fn TaskFn) *Task {
	t := newTask(id)
	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	if s.mode == ModeSequential {
		prev := s.setCurrent(id)
		v := s.runGuarded(fn)
		s.setCurrent(prev)
		t.finish(v)
		return t
	}

	s.Metrics.SetInflightTasks(s.RunID, s.ActiveTaskCount()+1)
	go func() {
		s.turn.acquire()
		s.setCurrent(id)
		v := s.runGuarded(fn)
		t.finish(v)
		s.setCurrent("")
		s.Metrics.SetInflightTasks(s.RunID, s.ActiveTaskCount())
		s.turn.release()
	}()
	return t
}

func (s *Scheduler) lookupTask(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Await resolves a task's result, suspending the calling task (releasing
// the turn) if the result is not yet ready. Repeated awaits on a
// finished task never re-run its body.
func (s *Scheduler) Await(taskID string) value.Value {
	t, ok := s.lookupTask(taskID)
	if !ok {
		return value.Errf(value.CodeDomainError, "await: unknown task %q", taskID)
	}
	select {
	case <-t.done:
		s.recordHappensBefore(taskID)
		return t.Result()
	default:
	}
	s.suspendWhile(func() { <-t.done })
	s.recordHappensBefore(taskID)
	return t.Result()
}

// recordHappensBefore asserts that the awaited task happens-before the
// currently running one, feeding the race detector's happens-before
// closure.
func (s *Scheduler) recordHappensBefore(before string) {
	if s.Detector == nil {
		return
	}
	after := s.CurrentTaskID()
	if after == "" || after == before {
		return
	}
	s.Detector.RecordSyncPoint(after, before)
}

// CreateChannel allocates a channel under a fresh document-unique id.
func (s *Scheduler) CreateChannel(variant value.ChannelVariant, bufferSize int) value.Value {
	id := s.freshID()
	c := newChannel(id, variant, bufferSize)
	s.mu.Lock()
	s.channels[id] = c
	s.mu.Unlock()
	return c.handle()
}

// LookupChannel resolves a channel id to its runtime backing.
func (s *Scheduler) LookupChannel(id string) (*Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[id]
	return c, ok
}

// suspendWhile releases the turn for the duration of fn (a blocking
// wait), then reacquires it and restores the caller's task id as
// current: another task will have overwritten it while it held the
// turn, and access/lock attribution after the resume must charge the
// resumed task, not whoever ran last.
func (s *Scheduler) suspendWhile(fn func()) {
	if s.mode == ModeSequential {
		fn()
		return
	}
	me := s.CurrentTaskID()
	s.turn.release()
	fn()
	s.turn.acquire()
	s.setCurrent(me)
}

// ChannelSend delivers v, blocking (suspending) if the channel is
// unbuffered/full, or fanning out to every current subscriber if ch is a
// broadcast channel.
func (s *Scheduler) ChannelSend(ch *Channel, v value.Value) value.Value {
	if ch.variant == value.ChannelBroadcast {
		ch.broadcast(v)
		return value.Void()
	}
	s.suspendWhile(func() { ch.ch <- v })
	return value.Void()
}

// ChannelRecv reads the next value, blocking (suspending) if none is
// available yet.
func (s *Scheduler) ChannelRecv(ch *Channel) value.Value {
	if ch.variant == value.ChannelBroadcast {
		sub := ch.subscribe()
		var v value.Value
		s.suspendWhile(func() { v = <-sub })
		ch.unsubscribe(sub)
		return v
	}
	var v value.Value
	s.suspendWhile(func() { v = <-ch.ch })
	return v
}

// ChannelTrySend is the non-blocking variant; returns whether the send
// succeeded.
func (s *Scheduler) ChannelTrySend(ch *Channel, v value.Value) value.Value {
	if ch.variant == value.ChannelBroadcast {
		ch.broadcast(v)
		return value.Bool(true)
	}
	select {
	case ch.ch <- v:
		return value.Bool(true)
	default:
		return value.Bool(false)
	}
}

// ChannelTryRecv is the non-blocking variant; returns an option, empty if
// nothing was available.
func (s *Scheduler) ChannelTryRecv(ch *Channel) value.Value {
	if ch.variant == value.ChannelBroadcast {
		sub := ch.subscribe()
		defer ch.unsubscribe(sub)
		select {
		case v := <-sub:
			return value.SomeOption(v)
		default:
			return value.NoneOption()
		}
	}
	select {
	case v := <-ch.ch:
		return value.SomeOption(v)
	default:
		return value.NoneOption()
	}
}

// Select races the given tasks (plus an optional timeout) and returns the
// first to complete, or the fallback/SelectTimeout error if the timeout
// elapses first. Losing tasks are not cancelled; they keep
// running to completion and their results are discarded.
func (s *Scheduler) Select(tasks []*Task, timeoutMS int, fallback func() value.Value, returnIndex bool) value.Value {
	if len(tasks) == 0 {
		return value.Err(value.CodeDomainError, "select: no futures provided")
	}
	cases := make([]reflect.SelectCase, 0, len(tasks)+1)
	for _, t := range tasks {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(t.done)})
	}
	if timeoutMS > 0 {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(time.After(time.Duration(timeoutMS) * time.Millisecond))})
	}
	var chosen int
	s.suspendWhile(func() { chosen, _, _ = reflect.Select(cases) })

	if timeoutMS > 0 && chosen == len(tasks) {
		if fallback != nil {
			return fallback()
		}
		return value.Err(value.CodeSelectTimeout, "select: timed out waiting for futures")
	}
	winner := tasks[chosen]
	s.recordHappensBefore(winner.ID)
	if returnIndex {
		v := winner.Result()
		return value.Value{Kind: value.KindSelectResult, Select: &value.SelectResult{Index: int32(chosen), Value: v}}
	}
	return winner.Result()
}

// Race returns the first of tasks to complete; has no timeout.
func (s *Scheduler) Race(tasks []*Task) value.Value {
	if len(tasks) == 0 {
		return value.Err(value.CodeDomainError, "race: no tasks provided")
	}
	cases := make([]reflect.SelectCase, len(tasks))
	for i, t := range tasks {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(t.done)}
	}
	var chosen int
	s.suspendWhile(func() { chosen, _, _ = reflect.Select(cases) })
	s.recordHappensBefore(tasks[chosen].ID)
	return tasks[chosen].Result()
}
