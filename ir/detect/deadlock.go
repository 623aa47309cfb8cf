package detect

import (
	"fmt"
	"strings"
	"time"
)

// DeadlockDetector maintains two relations, heldBy (lockId -> taskId)
// and waitingFor (taskId -> set of lockId), and reports cycles in the wait-for graph they induce: a directed edge
// t1 -> t2 whenever t1 is waiting for a lock currently held by t2.
type DeadlockDetector struct {
	heldBy     map[string]string          // lockId -> taskId
	waitingFor map[string]map[string]bool // taskId -> set of lockId
}

func NewDeadlockDetector() *DeadlockDetector {
	return &DeadlockDetector{
		heldBy:     map[string]string{},
		waitingFor: map[string]map[string]bool{},
	}
}

// TrackLockAcquisition records that task is attempting to acquire lock
// (added to waitingFor; not yet granted).
func (d *DeadlockDetector) TrackLockAcquisition(task, lock string) {
	if d.waitingFor[task] == nil {
		d.waitingFor[task] = map[string]bool{}
	}
	d.waitingFor[task][lock] = true
}

// TrackLockAcquired records that task has been granted lock: it moves
// from waitingFor into heldBy.
func (d *DeadlockDetector) TrackLockAcquired(task, lock string) {
	if d.waitingFor[task] != nil {
		delete(d.waitingFor[task], lock)
	}
	d.heldBy[lock] = task
}

// TrackLockRelease clears heldBy for lock only if task is its current
// holder (a release by a non-holder is a no-op, never a panic).
func (d *DeadlockDetector) TrackLockRelease(task, lock string) {
	if d.heldBy[lock] == task {
		delete(d.heldBy, lock)
	}
}

// Cycle is a detected wait-for cycle: the tasks involved, the locks
// whose acquisition chains connect them, and a rendered description.
type Cycle struct {
	Tasks       []string
	Locks       []string
	Description string
}

type waitEdge struct {
	to   string
	lock string
}

func (d *DeadlockDetector) graph() map[string][]waitEdge {
	g := map[string][]waitEdge{}
	for task, locks := range d.waitingFor {
		for lock := range locks {
			holder, ok := d.heldBy[lock]
			if !ok {
				continue
			}
			// holder == task is kept: a task waiting on a lock it already
			// holds is a self-loop, itself a deadlock cycle (non-reentrant
			// lock semantics).
			g[task] = append(g[task], waitEdge{to: holder, lock: lock})
		}
	}
	return g
}

// Detect returns every wait-for cycle of size >= 2, plus self-loops (a
// task waiting on a lock it itself already holds). Each cycle's Locks
// lists the lock ids traversed along the cycle edges; Tasks lists the
// task ids in cycle order.
func (d *DeadlockDetector) Detect() []Cycle {
	g := d.graph()
	var cycles []Cycle
	visited := map[string]bool{}
	var taskStack, lockStack []string
	onStack := map[string]bool{}

	var walk func(node string)
	walk = func(node string) {
		visited[node] = true
		onStack[node] = true
		for _, e := range g[node] {
			taskStack = append(taskStack, node)
			lockStack = append(lockStack, e.lock)
			if !visited[e.to] {
				walk(e.to)
			} else if onStack[e.to] {
				cycles = append(cycles, cyclePath(taskStack, lockStack, e.to))
			}
			taskStack = taskStack[:len(taskStack)-1]
			lockStack = lockStack[:len(lockStack)-1]
		}
		onStack[node] = false
	}

	for task := range g {
		if !visited[task] {
			walk(task)
		}
	}
	return dedupeCycles(cycles)
}

// DetectWithTimeout returns as soon as a cycle is found, or once timeout
// elapses with none found.
func (d *DeadlockDetector) DetectWithTimeout(timeout time.Duration) []Cycle {
	deadline := time.Now().Add(timeout)
	for {
		if cycles := d.Detect(); len(cycles) > 0 {
			return cycles
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}

// cyclePath extracts the cyclic suffix of taskStack/lockStack starting at
// the first occurrence of start, representing the closed loop back to it.
func cyclePath(taskStack, lockStack []string, start string) Cycle {
	for i, t := range taskStack {
		if t == start {
			tasks := append([]string{}, taskStack[i:]...)
			locks := append([]string{}, lockStack[i:]...)
			return Cycle{
				Tasks: tasks,
				Locks: locks,
				Description: fmt.Sprintf("deadlock: tasks [%s] wait in a cycle through locks [%s]",
					strings.Join(tasks, ", "), strings.Join(locks, ", ")),
			}
		}
	}
	return Cycle{}
}

// dedupeCycles collapses cycles discovered from different start points
// in the same cycle down to one report per distinct task set.
func dedupeCycles(cycles []Cycle) []Cycle {
	seen := map[string]bool{}
	var out []Cycle
	for _, c := range cycles {
		key := cycleKey(c.Tasks)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func cycleKey(tasks []string) string {
	set := map[string]bool{}
	for _, t := range tasks {
		set[t] = true
	}
	ordered := make([]string, 0, len(set))
	for t := range set {
		ordered = append(ordered, t)
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j] < ordered[i] {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	key := ""
	for _, t := range ordered {
		key += t + ","
	}
	return key
}
