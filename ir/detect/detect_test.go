package detect

import (
	"testing"
	"time"
)

func TestRaceDetectorFlagsUnorderedWriteWrite(t *testing.T) {
	r := NewRaceDetector()
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: 0})
	r.RecordAccess(Access{Task: "t2", Location: "cell1", Kind: AccessWrite, Seq: 0})
	conflicts := r.Detect()
	if len(conflicts) != 1 || conflicts[0].Kind != "W-W" {
		t.Fatalf("expected one W-W conflict, got %+v", conflicts)
	}
	if conflicts[0].Location != "cell1" {
		t.Fatalf("expected conflict location cell1, got %q", conflicts[0].Location)
	}
	tasks := map[string]bool{conflicts[0].Tasks[0]: true, conflicts[0].Tasks[1]: true}
	if !tasks["t1"] || !tasks["t2"] {
		t.Fatalf("expected conflict to name t1 and t2, got %+v", conflicts[0].Tasks)
	}
	if conflicts[0].Description == "" {
		t.Fatalf("expected a human-readable description")
	}
}

func TestRaceDetectorIgnoresOrderedAccesses(t *testing.T) {
	r := NewRaceDetector()
	r.RecordSyncPoint("t2", "t1")
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: 0})
	r.RecordAccess(Access{Task: "t2", Location: "cell1", Kind: AccessWrite, Seq: 0})
	if conflicts := r.Detect(); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for happens-before ordered accesses, got %+v", conflicts)
	}
}

func TestRaceDetectorNeverFlagsReadRead(t *testing.T) {
	r := NewRaceDetector()
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessRead, Seq: 0})
	r.RecordAccess(Access{Task: "t2", Location: "cell1", Kind: AccessRead, Seq: 0})
	if conflicts := r.Detect(); len(conflicts) != 0 {
		t.Fatalf("expected read-read to never race, got %+v", conflicts)
	}
}

func TestRaceDetectorNeverFlagsSameTask(t *testing.T) {
	r := NewRaceDetector()
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: 0})
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: 1})
	if conflicts := r.Detect(); len(conflicts) != 0 {
		t.Fatalf("expected same-task accesses to never race, got %+v", conflicts)
	}
}

// TestDeadlockDetectorFindsTwoTaskCycle exercises the classic cross-wait:
// t1 holds lockA and waits on lockB; t2 holds lockB and waits on lockA.
func TestDeadlockDetectorFindsTwoTaskCycle(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t2", "lockB")
	d.TrackLockAcquired("t2", "lockB")

	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockA")

	cycles := d.Detect()
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one cycle report, got %+v", cycles)
	}
	c := cycles[0]
	if len(c.Tasks) != 2 || len(c.Locks) != 2 {
		t.Fatalf("expected cycle to list both tasks and both locks, got %+v", c)
	}
	taskSet := map[string]bool{c.Tasks[0]: true, c.Tasks[1]: true}
	if !taskSet["t1"] || !taskSet["t2"] {
		t.Fatalf("expected cycle to contain t1 and t2, got %+v", c.Tasks)
	}
	lockSet := map[string]bool{c.Locks[0]: true, c.Locks[1]: true}
	if !lockSet["lockA"] || !lockSet["lockB"] {
		t.Fatalf("expected cycle to contain lockA and lockB, got %+v", c.Locks)
	}
}

// Releasing either lock before detection yields zero reports.
func TestDeadlockDetectorClearsOnRelease(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t2", "lockB")
	d.TrackLockAcquired("t2", "lockB")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockA")

	d.TrackLockRelease("t1", "lockA")

	if cycles := d.Detect(); len(cycles) != 0 {
		t.Fatalf("expected no cycle once a lock is released, got %+v", cycles)
	}
}

func TestDeadlockDetectorNoFalsePositiveForConsistentOrder(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquired("t1", "lockB")
	d.TrackLockRelease("t1", "lockB")
	d.TrackLockRelease("t1", "lockA")

	d.TrackLockAcquisition("t2", "lockA")
	d.TrackLockAcquired("t2", "lockA")
	d.TrackLockAcquisition("t2", "lockB")
	d.TrackLockAcquired("t2", "lockB")

	if cycles := d.Detect(); len(cycles) != 0 {
		t.Fatalf("expected no cycle for sequential, non-contending acquisitions, got %+v", cycles)
	}
}

func TestRaceDetectorDedupesRepeatedConflictPairs(t *testing.T) {
	r := NewRaceDetector()
	for i := 0; i < 3; i++ {
		r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: i})
		r.RecordAccess(Access{Task: "t2", Location: "cell1", Kind: AccessWrite, Seq: i})
	}
	conflicts := r.Detect()
	if len(conflicts) != 1 {
		t.Fatalf("expected repeated unordered writes by the same pair to collapse to one report, got %d", len(conflicts))
	}
}

func TestRaceDetectorTransitiveHappensBefore(t *testing.T) {
	r := NewRaceDetector()
	r.RecordSyncPoint("t2", "t1")
	r.RecordSyncPoint("t3", "t2")
	r.RecordAccess(Access{Task: "t1", Location: "cell1", Kind: AccessWrite, Seq: 0})
	r.RecordAccess(Access{Task: "t3", Location: "cell1", Kind: AccessWrite, Seq: 0})
	if conflicts := r.Detect(); len(conflicts) != 0 {
		t.Fatalf("expected transitive sync points to order t1 before t3, got %+v", conflicts)
	}
}

// A task re-requesting a lock it already holds deadlocks itself under
// non-reentrant lock semantics: a wait-for self-loop.
func TestDeadlockDetectorSelfLoop(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t1", "lockA")
	cycles := d.Detect()
	if len(cycles) != 1 {
		t.Fatalf("expected one self-loop cycle, got %+v", cycles)
	}
	if len(cycles[0].Tasks) != 1 || cycles[0].Tasks[0] != "t1" {
		t.Fatalf("expected the self-loop to name t1, got %+v", cycles[0].Tasks)
	}
	if len(cycles[0].Locks) != 1 || cycles[0].Locks[0] != "lockA" {
		t.Fatalf("expected the self-loop to name lockA, got %+v", cycles[0].Locks)
	}
}

func TestDeadlockDetectorDetectWithTimeoutFindsExistingCycle(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockAcquisition("t2", "lockB")
	d.TrackLockAcquired("t2", "lockB")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquisition("t2", "lockA")

	cycles := d.DetectWithTimeout(50 * time.Millisecond)
	if len(cycles) != 1 {
		t.Fatalf("expected the existing cycle to be found immediately, got %+v", cycles)
	}
	if cycles[0].Description == "" {
		t.Fatalf("expected a human-readable cycle description")
	}
}

func TestDeadlockDetectorDetectWithTimeoutExpiresEmpty(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")

	start := time.Now()
	cycles := d.DetectWithTimeout(10 * time.Millisecond)
	if cycles != nil {
		t.Fatalf("expected no cycles, got %+v", cycles)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected the detector to wait out its timeout before giving up")
	}
}

func TestDeadlockDetectorReleaseByNonHolderIsNoop(t *testing.T) {
	d := NewDeadlockDetector()
	d.TrackLockAcquisition("t1", "lockA")
	d.TrackLockAcquired("t1", "lockA")
	d.TrackLockRelease("t2", "lockA")

	d.TrackLockAcquisition("t2", "lockA")
	d.TrackLockAcquisition("t1", "lockB")
	d.TrackLockAcquired("t2", "lockB")

	// t1 waits on lockB (held by t2); t2 waits on lockA, still held by
	// t1 because the bogus release above must not have cleared it.
	cycles := d.Detect()
	if len(cycles) != 1 {
		t.Fatalf("expected the cycle to survive a release by a non-holder, got %+v", cycles)
	}
}
