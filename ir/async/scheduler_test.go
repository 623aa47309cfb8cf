package async

import (
	"testing"

	"github.com/layeredvm/layeredvm/ir/value"
)

func TestAwaitCachesResultAndNeverReRuns(t *testing.T) {
	s := NewScheduler(ModeParallel, 0)
	s.EnterRoot()
	defer s.ExitRoot()
	runs := 0
	task := s.Spawn(func() value.Value {
		runs++
		return value.Int(42)
	})
	first := s.Await(task.ID)
	second := s.Await(task.ID)
	if !first.Equal(second) {
		t.Fatalf("expected equal results across repeated awaits, got %+v and %+v", first, second)
	}
	if runs != 1 {
		t.Fatalf("expected the task body to run exactly once, ran %d times", runs)
	}
}

func TestSequentialModeRunsEachTaskToCompletionBeforeNext(t *testing.T) {
	s := NewScheduler(ModeSequential, 0)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		s.Spawn(func() value.Value {
			order = append(order, i)
			return value.Int(int64(i))
		})
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("expected strictly sequential spawn order, got %v", order)
	}
}

func TestSelectTimeoutWithoutFallback(t *testing.T) {
	s := NewScheduler(ModeParallel, 0)
	s.EnterRoot()
	defer s.ExitRoot()
	ch := s.CreateChannel(value.ChannelMPSC, 0)
	blocked := s.Spawn(func() value.Value {
		c, _ := s.LookupChannel(ch.ChannelH.ID)
		return s.ChannelRecv(c)
	})
	got := s.Select([]*Task{blocked}, 10, nil, false)
	if !got.IsError() || got.Err.Code != value.CodeSelectTimeout {
		t.Fatalf("expected SelectTimeout, got %+v", got)
	}
}

func TestSelectTimeoutWithFallback(t *testing.T) {
	s := NewScheduler(ModeParallel, 0)
	s.EnterRoot()
	defer s.ExitRoot()
	ch := s.CreateChannel(value.ChannelMPSC, 0)
	blocked := s.Spawn(func() value.Value {
		c, _ := s.LookupChannel(ch.ChannelH.ID)
		return s.ChannelRecv(c)
	})
	fallback := func() value.Value { return value.Int(7) }
	got := s.Select([]*Task{blocked}, 10, fallback, false)
	if got.Kind != value.KindInt || got.Int != 7 {
		t.Fatalf("expected fallback int(7), got %+v", got)
	}
}

func TestRaceReturnsFirstCompletedTask(t *testing.T) {
	s := NewScheduler(ModeParallel, 0)
	s.EnterRoot()
	defer s.ExitRoot()
	blockerCh := s.CreateChannel(value.ChannelMPSC, 0)
	slow := s.Spawn(func() value.Value {
		c, _ := s.LookupChannel(blockerCh.ChannelH.ID)
		return s.ChannelRecv(c) // suspends, releasing the turn, forever (no sender)
	})
	fast := s.Spawn(func() value.Value { return value.Int(2) })
	got := s.Race([]*Task{slow, fast})
	if got.Kind != value.KindInt || got.Int != 2 {
		t.Fatalf("expected the fast task's result (2), got %+v", got)
	}
}

func TestCheckGlobalStepsEnforcesBudget(t *testing.T) {
	s := NewScheduler(ModeSequential, 2)
	if v := s.CheckGlobalSteps(); v.IsError() {
		t.Fatalf("first step should not error: %+v", v)
	}
	if v := s.CheckGlobalSteps(); v.IsError() {
		t.Fatalf("second step should not error: %+v", v)
	}
	if v := s.CheckGlobalSteps(); !v.IsError() || v.Err.Code != value.CodeNonTermination {
		t.Fatalf("expected NonTermination once the global budget is exceeded, got %+v", v)
	}
}
