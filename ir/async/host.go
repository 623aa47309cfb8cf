package async

import (
	"github.com/layeredvm/layeredvm/ir/docmodel"
	"github.com/layeredvm/layeredvm/ir/eval"
	"github.com/layeredvm/layeredvm/ir/value"
)

// Host adapts a Scheduler to the narrow eval.AsyncHost facade the
// expression evaluator consumes for PIR forms that were not lowered to a
// dedicated LIR instruction.
type Host struct {
	Sched *Scheduler
}

func NewHost(s *Scheduler) *Host { return &Host{Sched: s} }

func (h *Host) Spawn(ev *eval.Evaluator, entry *docmodel.Expr, env *eval.Environment, _ []value.Value) value.Value {
	t := h.Sched.Spawn(func() value.Value {
		return ev.Eval(entry, env)
	})
	return t.Future()
}

func (h *Host) Await(future value.Value) value.Value {
	if future.Kind != value.KindFuture {
		return value.Err(value.CodeTypeError, "await: expected a future")
	}
	return h.Sched.Await(future.FutureHandle.TaskID)
}

func (h *Host) Channel(variant value.ChannelVariant, bufferSize int) value.Value {
	return h.Sched.CreateChannel(variant, bufferSize)
}

func (h *Host) ChannelSend(channel, val value.Value) value.Value {
	ch, err := h.resolveChannel(channel)
	if err.IsError() {
		return err
	}
	return h.Sched.ChannelSend(ch, val)
}

func (h *Host) ChannelRecv(channel value.Value) value.Value {
	ch, err := h.resolveChannel(channel)
	if err.IsError() {
		return err
	}
	return h.Sched.ChannelRecv(ch)
}

func (h *Host) resolveChannel(channel value.Value) (*Channel, value.Value) {
	if channel.Kind != value.KindChannel {
		return nil, value.Err(value.CodeTypeError, "channel operation: expected a channel")
	}
	ch, ok := h.Sched.LookupChannel(channel.ChannelH.ID)
	if !ok {
		return nil, value.Errf(value.CodeDomainError, "unknown channel %q", channel.ChannelH.ID)
	}
	return ch, value.Value{}
}

func (h *Host) futureTasks(futures []value.Value) ([]*Task, value.Value) {
	tasks := make([]*Task, 0, len(futures))
	for _, f := range futures {
		if f.Kind != value.KindFuture {
			return nil, value.Err(value.CodeTypeError, "expected a future")
		}
		t, ok := h.Sched.lookupTask(f.FutureHandle.TaskID)
		if !ok {
			return nil, value.Errf(value.CodeDomainError, "unknown task %q", f.FutureHandle.TaskID)
		}
		tasks = append(tasks, t)
	}
	return tasks, value.Value{}
}

func (h *Host) Select(futures []value.Value, timeoutMS int, fallback func() value.Value, returnIndex bool) value.Value {
	tasks, errV := h.futureTasks(futures)
	if errV.IsError() {
		return errV
	}
	return h.Sched.Select(tasks, timeoutMS, fallback, returnIndex)
}

func (h *Host) Race(futures []value.Value) value.Value {
	tasks, errV := h.futureTasks(futures)
	if errV.IsError() {
		return errV
	}
	return h.Sched.Race(tasks)
}
