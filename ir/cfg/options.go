package cfg

import (
	"github.com/layeredvm/layeredvm/ir/async"
	"github.com/layeredvm/layeredvm/ir/emit"
	"github.com/layeredvm/layeredvm/ir/metrics"
	"github.com/layeredvm/layeredvm/ir/store"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMaxSteps overrides the default step budget.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.MaxSteps = n }
}

// WithEmitter wires an observability sink for block/instruction events.
func WithEmitter(em emit.Emitter) Option {
	return func(e *Engine) { e.Emit = em }
}

// WithMetrics wires Prometheus-style instrumentation.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) { e.Metrics = m }
}

// WithRunID sets the identifier threaded through emitted events and
// metric labels.
func WithRunID(id string) Option {
	return func(e *Engine) { e.RunID = id }
}

// WithAsync attaches the async runtime, enabling PIR instructions/
// terminators (spawn/channelOp/await, fork/join/suspend).
func WithAsync(s *async.Scheduler) Option {
	return func(e *Engine) { e.Async = s }
}

// WithStore attaches a checkpoint store; when set, the engine saves a
// snapshot after every block exit.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.Store = s }
}
