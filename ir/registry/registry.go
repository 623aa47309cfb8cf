// Package registry defines the narrow lookup interfaces the evaluator and
// CFG engine consume for operators and effects. The registries themselves
// are external collaborators; this package supplies only the contract
// plus a minimal built-in operator table.
package registry

import "github.com/layeredvm/layeredvm/ir/value"

// OperatorFn is a pure transducer over values. It may return an error
// value; it must never panic (the evaluator treats a panicking fn as a
// host-level exception to be reified as DomainError).
type OperatorFn func(args ...value.Value) value.Value

// Operator describes one entry in the operator namespace table.
type Operator struct {
	Params  []string
	Returns string
	Pure    bool
	Fn      OperatorFn
}

// EffectFn additionally has access to a mutable state surface via the
// *Effects handle passed at invocation time (channels, ref cells, I/O).
type EffectFn func(eff *Effects, args ...value.Value) value.Value

// Effect describes one entry in the effect namespace table.
type Effect struct {
	Params []string
	Fn     EffectFn
}

// OperatorRegistry resolves `ns:name` to an Operator.
type OperatorRegistry interface {
	LookupOperator(ns, name string) (Operator, bool)
}

// EffectRegistry resolves an effect op name to an Effect.
type EffectRegistry interface {
	LookupEffect(op string) (Effect, bool)
}

// EffectLogEntry records one effect invocation.
type EffectLogEntry struct {
	Op   string
	Args []value.Value
}

// Effects is the mutable state surface effect handlers receive. It is a
// minimal capability handle; channel creation and I/O side effects are
// expected to be layered on top by callers (e.g. ir/async wires channel
// creation through it).
type Effects struct {
	Log           []EffectLogEntry
	CreateChannel func(variant value.ChannelVariant, bufferSize int) value.Value

	// RecordAccess/Lock/LockAcquired/Unlock, when wired by the
	// orchestrator to an async.Scheduler's detectors, let documents opt
	// individual ref-cell accesses and critical sections into race/
	// deadlock detection. Lock records an acquisition
	// attempt (Scheduler.TrackAcquire); LockAcquired confirms the grant
	// (Scheduler.TrackAcquired); a lock attempt with no matching
	// LockAcquired call models a still-blocked waiter for the deadlock
	// detector's wait-for graph. Left nil, the corresponding effects are
	// no-ops.
	RecordAccess func(location string, write bool)
	Lock         func(lock string)
	LockAcquired func(lock string)
	Unlock       func(lock string)
}

// RecordEffect appends an invocation to the effect log.
func (e *Effects) RecordEffect(op string, args []value.Value) {
	e.Log = append(e.Log, EffectLogEntry{Op: op, Args: args})
}
