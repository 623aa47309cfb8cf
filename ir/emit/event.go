// Package emit provides event emission and observability for CFG/async
// execution, generalized from a single workflow-node notion of "event"
// to the run, block-exit and effect events the CFG engine produces.
package emit

// Event is one observability event emitted during CFG or async execution.
type Event struct {
	// RunID identifies the execution that emitted this event.
	RunID string

	// Step is the sequential block-step number (1-indexed). Zero for
	// run-level events (start, complete, error).
	Step int

	// BlockID identifies which block emitted this event; empty for
	// run-level events.
	BlockID string

	// TaskID identifies the async task this event belongs to; empty for
	// the root (non-async) execution.
	TaskID string

	// Msg is a short, machine-greppable event name. The CFG engine emits
	// "run_start", "block_exit", "effect" and "run_complete".
	Msg string

	// Meta carries event-specific structured data (e.g. "entry" on
	// run_start, "status" on block_exit/run_complete, "op" on effect).
	Meta map[string]interface{}
}
