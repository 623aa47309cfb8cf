package emit

import "context"

// Emitter receives observability events from CFG/async execution.
// Implementations must not block execution and must not panic; the
// engine treats Emit as fire-and-forget.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}
