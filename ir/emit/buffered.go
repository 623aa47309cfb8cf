package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, organized by runID, for test
// assertions and post-execution analysis.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: map[string][]Event{}}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns a copy of the events recorded for runID, in emit order.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[runID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// Clear drops all recorded events for runID.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, runID)
}
