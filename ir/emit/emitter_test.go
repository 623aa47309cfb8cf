package emit

import (
	"context"
	"testing"
)

func TestBufferedEmitterRecordsInOrder(t *testing.T) {
	e := NewBufferedEmitter()
	e.Emit(Event{RunID: "r1", Step: 1, Msg: "block_enter"})
	e.Emit(Event{RunID: "r1", Step: 2, Msg: "block_exit"})
	e.Emit(Event{RunID: "r2", Step: 1, Msg: "block_enter"})

	hist := e.History("r1")
	if len(hist) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(hist))
	}
	if hist[0].Msg != "block_enter" || hist[1].Msg != "block_exit" {
		t.Fatalf("events out of order: %+v", hist)
	}
	if len(e.History("r2")) != 1 {
		t.Fatalf("expected 1 event for r2")
	}

	e.Clear("r1")
	if len(e.History("r1")) != 0 {
		t.Fatalf("expected r1 history cleared")
	}
}

func TestNullEmitterDiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{Msg: "whatever"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "a"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
