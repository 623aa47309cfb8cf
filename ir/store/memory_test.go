package store

import (
	"context"
	"errors"
	"testing"

	"github.com/layeredvm/layeredvm/ir/value"
)

func TestMemStoreLoadLatestPicksHighestStep(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	if err := m.Save(ctx, Checkpoint{RunID: "r1", Step: 1, Block: "a"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := m.Save(ctx, Checkpoint{RunID: "r1", Step: 3, Block: "c"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := m.Save(ctx, Checkpoint{RunID: "r1", Step: 2, Block: "b"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := m.LoadLatest(ctx, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Step != 3 || got.Block != "c" {
		t.Fatalf("expected the step=3 checkpoint, got %+v", got)
	}
}

func TestMemStoreLoadLatestNotFound(t *testing.T) {
	m := NewMemStore()
	_, err := m.LoadLatest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreLoadLabelRoundTrip(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	cp := Checkpoint{RunID: "r1", Step: 5, Block: "x", Label: "checkpoint-a"}
	if err := m.Save(ctx, cp); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := m.LoadLabel(ctx, "r1", "checkpoint-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Block != "x" {
		t.Fatalf("expected block x, got %+v", got)
	}
	if _, err := m.LoadLabel(ctx, "r1", "no-such-label"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown label, got %v", err)
	}
}

func TestSnapshotProjectsBindings(t *testing.T) {
	vals := map[string]value.Value{
		"x": value.Int(5),
		"y": value.Bool(true),
	}
	got := Snapshot(vals)
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
	if got["x"].Kind != string(value.KindInt) {
		t.Fatalf("expected kind int for x, got %+v", got["x"])
	}
	if got["y"].Kind != string(value.KindBool) {
		t.Fatalf("expected kind bool for y, got %+v", got["y"])
	}
}
