package store

import (
	"context"
	"errors"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreSaveLoadLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 1, Block: "a", Vals: map[string]Binding{}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 3, Block: "c", Vals: map[string]Binding{}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 2, Block: "b", Vals: map[string]Binding{}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if got.Step != 3 || got.Block != "c" {
		t.Fatalf("expected the step=3 checkpoint, got %+v", got)
	}
}

func TestSQLiteStoreLoadLatestNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.LoadLatest(context.Background(), "nonexistent-run")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreSaveUpsertsOnConflictingStep(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 1, Block: "first", Vals: map[string]Binding{}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 1, Block: "overwritten", Vals: map[string]Binding{}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if got.Block != "overwritten" {
		t.Fatalf("expected the conflicting save to overwrite the row, got %+v", got)
	}
}

func TestSQLiteStoreLoadLabelRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	vals := map[string]Binding{"x": {Kind: "int", Repr: "5"}}
	if err := s.Save(ctx, Checkpoint{RunID: "run-1", Step: 1, Block: "a", Vals: vals, Label: "checkpoint-a"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := s.LoadLabel(ctx, "run-1", "checkpoint-a")
	if err != nil {
		t.Fatalf("LoadLabel failed: %v", err)
	}
	if got.Vals["x"].Repr != "5" {
		t.Fatalf("expected vals to round-trip through JSON, got %+v", got.Vals)
	}
	if _, err := s.LoadLabel(ctx, "run-1", "no-such-label"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown label, got %v", err)
	}
}
