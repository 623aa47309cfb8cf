// Package store persists run checkpoints: a snapshot of a CFG run's
// current block and bindings, named or automatic, so a run can be
// inspected or branched from later. Rehydrating a checkpoint back into a
// live Engine run is out of scope; checkpoints here are for inspection,
// branching, and named save points, not full-fidelity resumption.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/layeredvm/layeredvm/ir/value"
)

// ErrNotFound is returned when a requested run or checkpoint label does
// not exist.
var ErrNotFound = errors.New("not found")

// Binding is a JSON-safe projection of one CFG value binding: its kind
// tag plus a human-readable rendering, not a fully round-trippable
// encoding of closures, futures or ref cells.
type Binding struct {
	Kind string `json:"kind"`
	Repr string `json:"repr"`
}

// Checkpoint is a snapshot of one CFG run at a point between block
// executions.
type Checkpoint struct {
	RunID     string             `json:"run_id"`
	Step      int                `json:"step"`
	Block     string             `json:"block"`
	Vals      map[string]Binding `json:"vals"`
	Label     string             `json:"label,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Snapshot projects a CFG engine's value bindings into a JSON-safe map
// suitable for Checkpoint.Vals.
func Snapshot(vals map[string]value.Value) map[string]Binding {
	out := make(map[string]Binding, len(vals))
	for id, v := range vals {
		out[id] = Binding{Kind: string(v.Kind), Repr: v.Render()}
	}
	return out
}

// Store persists and retrieves checkpoints. Implementations must be
// safe for concurrent use.
type Store interface {
	// Save persists cp, indexed by RunID+Step and, if Label is set,
	// also by RunID+Label.
	Save(ctx context.Context, cp Checkpoint) error

	// LoadLatest returns the highest-step checkpoint saved for runID.
	// Returns ErrNotFound if no checkpoint exists for that run.
	LoadLatest(ctx context.Context, runID string) (Checkpoint, error)

	// LoadLabel returns the checkpoint saved under runID+label.
	// Returns ErrNotFound if no such label exists.
	LoadLabel(ctx context.Context, runID, label string) (Checkpoint, error)
}
