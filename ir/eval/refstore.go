package eval

import "github.com/layeredvm/layeredvm/ir/value"

// RefStore holds the ref cells allocated during evaluation, keyed by the
// target name used in `refCell`/`deref`/`assign` expressions and the
// `assignRef` CFG instruction. Ref cells are the only mutable, identity-
// bearing value in the data model: allocated once, mutated
// thereafter, never copy-on-write.
type RefStore struct {
	cells map[string]*value.RefCell
}

// NewRefStore creates an empty ref-cell store.
func NewRefStore() *RefStore {
	return &RefStore{cells: map[string]*value.RefCell{}}
}

// Allocate creates the cell for target on first write, initialized to
// void; subsequent calls are no-ops and return the existing cell.
func (s *RefStore) Allocate(target string) *value.RefCell {
	if c, ok := s.cells[target]; ok {
		return c
	}
	c := &value.RefCell{ID: target, Value: value.Void()}
	s.cells[target] = c
	return c
}

// Get reads the current value of target, allocating it (as void) if it
// does not yet exist so `deref` on an unwritten cell is well-defined.
func (s *RefStore) Get(target string) value.Value {
	return s.Allocate(target).Value
}

// Set mutates target in place, allocating it first if necessary.
func (s *RefStore) Set(target string, v value.Value) {
	s.Allocate(target).Value = v
}
