// Package state holds BundleState (C3): the shared, reference-counted
// payload a Bundle snapshots read-only and a BundleBuilder mutates
// during reconfigure. Every mutator returns a new State rather than
// changing its receiver. Cloning is not O(1): Clone copies the
// top-level Blocks/IndexDefs slices and the Views map, so its cost grows
// with their length; the Block values and the Schema are shared.
package state

import (
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// RowCount is an estimate of a bundle's row count, flagged approximate
// whenever it was derived from adapter ApproxRowCount rather than an
// exact scan (spec.md §4.3).
type RowCount struct {
	Value       uint64
	Approximate bool
}

// State is the immutable-by-convention snapshot Bundle and
// BundleBuilder both read. Builder holds a *State it treats as
// copy-on-write: every apply() produces a new *State rather than
// mutating the one a concurrently-read Bundle might still hold.
type State struct {
	Schema      types.Schema
	Name        string
	Description string
	RowCount    RowCount
	Blocks      []*block.Block
	Views       map[string]types.ObjectId
	IndexDefs   []types.IndexDefinition
	// SourceDefined reports whether DefineSource has already run against
	// this bundle — one source per bundle in this module's simplified
	// model (spec.md's distillation collapsed the original's multi-pack
	// sources down to Bundle-level attach).
	SourceDefined bool
}

// New returns an empty State for a fresh bundle.
func New() *State {
	return &State{
		Schema: types.NewSchema(),
		Views:  map[string]types.ObjectId{},
	}
}

// Clone returns a shallow copy of s: slices and maps are copied at the
// top level (so appends on the clone never alias s), but Block/Schema
// values within them are shared. The copy takes time linear in the
// number of blocks, index definitions and views.
func (s *State) Clone() *State {
	next := &State{
		Schema:        s.Schema,
		Name:          s.Name,
		Description:   s.Description,
		RowCount:      s.RowCount,
		SourceDefined: s.SourceDefined,
	}
	next.Blocks = make([]*block.Block, len(s.Blocks))
	copy(next.Blocks, s.Blocks)
	next.Views = make(map[string]types.ObjectId, len(s.Views))
	for k, v := range s.Views {
		next.Views[k] = v
	}
	next.IndexDefs = make([]types.IndexDefinition, len(s.IndexDefs))
	copy(next.IndexDefs, s.IndexDefs)
	return next
}

// BlockByID finds a block by its stable identity.
func (s *State) BlockByID(id types.ObjectId) (*block.Block, bool) {
	for _, b := range s.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// IndexDefByColumn finds the IndexDefinition for column, if any exists.
func (s *State) IndexDefByColumn(column string) (types.IndexDefinition, bool) {
	for _, d := range s.IndexDefs {
		if d.Column == column {
			return d, true
		}
	}
	return types.IndexDefinition{}, false
}

// IndexDefByID finds an IndexDefinition by its id.
func (s *State) IndexDefByID(id types.ObjectId) (types.IndexDefinition, bool) {
	for _, d := range s.IndexDefs {
		if d.ID == id {
			return d, true
		}
	}
	return types.IndexDefinition{}, false
}

// WithIndexDef replaces (by id) or appends an IndexDefinition, returning
// a new State.
func (s *State) WithIndexDef(d types.IndexDefinition) *State {
	next := s.Clone()
	for i, existing := range next.IndexDefs {
		if existing.ID == d.ID {
			next.IndexDefs[i] = d
			return next
		}
	}
	next.IndexDefs = append(next.IndexDefs, d)
	return next
}

// WithoutIndexDef removes the IndexDefinition with the given id.
func (s *State) WithoutIndexDef(id types.ObjectId) *State {
	next := s.Clone()
	out := next.IndexDefs[:0]
	for _, d := range next.IndexDefs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	next.IndexDefs = out
	return next
}

// ExistingIndexColumns returns the column names currently indexed —
// the ExistingIndexes callback internal/indexadvisor.Advisor consumes.
func (s *State) ExistingIndexColumns() []string {
	out := make([]string, len(s.IndexDefs))
	for i, d := range s.IndexDefs {
		out[i] = d.Column
	}
	return out
}
