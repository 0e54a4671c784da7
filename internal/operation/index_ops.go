package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

const (
	TypeCreateIndex = "createIndex"
	TypeIndexBlocks = "indexBlocks"
	TypeDropIndex   = "dropIndex"
)

// CreateIndex declares a new, empty column index (spec.md §3
// "IndexDefinition"). The physical bytes don't exist until a later
// IndexBlocks covers some blocks.
type CreateIndex struct {
	Type_  string `yaml:"type"`
	Column string `yaml:"column"`
	ID     string `yaml:"id"`
}

func (o *CreateIndex) Type() string { return TypeCreateIndex }

func (o *CreateIndex) Check(s *state.State) error {
	if o.Column == "" {
		return bberrors.New(bberrors.Validation, "CreateIndex.Check", "column must not be empty")
	}
	if !s.Schema.Has(o.Column) {
		return bberrors.New(bberrors.Validation, "CreateIndex.Check", "unknown column").
			WithDetails(map[string]string{"column": o.Column})
	}
	if _, ok := s.IndexDefByColumn(o.Column); ok {
		return bberrors.New(bberrors.Validation, "CreateIndex.Check", "column already indexed").
			WithDetails(map[string]string{"column": o.Column})
	}
	if o.ID == "" {
		return bberrors.New(bberrors.Validation, "CreateIndex.Check", "id must not be empty")
	}
	return nil
}

func (o *CreateIndex) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	return s.WithIndexDef(types.IndexDefinition{ID: types.ObjectId(o.ID), Column: o.Column}), nil
}

func (o *CreateIndex) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}

// IndexBlocks builds the physical column index over the named blocks
// and folds the resulting coverage into the IndexDefinition (spec.md
// §4.7). LayoutPath fixes the storage location so replaying this
// operation later rebuilds to the same path rather than allocating a
// new one. Cardinality is recorded for observability only — C7 always
// recomputes selectivity from the built file, never trusts this field.
type IndexBlocks struct {
	Type_       string                   `yaml:"type"`
	IndexID     string                   `yaml:"indexId"`
	Blocks      []types.VersionedBlockId `yaml:"blocks"`
	LayoutPath  string                   `yaml:"layoutPath"`
	Cardinality uint64                   `yaml:"cardinality"`
}

func (o *IndexBlocks) Type() string { return TypeIndexBlocks }

func (o *IndexBlocks) Check(s *state.State) error {
	def, ok := s.IndexDefByID(types.ObjectId(o.IndexID))
	if !ok {
		return bberrors.New(bberrors.Validation, "IndexBlocks.Check", "unknown index id").
			WithDetails(map[string]string{"index_id": o.IndexID})
	}
	if len(o.Blocks) == 0 {
		return bberrors.New(bberrors.Validation, "IndexBlocks.Check", "blocks must not be empty")
	}
	if o.LayoutPath == "" {
		return bberrors.New(bberrors.Validation, "IndexBlocks.Check", "layoutPath must not be empty")
	}
	for _, v := range o.Blocks {
		if _, ok := s.BlockByID(v.BlockID); !ok {
			return bberrors.New(bberrors.Validation, "IndexBlocks.Check", "unknown block").
				WithDetails(map[string]string{"block_id": v.BlockID.String()})
		}
		if def.Covers(v) {
			return bberrors.New(bberrors.Validation, "IndexBlocks.Check", "block already indexed").
				WithDetails(map[string]string{"block_id": v.BlockID.String()})
		}
	}
	return nil
}

func (o *IndexBlocks) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	def, _ := s.IndexDefByID(types.ObjectId(o.IndexID))

	covered := make([]*block.Block, 0, len(o.Blocks))
	for _, v := range o.Blocks {
		b, _ := s.BlockByID(v.BlockID)
		covered = append(covered, b)
	}
	cbs, err := rc.Indexes.BuildAndStoreAt(ctx, o.LayoutPath, def.Column, covered)
	if err != nil {
		return nil, err
	}
	for _, cb := range cbs {
		def = def.WithCovered(cb)
	}
	return s.WithIndexDef(def), nil
}

func (o *IndexBlocks) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}

// DropIndex removes an index definition and deletes every physical index
// file it covered. A column indexed across several IndexBlocks operations
// can have several distinct covered paths; all of them go.
type DropIndex struct {
	Type_ string `yaml:"type"`
	ID    string `yaml:"id"`
}

func (o *DropIndex) Type() string { return TypeDropIndex }

func (o *DropIndex) Check(s *state.State) error {
	if _, ok := s.IndexDefByID(types.ObjectId(o.ID)); !ok {
		return bberrors.New(bberrors.Validation, "DropIndex.Check", "unknown index id").
			WithDetails(map[string]string{"index_id": o.ID})
	}
	return nil
}

func (o *DropIndex) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	def, ok := s.IndexDefByID(types.ObjectId(o.ID))
	if ok {
		if err := rc.Indexes.Delete(ctx, coveredPaths(def)); err != nil {
			return nil, err
		}
	}
	return s.WithoutIndexDef(types.ObjectId(o.ID)), nil
}

// coveredPaths returns the distinct storage paths def's covered blocks
// reference, so dropping an index deletes each backing file once even
// when multiple blocks share a path from the same IndexBlocks call.
func coveredPaths(def types.IndexDefinition) []string {
	seen := make(map[string]bool, len(def.IndexedBlocks))
	var paths []string
	for _, cb := range def.IndexedBlocks {
		if seen[cb.Path] {
			continue
		}
		seen[cb.Path] = true
		paths = append(paths, cb.Path)
	}
	return paths
}

func (o *DropIndex) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}
