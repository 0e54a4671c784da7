package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func TestState_CloneIsIndependentOfParent(t *testing.T) {
	s := state.New()
	s.Blocks = append(s.Blocks, &block.Block{ID: types.NewObjectId()})

	clone := s.Clone()
	clone.Blocks = append(clone.Blocks, &block.Block{ID: types.NewObjectId()})
	clone.Views["v"] = types.NewObjectId()

	require.Len(t, s.Blocks, 1, "appending to the clone must not mutate the parent's slice")
	require.Len(t, clone.Blocks, 2)
	require.NotContains(t, s.Views, "v")
}

func TestState_WithIndexDefAppendsOrReplacesByID(t *testing.T) {
	s := state.New()
	id := types.NewObjectId()
	d := types.IndexDefinition{ID: id, Column: "region"}

	s1 := s.WithIndexDef(d)
	require.Len(t, s1.IndexDefs, 1)

	updated := d.WithCovered(types.CoveredBlock{Block: types.VersionedBlockId{BlockID: types.NewObjectId(), Version: "v1"}, Path: "idx_1"})
	s2 := s1.WithIndexDef(updated)
	require.Len(t, s2.IndexDefs, 1, "replacing by id must not grow the slice")

	got, ok := s2.IndexDefByID(id)
	require.True(t, ok)
	require.Len(t, got.IndexedBlocks, 1)
}

func TestState_WithoutIndexDefRemovesByID(t *testing.T) {
	s := state.New()
	keep := types.IndexDefinition{ID: types.NewObjectId(), Column: "region"}
	drop := types.IndexDefinition{ID: types.NewObjectId(), Column: "amount"}
	s = s.WithIndexDef(keep).WithIndexDef(drop)
	require.Len(t, s.IndexDefs, 2)

	s = s.WithoutIndexDef(drop.ID)
	require.Len(t, s.IndexDefs, 1)
	require.Equal(t, "region", s.IndexDefs[0].Column)
}

func TestState_BlockByIDLooksUpByIdentity(t *testing.T) {
	s := state.New()
	id := types.NewObjectId()
	s.Blocks = append(s.Blocks, &block.Block{ID: id})

	_, ok := s.BlockByID(id)
	require.True(t, ok)

	_, ok = s.BlockByID(types.NewObjectId())
	require.False(t, ok)
}
