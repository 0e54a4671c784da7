package operation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func TestDropIndex_ReconfigureDeletesCoveredIndexFiles(t *testing.T) {
	storage.ResetMemoryStores()
	store, err := storage.Resolve("memory:///drop-index-test")
	require.NoError(t, err)
	mgr, err := index.NewManager(store, 16)
	require.NoError(t, err)

	const path = "idx_ix1_build1.idx"
	require.NoError(t, store.Put(context.Background(), path, []byte("not a real index file, only needs to exist")))

	def := types.IndexDefinition{ID: "ix1", Column: "region"}
	def = def.WithCovered(types.CoveredBlock{
		Block: types.VersionedBlockId{BlockID: "b1", Version: "v1"},
		Path:  path,
	})

	s := state.New()
	s = s.WithIndexDef(def)

	exists, err := store.Exists(context.Background(), path)
	require.NoError(t, err)
	require.True(t, exists, "index file must exist before dropping")

	op := &operation.DropIndex{Type_: operation.TypeDropIndex, ID: "ix1"}
	require.NoError(t, op.Check(s))

	rc := &operation.Context{Indexes: mgr}
	next, err := op.Reconfigure(context.Background(), rc, s)
	require.NoError(t, err)

	_, ok := next.IndexDefByID("ix1")
	require.False(t, ok, "index definition should be gone from state")

	exists, err = store.Exists(context.Background(), path)
	require.NoError(t, err)
	require.False(t, exists, "index file must be deleted from the store")
}

func TestDropIndex_ReconfigureDeletesEachDistinctCoveredPathOnce(t *testing.T) {
	storage.ResetMemoryStores()
	store, err := storage.Resolve("memory:///drop-index-test-2")
	require.NoError(t, err)
	mgr, err := index.NewManager(store, 16)
	require.NoError(t, err)

	const pathA = "idx_ix2_build1.idx"
	const pathB = "idx_ix2_build2.idx"
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, pathA, []byte("a")))
	require.NoError(t, store.Put(ctx, pathB, []byte("b")))

	def := types.IndexDefinition{ID: "ix2", Column: "region"}
	def = def.WithCovered(types.CoveredBlock{Block: types.VersionedBlockId{BlockID: "b1", Version: "v1"}, Path: pathA})
	def = def.WithCovered(types.CoveredBlock{Block: types.VersionedBlockId{BlockID: "b2", Version: "v1"}, Path: pathA})
	def = def.WithCovered(types.CoveredBlock{Block: types.VersionedBlockId{BlockID: "b3", Version: "v1"}, Path: pathB})

	s := state.New()
	s = s.WithIndexDef(def)

	op := &operation.DropIndex{Type_: operation.TypeDropIndex, ID: "ix2"}
	rc := &operation.Context{Indexes: mgr}
	_, err = op.Reconfigure(ctx, rc, s)
	require.NoError(t, err)

	for _, p := range []string{pathA, pathB} {
		exists, err := store.Exists(ctx, p)
		require.NoError(t, err)
		require.False(t, exists, "path %s must be deleted", p)
	}
}

func TestDropIndex_CheckRejectsUnknownID(t *testing.T) {
	s := state.New()
	op := &operation.DropIndex{Type_: operation.TypeDropIndex, ID: "missing"}
	require.Error(t, op.Check(s))
}
