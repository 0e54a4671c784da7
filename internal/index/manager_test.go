package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func TestManager_SelectivityReportsOnDiskFileSize(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///manager-selectivity-test"
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "events.csv", []byte("region,amount\nwest,12.5\neast,4.0\nwest,99.0\n")))

	reg := block.NewRegistry()
	adapter.RegisterBuiltins(reg)
	da, err := reg.Resolve(ctx, rootURL+"/events.csv", "")
	require.NoError(t, err)
	schema, err := da.Schema(ctx)
	require.NoError(t, err)
	b := &block.Block{ID: types.NewObjectId(), Version: "v1", Schema: schema, Adapter: da}

	mgr, err := index.NewManager(store, 16)
	require.NoError(t, err)

	path, covered, err := mgr.BuildAndStore(ctx, types.ObjectId("ix1"), "region", []*block.Block{b})
	require.NoError(t, err)
	require.Len(t, covered, 1)

	raw, err := store.Get(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	versioned := []types.VersionedBlockId{b.VersionedID()}
	predicate := types.ExactPredicate(types.IndexedValue{Kind: types.IndexedUtf8, Str: "west"})

	_, fileSize, outcome := mgr.Selectivity(ctx, path, predicate, versioned)
	require.Equal(t, index.OutcomeHit, outcome)
	require.Equal(t, int64(len(raw)), fileSize, "FileSize must reflect the index file's actual on-disk size")
}
