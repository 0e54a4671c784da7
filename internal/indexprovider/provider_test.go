package indexprovider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/indexprovider"
	"github.com/bundlebase/bundlebase/internal/observability"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func buildBlock(t *testing.T, ctx context.Context, rootURL, name, csvBody string) *block.Block {
	t.Helper()
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, name, []byte(csvBody)))

	reg := block.NewRegistry()
	adapter.RegisterBuiltins(reg)
	da, err := reg.Resolve(ctx, rootURL+"/"+name, "")
	require.NoError(t, err)
	schema, err := da.Schema(ctx)
	require.NoError(t, err)
	return &block.Block{ID: types.NewObjectId(), Version: "v1", Schema: schema, Adapter: da}
}

// TestProvider_ScanFallsBackWhenAdapterLacksRowIDProjection exercises the
// "index hit but adapter can't narrow by row-id" branch of the decision
// process: the built-in CSV adapter rejects ScanOptions.RowIDs, so a
// qualifying index still ends in a full, residual-filtered scan rather
// than an error, and the Fallback event is recorded rather than Hit.
func TestProvider_ScanFallsBackWhenAdapterLacksRowIDProjection(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///provider-hit"

	blk := buildBlock(t, ctx, rootURL, "data.csv", "region,amount\nwest,1\neast,2\neast,3\neast,4\neast,5\neast,6\n")

	idxStore, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(idxStore, 16)
	require.NoError(t, err)

	path, covered, err := mgr.BuildAndStore(ctx, types.NewObjectId(), "region", []*block.Block{blk})
	require.NoError(t, err)

	def := types.IndexDefinition{ID: types.NewObjectId(), Column: "region"}
	for _, cb := range covered {
		def = def.WithCovered(cb)
	}
	require.Equal(t, path, covered[0].Path)

	stats := observability.NewScanStats(time.Hour, 100)
	provider := indexprovider.New(mgr, stats)

	result, err := provider.Scan(ctx, blk, []types.IndexDefinition{def}, "region = $1", []any{"west"}, nil)
	require.NoError(t, err)
	defer result.Close()

	rows := 0
	for {
		batch, err := result.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		rows += batch.NumRows
	}
	require.Equal(t, 6, rows, "fallback scan is unfiltered; residual filtering happens downstream in the SQL engine")

	top := stats.TopPredicates(1)
	require.Len(t, top, 1)
	require.Equal(t, "region", top[0].Column)

	events := stats.RecentEvents(1)
	require.Len(t, events, 1)
	require.Equal(t, observability.EventFallback, events[0].Kind)
}

func TestProvider_ScanFallsBackWithoutMatchingDefinition(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///provider-miss"

	blk := buildBlock(t, ctx, rootURL, "data.csv", "region,amount\nwest,1\neast,2\n")

	idxStore, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(idxStore, 16)
	require.NoError(t, err)

	stats := observability.NewScanStats(time.Hour, 100)
	provider := indexprovider.New(mgr, stats)

	result, err := provider.Scan(ctx, blk, nil, "region = $1", []any{"west"}, nil)
	require.NoError(t, err)
	defer result.Close()

	rows := 0
	for {
		batch, err := result.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		rows += batch.NumRows
	}
	require.Equal(t, 2, rows)
}
