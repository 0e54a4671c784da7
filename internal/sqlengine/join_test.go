package sqlengine

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
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func csvBlock(t *testing.T, ctx context.Context, rootURL, name, csvBody string) *block.Block {
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

func TestExecuteJoin_InnerJoinMaterializesMatchingRows(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///join-test"

	orders := csvBlock(t, ctx, rootURL, "orders.csv", "order_id,region\n1,west\n2,east\n3,west\n")
	regions := csvBlock(t, ctx, rootURL, "regions.csv", "code,manager\nwest,alice\neast,bob\n")

	idxStore, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(idxStore, 16)
	require.NoError(t, err)
	provider := indexprovider.New(mgr, observability.NewScanStats(time.Hour, 100))

	left := &planner.ScanNode{Block: orders, Schema: orders.Schema}
	right := &planner.ScanNode{Block: regions, Schema: regions.Schema}

	outSchema := types.NewSchema()
	outSchema = outSchema.WithColumn("order_id", types.Int64Type(), false)
	outSchema = outSchema.WithColumn("region", types.Utf8Type(), false)
	outSchema = outSchema.WithColumn("regions.manager", types.Utf8Type(), false)

	node := &planner.JoinNode{
		Left: left, Right: right, RightAlias: "regions",
		Predicate: "region = regions.code", How: planner.JoinInner, Schema: outSchema,
	}

	opts := Options{Provider: provider, BatchSize: 100}
	result, err := Execute(ctx, node, opts)
	require.NoError(t, err)
	defer result.Close()

	rows := 0
	managers := map[int64]string{}
	for {
		batch, err := result.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		rows += batch.NumRows
		for i := 0; i < batch.NumRows; i++ {
			orderID := batch.Columns["order_id"][i].(int64)
			managers[orderID] = batch.Columns["regions.manager"][i].(string)
		}
	}
	require.Equal(t, 3, rows)
	require.Equal(t, "alice", managers[1])
	require.Equal(t, "alice", managers[3])
}

// TestExecuteJoin_BareLeftColumnDoesNotCollideWithSameNameOnRight covers
// the case where both join sides define a column called "region": the
// predicate's bare reference must resolve to the left side rather than
// producing an ambiguous-column error against the right side's table.
func TestExecuteJoin_BareLeftColumnDoesNotCollideWithSameNameOnRight(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///join-collision-test"

	orders := csvBlock(t, ctx, rootURL, "orders.csv", "order_id,region\n1,west\n2,east\n")
	regions := csvBlock(t, ctx, rootURL, "regions.csv", "region,manager\nwest,alice\neast,bob\n")

	idxStore, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(idxStore, 16)
	require.NoError(t, err)
	provider := indexprovider.New(mgr, observability.NewScanStats(time.Hour, 100))

	left := &planner.ScanNode{Block: orders, Schema: orders.Schema}
	right := &planner.ScanNode{Block: regions, Schema: regions.Schema}

	outSchema := types.NewSchema()
	outSchema = outSchema.WithColumn("order_id", types.Int64Type(), false)
	outSchema = outSchema.WithColumn("regions.manager", types.Utf8Type(), false)

	node := &planner.JoinNode{
		Left: left, Right: right, RightAlias: "regions",
		Predicate: "region = regions.region", How: planner.JoinInner, Schema: outSchema,
	}

	opts := Options{Provider: provider, BatchSize: 100}
	result, err := Execute(ctx, node, opts)
	require.NoError(t, err)
	defer result.Close()

	rows := 0
	managers := map[int64]string{}
	for {
		batch, err := result.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		rows += batch.NumRows
		for i := 0; i < batch.NumRows; i++ {
			orderID := batch.Columns["order_id"][i].(int64)
			managers[orderID] = batch.Columns["regions.manager"][i].(string)
		}
	}
	require.Equal(t, 2, rows)
	require.Equal(t, "alice", managers[1])
	require.Equal(t, "bob", managers[2])
}

// multiBatchAdapter hands its rows back split across several stream.Batch
// values instead of one, so executeJoin's left side can be exercised with
// more than one Next() call per query.
type multiBatchAdapter struct {
	schema  types.Schema
	batches []stream.Batch
}

func (a *multiBatchAdapter) Schema(ctx context.Context) (types.Schema, error) { return a.schema, nil }
func (a *multiBatchAdapter) ApproxRowCount(ctx context.Context) (uint64, error) {
	var n uint64
	for _, b := range a.batches {
		n += uint64(b.NumRows)
	}
	return n, nil
}
func (a *multiBatchAdapter) ByteSize(ctx context.Context) (uint64, error) { return 0, nil }
func (a *multiBatchAdapter) Scan(ctx context.Context, opts block.ScanOptions) (stream.BatchStream, error) {
	return stream.FromSlice(a.batches), nil
}

// TestExecuteJoin_MultipleLeftBatchesAllProbeTheBuiltRightTable covers
// I7/spec.md §8: the left side arriving across several Next() calls must
// still probe correctly against the one right-side table executeJoin
// builds once, with every matching row surfacing across the output.
func TestExecuteJoin_MultipleLeftBatchesAllProbeTheBuiltRightTable(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///join-multibatch-test"

	regions := csvBlock(t, ctx, rootURL, "regions.csv", "code,manager\nwest,alice\neast,bob\nnorth,carol\n")

	idxStore, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(idxStore, 16)
	require.NoError(t, err)
	provider := indexprovider.New(mgr, observability.NewScanStats(time.Hour, 100))

	leftSchema := types.NewSchema()
	leftSchema = leftSchema.WithColumn("order_id", types.Int64Type(), false)
	leftSchema = leftSchema.WithColumn("region", types.Utf8Type(), false)

	batch1 := stream.NewBatch(leftSchema, 2)
	batch1.Columns["order_id"][0], batch1.Columns["region"][0] = int64(1), "west"
	batch1.Columns["order_id"][1], batch1.Columns["region"][1] = int64(2), "east"

	batch2 := stream.NewBatch(leftSchema, 2)
	batch2.Columns["order_id"][0], batch2.Columns["region"][0] = int64(3), "west"
	batch2.Columns["order_id"][1], batch2.Columns["region"][1] = int64(4), "nowhere"

	batch3 := stream.NewBatch(leftSchema, 1)
	batch3.Columns["order_id"][0], batch3.Columns["region"][0] = int64(5), "north"

	leftAdapter := &multiBatchAdapter{schema: leftSchema, batches: []stream.Batch{batch1, batch2, batch3}}
	leftBlock := &block.Block{ID: types.NewObjectId(), Version: "v1", Schema: leftSchema, Adapter: leftAdapter}

	left := &planner.ScanNode{Block: leftBlock, Schema: leftSchema}
	right := &planner.ScanNode{Block: regions, Schema: regions.Schema}

	outSchema := types.NewSchema()
	outSchema = outSchema.WithColumn("order_id", types.Int64Type(), false)
	outSchema = outSchema.WithColumn("region", types.Utf8Type(), false)
	outSchema = outSchema.WithColumn("regions.manager", types.Utf8Type(), false)

	node := &planner.JoinNode{
		Left: left, Right: right, RightAlias: "regions",
		Predicate: "region = regions.code", How: planner.JoinInner, Schema: outSchema,
	}

	opts := Options{Provider: provider, BatchSize: 100}
	result, err := Execute(ctx, node, opts)
	require.NoError(t, err)
	defer result.Close()

	managers := map[int64]string{}
	for {
		b, err := result.Next(ctx)
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.NumRows; i++ {
			orderID := b.Columns["order_id"][i].(int64)
			managers[orderID] = b.Columns["regions.manager"][i].(string)
		}
	}

	require.Equal(t, map[int64]string{
		1: "alice", // batch 1
		2: "bob",   // batch 1
		3: "alice", // batch 2
		5: "carol", // batch 3
	}, managers)
	require.NotContains(t, managers, int64(4), "order 4's region has no matching right row and must be dropped by the inner join")
}
