package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/runtime"
	"github.com/bundlebase/bundlebase/internal/storage"
)

const demoCSV = "region,amount\nwest,12.5\neast,4.0\nwest,99.0\nnorth,1.25\n"

func newTestStore(t *testing.T, rootURL string) storage.Store {
	t.Helper()
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	return store
}

func TestRuntime_CreateAttachFilterCommitReopen(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///events"

	store := newTestStore(t, rootURL)
	require.NoError(t, store.Put(ctx, "events.csv", []byte(demoCSV)))

	rt, err := runtime.New(nil)
	require.NoError(t, err)

	b, err := rt.Create(ctx, rootURL)
	require.NoError(t, err)
	require.Empty(t, b.Schema().Names())

	builder := b.Extend()
	blockID, err := builder.Attach(ctx, rootURL+"/events.csv", "")
	require.NoError(t, err)
	require.NotEmpty(t, blockID)
	require.ElementsMatch(t, []string{"region", "amount"}, builder.State().Schema.Names())

	indexID, err := builder.CreateIndex("region")
	require.NoError(t, err)
	require.NoError(t, builder.RebuildIndex("region"))
	require.NotEmpty(t, indexID)

	require.NoError(t, builder.Filter("region = $1", "west"))
	require.NoError(t, builder.SetName("events"))

	committed, err := builder.Commit(ctx, "attach, index, filter")
	require.NoError(t, err)
	require.Equal(t, "events", committed.Name())
	require.Equal(t, uint64(4), committed.RowCount().Value)

	stream, err := rt.Query(ctx, committed)
	require.NoError(t, err)
	defer stream.Close()

	rows := 0
	for {
		batch, err := stream.Next(ctx)
		require.NoError(t, err)
		if batch == nil {
			break
		}
		rows += batch.NumRows
		for _, v := range batch.Columns["region"] {
			require.Equal(t, "west", v)
		}
	}
	require.Equal(t, 2, rows)

	reopened, err := rt.Open(ctx, rootURL)
	require.NoError(t, err)
	require.Equal(t, "events", reopened.Name())
	require.Len(t, reopened.IndexDefs(), 1)
	hist, err := reopened.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestRuntime_DefineSourceAttachPending(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///pending"
	srcURL := "memory:///pending-src"

	srcStore := newTestStore(t, srcURL)
	require.NoError(t, srcStore.Put(ctx, "a.csv", []byte(demoCSV)))

	rt, err := runtime.New(nil)
	require.NoError(t, err)

	b, err := rt.Create(ctx, rootURL)
	require.NoError(t, err)
	builder := b.Extend()

	require.NoError(t, builder.DefineSource(srcURL))
	pending, err := builder.PendingFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.csv"}, pending)

	ids, err := builder.AttachPending(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	pending, err = builder.PendingFiles(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	// A second DefineSource on the same bundle must be rejected.
	require.Error(t, builder.DefineSource(srcURL))

	_, err = builder.Commit(ctx, "define source and attach pending")
	require.NoError(t, err)
}

func TestRuntime_IndexAdvisorRecommendsAfterRepeatedScans(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///advisor"

	store := newTestStore(t, rootURL)
	require.NoError(t, store.Put(ctx, "events.csv", []byte(demoCSV)))

	rt, err := runtime.New(nil)
	require.NoError(t, err)

	b, err := rt.Create(ctx, rootURL)
	require.NoError(t, err)
	builder := b.Extend()
	_, err = builder.Attach(ctx, rootURL+"/events.csv", "")
	require.NoError(t, err)
	committed, err := builder.Commit(ctx, "attach")
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		rt.Stats().RecordPredicate("region", "=")
	}

	actions := rt.Advise(committed.State().ExistingIndexColumns())
	var sawCreate bool
	for _, a := range actions {
		if a.Column == "region" {
			sawCreate = true
		}
	}
	require.True(t, sawCreate, "expected the advisor to recommend indexing region after repeated scans")
}
