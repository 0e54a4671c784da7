package bundle_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/bundle"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/storage"
)

func newOpContext(t *testing.T, store storage.Store) *operation.Context {
	t.Helper()
	reg := block.NewRegistry()
	adapter.RegisterBuiltins(reg)
	idx, err := index.NewManager(store, 16)
	require.NoError(t, err)
	return &operation.Context{Registry: reg, Indexes: idx}
}

func TestBundle_ExplainEmptyPlan(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///explain-empty"
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)

	b, err := bundle.Create(ctx, rootURL, newOpContext(t, store))
	require.NoError(t, err)

	require.Equal(t, "(empty)\n", b.Explain())
}

func TestBundle_ExplainRendersAttachFilterProject(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///explain-tree"
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "events.csv", []byte("region,amount\nwest,12.5\neast,4.0\n")))

	rc := newOpContext(t, store)
	b, err := bundle.Create(ctx, rootURL, rc)
	require.NoError(t, err)

	builder := b.Extend()
	_, err = builder.Attach(ctx, rootURL+"/events.csv", "")
	require.NoError(t, err)
	require.NoError(t, builder.Filter("amount > $1", 1.0))
	require.NoError(t, builder.Select("region, amount"))

	committed, err := builder.Commit(ctx, "attach, filter, project")
	require.NoError(t, err)

	out := committed.Explain()
	require.True(t, strings.HasPrefix(out, "Project region, amount\n"), "got: %s", out)
	require.Contains(t, out, "Filter amount > $1")
	require.Contains(t, out, "Scan "+rootURL+"/events.csv (full)")

	// Project is the outermost node, so its line must be the least indented.
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.True(t, len(lines) >= 3)
	require.Equal(t, "Project region, amount", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "  Filter"))
	require.True(t, strings.HasPrefix(lines[2], "    Scan"))
}
