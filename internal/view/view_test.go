package view_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/bundle"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/internal/view"
)

func newContext(t *testing.T, rootURL string) *operation.Context {
	t.Helper()
	reg := block.NewRegistry()
	adapter.RegisterBuiltins(reg)
	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	mgr, err := index.NewManager(store, 16)
	require.NoError(t, err)
	return &operation.Context{Registry: reg, Indexes: mgr}
}

func TestView_AttachAndOpenRoundTrips(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///view-parent"
	rc := newContext(t, rootURL)

	parentBundle, err := bundle.Create(ctx, rootURL, rc)
	require.NoError(t, err)
	parent := parentBundle.Extend()

	store, err := storage.Resolve(rootURL)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "events.csv", []byte("region,amount\nwest,1\neast,2\n")))

	source := parent // capture the parent's own pending attach as the "source" operations
	_, err = source.Attach(ctx, rootURL+"/events.csv", "")
	require.NoError(t, err)

	viewID, viewBundle, err := view.Attach(ctx, parent, source, "first view", rc)
	require.NoError(t, err)
	require.NotEmpty(t, viewID)
	require.Equal(t, uint64(2), viewBundle.RowCount().Value)

	reopened, err := view.Open(ctx, rootURL, viewID, rc)
	require.NoError(t, err)
	require.Equal(t, viewBundle.RootURL(), reopened.RootURL())
	require.Equal(t, uint64(2), reopened.RowCount().Value)
}

func TestView_AttachRejectsViewOfView(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	rootURL := "memory:///view-nested-parent"
	rc := newContext(t, rootURL)

	parentBundle, err := bundle.Create(ctx, rootURL, rc)
	require.NoError(t, err)
	parent := parentBundle.Extend()

	viewID, viewBundle, err := view.Attach(ctx, parent, parent, "base view", rc)
	require.NoError(t, err)
	require.NotNil(t, viewBundle)

	nestedRC := newContext(t, viewBundle.RootURL())
	nestedBuilder := viewBundle.Extend()
	_, _, err = view.Attach(ctx, nestedBuilder, nestedBuilder, "nested view", nestedRC)
	require.Error(t, err)

	_ = viewID
}
